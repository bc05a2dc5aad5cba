package output

import (
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/abdul-hamid-achik/multisync/packages/http"
	"github.com/abdul-hamid-achik/multisync/packages/inspect"
	"github.com/abdul-hamid-achik/multisync/packages/repeat"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Exchanges []JSONExchange `json:"exchanges"`
	Queries   []JSONQuery    `json:"queries,omitempty"`
	Schema    *JSONSchema    `json:"schema,omitempty"`
	Summary   *JSONSummary   `json:"summary,omitempty"`
	Errors    []string       `json:"errors,omitempty"`
	Time      string         `json:"time"`
}

type JSONExchange struct {
	Request  *JSONRequest  `json:"request,omitempty"`
	Response *JSONResponse `json:"response"`
}

// JSONRequest represents request details
type JSONRequest struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Size    int               `json:"size"`
}

// JSONResponse represents response details
type JSONResponse struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       json.RawMessage   `json:"body,omitempty"`
	BodyText   string            `json:"bodyText,omitempty"`
	Duration   float64           `json:"duration"`
}

type JSONQuery struct {
	Expr  string `json:"expr"`
	Value any    `json:"value"`
	Found bool   `json:"found"`
}

type JSONSchema struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

type JSONSummary struct {
	Total       int64           `json:"total"`
	Success     int64           `json:"success"`
	Errors      int64           `json:"errors"`
	Timeouts    int64           `json:"timeouts"`
	StatusCodes map[int]int64   `json:"statusCodes,omitempty"`
	Duration    float64         `json:"duration"`
	RPS         float64         `json:"rps"`
	P50         float64         `json:"p50"`
	P95         float64         `json:"p95"`
	P99         float64         `json:"p99"`
	Thresholds  []JSONAssertion `json:"thresholds,omitempty"`
}

// JSONAssertion represents a threshold check
type JSONAssertion struct {
	Name     string `json:"name"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
}

// JSONFormatter formats results as a single JSON document on Flush.
type JSONFormatter struct {
	writer io.Writer
	out    JSONOutput
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		out:    JSONOutput{Exchanges: make([]JSONExchange, 0)},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResponse(resp *http.Response) {
	ex := JSONExchange{
		Response: &JSONResponse{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Headers:    resp.Headers,
			Duration:   ms(resp.Duration),
		},
	}
	if json.Valid(resp.Body) {
		ex.Response.Body = json.RawMessage(resp.Body)
	} else {
		ex.Response.BodyText = string(resp.Body)
	}

	if sent := resp.Request; sent != nil {
		headers := make(map[string]string, len(sent.Header))
		for _, h := range sent.Header {
			headers[h.Name] = h.Value
		}
		ex.Request = &JSONRequest{
			Method:  sent.Method,
			URL:     sent.URL,
			Headers: headers,
			Size:    len(sent.Body),
		}
	}
	f.out.Exchanges = append(f.out.Exchanges, ex)
}

func (f *JSONFormatter) FormatQuery(expr string, value any, found bool) {
	f.out.Queries = append(f.out.Queries, JSONQuery{Expr: expr, Value: value, Found: found})
}

func (f *JSONFormatter) FormatSchema(result *inspect.SchemaResult) {
	f.out.Schema = &JSONSchema{Valid: result.Valid, Errors: result.Errors}
}

func (f *JSONFormatter) FormatSummary(s *repeat.Summary, checks []repeat.ThresholdResult) {
	summary := &JSONSummary{
		Total:       s.TotalRequests,
		Success:     s.SuccessCount,
		Errors:      s.ErrorCount,
		Timeouts:    s.TimeoutCount,
		StatusCodes: s.StatusCodes,
		Duration:    ms(s.Duration),
		RPS:         s.RPS,
		P50:         ms(s.P50),
		P95:         ms(s.P95),
		P99:         ms(s.P99),
	}
	for _, c := range checks {
		summary.Thresholds = append(summary.Thresholds, JSONAssertion{
			Name:     c.Name,
			Expected: c.Expected,
			Actual:   c.Actual,
			Passed:   c.Passed,
		})
	}
	f.out.Summary = summary
}

func (f *JSONFormatter) FormatError(err error) {
	f.out.Errors = append(f.out.Errors, err.Error())
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush() error {
	f.out.Time = time.Now().Format(time.RFC3339)

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(f.out)
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
