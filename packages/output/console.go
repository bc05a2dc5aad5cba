package output

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/abdul-hamid-achik/multisync/packages/http"
	"github.com/abdul-hamid-achik/multisync/packages/inspect"
	"github.com/abdul-hamid-achik/multisync/packages/repeat"
)

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
	include bool
	bodies  bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
		bodies: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

// WithVerbose also prints the request as sent.
func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// WithInclude prints response headers.
func WithInclude(include bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.include = include
	}
}

// WithBody controls whether response bodies are printed.
func WithBody(show bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.bodies = show
	}
}

func (f *ConsoleFormatter) FormatResponse(resp *http.Response) {
	cyan := color.New(color.FgCyan).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	if f.verbose && resp.Request != nil {
		f.formatRequest(resp.Request)
	}

	fmt.Fprintf(f.writer, "%s %s %s\n", resp.Proto, statusColor(resp.StatusCode)(resp.Status), cyan(fmt.Sprintf("(%dms)", resp.DurationMs())))

	if f.include || f.verbose {
		for _, line := range resp.RawHeaders {
			fmt.Fprintf(f.writer, "%s\n", dim(line))
		}
	}

	if !f.bodies || len(resp.Body) == 0 {
		return
	}
	fmt.Fprintln(f.writer)
	fmt.Fprintf(f.writer, "%s", f.renderBody(resp.Body))
	if resp.Body[len(resp.Body)-1] != '\n' {
		fmt.Fprintln(f.writer)
	}
}

func (f *ConsoleFormatter) formatRequest(sent *http.SentRequest) {
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(f.writer, "%s %s %s\n", bold(">"), sent.Method, sent.URL)
	for _, h := range sent.Header {
		fmt.Fprintf(f.writer, "%s %s\n", dim(">"), dim(h.Name+": "+h.Value))
	}
	for _, p := range sent.Parts {
		if p.IsFile() {
			fmt.Fprintf(f.writer, "%s part %q file=%q type=%s size=%d\n", dim(">"), p.Name, p.Filename, p.ContentType, len(p.Data))
		} else {
			fmt.Fprintf(f.writer, "%s part %q = %s\n", dim(">"), p.Name, formatValue(string(p.Data), 60))
		}
	}
	fmt.Fprintln(f.writer)
}

// renderBody pretty-prints JSON and passes anything else through.
func (f *ConsoleFormatter) renderBody(body []byte) []byte {
	if !gjson.ValidBytes(body) {
		return body
	}
	out := pretty.Pretty(body)
	if !color.NoColor {
		out = pretty.Color(out, pretty.TerminalStyle)
	}
	return out
}

func (f *ConsoleFormatter) FormatQuery(expr string, value any, found bool) {
	yellow := color.New(color.FgYellow).SprintFunc()
	if !found {
		fmt.Fprintf(f.writer, "%s %s\n", yellow(expr+":"), yellow("<not found>"))
		return
	}
	fmt.Fprintf(f.writer, "%s %s\n", expr+":", formatValue(value, 200))
}

func (f *ConsoleFormatter) FormatSchema(result *inspect.SchemaResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	if result.Valid {
		fmt.Fprintf(f.writer, "  %s schema\n", green("✓"))
		return
	}
	fmt.Fprintf(f.writer, "  %s schema\n", red("✗"))
	for _, e := range result.Errors {
		fmt.Fprintf(f.writer, "    %s %s\n", red("→"), e)
	}
}

func (f *ConsoleFormatter) FormatSummary(s *repeat.Summary, checks []repeat.ThresholdResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n", bold("Summary"))
	fmt.Fprintf(f.writer, "  Requests:  %d (%s, %s", s.TotalRequests,
		green(fmt.Sprintf("%d ok", s.SuccessCount)),
		red(fmt.Sprintf("%d failed", s.ErrorCount)))
	if s.TimeoutCount > 0 {
		fmt.Fprintf(f.writer, ", %s", yellow(fmt.Sprintf("%d timed out", s.TimeoutCount)))
	}
	fmt.Fprintf(f.writer, ")\n")
	fmt.Fprintf(f.writer, "  Duration:  %s (%.1f req/s)\n", s.Duration.Round(1e6), s.RPS)
	fmt.Fprintf(f.writer, "  Latency:   min %s  p50 %s  p95 %s  p99 %s  max %s\n", s.Min, s.P50, s.P95, s.P99, s.Max)

	if codes := s.SortedStatusCodes(); len(codes) > 0 {
		fmt.Fprintf(f.writer, "  Status:   ")
		for _, code := range codes {
			fmt.Fprintf(f.writer, " %s×%d", statusColor(code)(fmt.Sprint(code)), s.StatusCodes[code])
		}
		fmt.Fprintln(f.writer)
	}

	for _, c := range checks {
		symbol := green("✓")
		if !c.Passed {
			symbol = red("✗")
		}
		fmt.Fprintf(f.writer, "  %s %s: %s (expected %s)\n", symbol, c.Name, c.Actual, c.Expected)
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("multisync"), version)
}

func statusColor(code int) func(a ...interface{}) string {
	switch {
	case code >= 200 && code < 300:
		return color.New(color.FgGreen).SprintFunc()
	case code >= 300 && code < 400:
		return color.New(color.FgCyan).SprintFunc()
	case code >= 400 && code < 500:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgRed).SprintFunc()
	}
}
