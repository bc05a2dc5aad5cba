// Package har records request/response exchanges as HTTP Archive documents.
package har

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/pb33f/harhar"

	"github.com/abdul-hamid-achik/multisync/packages/http"
)

// Version is the HAR format version written to the log.
const Version = "1.2"

// Recorder accumulates entries. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	creator harhar.Creator
	entries []harhar.Entry
	maxBody int
}

type Option func(*Recorder)

// WithCreator names the tool in the log's creator field.
func WithCreator(name, version string) Option {
	return func(r *Recorder) {
		r.creator = harhar.Creator{Name: name, Version: version}
	}
}

// WithMaxBodySize truncates recorded body text to n bytes. Zero keeps bodies whole.
func WithMaxBodySize(n int) Option {
	return func(r *Recorder) {
		r.maxBody = n
	}
}

func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		creator: harhar.Creator{Name: "multisync", Version: http.Version},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends the exchange behind resp.
func (r *Recorder) Record(resp *http.Response) {
	if resp == nil {
		return
	}
	entry := EntryFor(resp, r.maxBody)

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// HAR returns a snapshot of the recorded log.
func (r *Recorder) HAR() *harhar.HAR {
	r.mu.Lock()
	entries := make([]harhar.Entry, len(r.entries))
	copy(entries, r.entries)
	r.mu.Unlock()

	return &harhar.HAR{
		Log: harhar.Log{
			Version: Version,
			Creator: r.creator,
			Entries: entries,
		},
	}
}

// WriteTo writes the log as indented JSON.
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	data, err := json.MarshalIndent(r.HAR(), "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to encode har: %w", err)
	}
	data = append(data, '\n')
	n, err := w.Write(data)
	return int64(n), err
}

func (r *Recorder) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create har file: %w", err)
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write har file %s: %w", path, err)
	}
	return f.Close()
}

// Load reads a HAR document from path.
func Load(path string) (*harhar.HAR, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read har file: %w", err)
	}
	var doc harhar.HAR
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse har file %s: %w", path, err)
	}
	return &doc, nil
}

// EntryFor converts one exchange. maxBody limits recorded body text; zero
// means no limit.
func EntryFor(resp *http.Response, maxBody int) harhar.Entry {
	entry := harhar.Entry{
		Start:    resp.Started.Format(time.RFC3339Nano),
		Time:     ms(resp.Duration),
		Response: responseFor(resp, maxBody),
		Timings: harhar.Timings{
			Connect: ms(resp.Timings.Connect),
			Send:    ms(resp.Timings.Send),
			Wait:    ms(resp.Timings.Wait),
			Receive: ms(resp.Timings.Receive),
		},
	}
	if resp.Request != nil {
		entry.Request = requestFor(resp.Request, maxBody)
	}
	if host, _, err := net.SplitHostPort(resp.RemoteAddr); err == nil {
		entry.ServerIP = host
	}
	return entry
}

func requestFor(sent *http.SentRequest, maxBody int) harhar.Request {
	req := harhar.Request{
		Method:      sent.Method,
		URL:         sent.URL,
		HTTPVersion: sent.Proto,
		Cookies:     []harhar.Cookie{},
		Headers:     make([]harhar.NameValuePair, 0, len(sent.Header)),
		QueryParams: queryParams(sent.URL),
		HeadersSize: sent.HeadSize,
		BodySize:    len(sent.Body),
	}
	for _, f := range sent.Header {
		req.Headers = append(req.Headers, harhar.NameValuePair{Name: f.Name, Value: f.Value})
	}
	if cookie := sent.Header.Get("Cookie"); cookie != "" {
		req.Cookies = parseCookies(cookie)
	}

	if len(sent.Body) == 0 {
		return req
	}

	req.Body.MIMEType = sent.ContentType
	if sent.Parts != nil {
		for _, p := range sent.Parts {
			param := harhar.PostNameValuePair{Name: p.Name}
			if p.IsFile() {
				param.FileName = p.Filename
				param.ContentType = p.ContentType
			} else {
				param.Value = string(p.Data)
			}
			req.Body.Params = append(req.Body.Params, param)
		}
		return req
	}
	req.Body.Content = bodyText(sent.Body, maxBody)
	return req
}

func responseFor(resp *http.Response, maxBody int) harhar.Response {
	out := harhar.Response{
		StatusCode:  resp.StatusCode,
		StatusText:  statusText(resp.Status),
		HTTPVersion: resp.Proto,
		RedirectURL: resp.Header("Location"),
		Cookies:     []harhar.Cookie{},
		Headers:     make([]harhar.NameValuePair, 0, len(resp.RawHeaders)),
		Body: harhar.BodyResponseType{
			Size:     len(resp.Body),
			MIMEType: resp.ContentType(),
			Content:  bodyText(resp.Body, maxBody),
		},
		HeadersSize: resp.HeadSize,
		BodySize:    len(resp.Body),
	}

	for _, line := range resp.RawHeaders {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		out.Headers = append(out.Headers, harhar.NameValuePair{Name: name, Value: value})
		if strings.EqualFold(name, "Set-Cookie") {
			if c, ok := parseSetCookie(value); ok {
				out.Cookies = append(out.Cookies, c)
			}
		}
	}
	return out
}

// statusText strips the code from a status like "200 OK".
func statusText(status string) string {
	_, text, _ := strings.Cut(status, " ")
	return text
}

func queryParams(rawURL string) []harhar.NameValuePair {
	params := []harhar.NameValuePair{}
	u, err := url.Parse(rawURL)
	if err != nil {
		return params
	}
	for _, pair := range strings.Split(u.RawQuery, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		if n, err := url.QueryUnescape(name); err == nil {
			name = n
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		params = append(params, harhar.NameValuePair{Name: name, Value: value})
	}
	return params
}

func parseCookies(header string) []harhar.Cookie {
	var cookies []harhar.Cookie
	for _, kv := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, harhar.Cookie{Name: name, Value: value})
	}
	return cookies
}

func parseSetCookie(value string) (harhar.Cookie, bool) {
	first, _, _ := strings.Cut(value, ";")
	name, val, ok := strings.Cut(strings.TrimSpace(first), "=")
	if !ok || name == "" {
		return harhar.Cookie{}, false
	}
	return harhar.Cookie{Name: name, Value: val}, true
}

// bodyText returns body as text, or "" for non-UTF-8 content.
func bodyText(body []byte, maxBody int) string {
	if !utf8.Valid(body) {
		return ""
	}
	if maxBody > 0 && len(body) > maxBody {
		body = body[:maxBody]
		for len(body) > 0 && !utf8.Valid(body) {
			body = body[:len(body)-1]
		}
	}
	return string(body)
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
