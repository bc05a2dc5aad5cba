package http

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/abdul-hamid-achik/multisync/packages/formdata"
	"github.com/abdul-hamid-achik/multisync/packages/wire"
)

type Response struct {
	StatusCode int
	Status     string
	Proto      string
	// Headers has lower-cased names.
	Headers    map[string]string
	RawHeaders []string
	Body       []byte
	Started    time.Time
	Duration   time.Duration
	Timings    Timings
	HeadSize   int
	RemoteAddr string

	// Request is what was actually written to the connection.
	Request *SentRequest

	endOnce sync.Once
	ended   atomic.Bool
	release func()
}

// Timings splits Duration into phases.
type Timings struct {
	Connect time.Duration
	Send    time.Duration
	Wait    time.Duration // first response byte
	Receive time.Duration
}

// SentRequest records the request as serialized.
type SentRequest struct {
	Method      string
	URL         string
	Proto       string
	Header      wire.Header
	HeadSize    int
	Body        []byte
	ContentType string
	// Parts is set for multipart bodies.
	Parts []formdata.Part
}

// End finalizes the response and releases anything still held. It is safe
// to call any number of times and returns r for chaining.
func (r *Response) End() *Response {
	r.endOnce.Do(func() {
		if r.release != nil {
			r.release()
		}
		r.ended.Store(true)
	})
	return r
}

func (r *Response) Ended() bool {
	return r.ended.Load()
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

func (r *Response) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal(r.Body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Response) Header(key string) string {
	return r.Headers[strings.ToLower(key)]
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	ct := r.ContentType()
	return strings.Contains(ct, "application/json") || strings.HasSuffix(strings.Split(ct, ";")[0], "+json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) DurationMs() int64 {
	return r.Duration.Milliseconds()
}
