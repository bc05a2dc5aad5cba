package wire

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/net/http/httpguts"
)

// Request is a fully prepared HTTP/1.1 request. Header must already hold
// every field to send, including Host and Content-Length.
type Request struct {
	Method string
	Path   string
	Header Header
	Body   []byte
}

// Validate checks the request line and header syntax before anything is written.
func (r *Request) Validate() error {
	if r.Method == "" || strings.IndexFunc(r.Method, isNotToken) != -1 {
		return fmt.Errorf("invalid method %q", r.Method)
	}
	if r.Path == "" || (r.Path[0] != '/' && r.Path != "*") || strings.ContainsAny(r.Path, " \r\n") {
		return fmt.Errorf("invalid request target %q", r.Path)
	}
	for _, f := range r.Header {
		if !httpguts.ValidHeaderFieldName(f.Name) {
			return fmt.Errorf("invalid header field name %q", f.Name)
		}
		if !httpguts.ValidHeaderFieldValue(f.Value) {
			return fmt.Errorf("invalid header field value for %q", f.Name)
		}
	}
	if host := r.Header.Get("Host"); host != "" && !httpguts.ValidHostHeader(host) {
		return fmt.Errorf("invalid Host header %q", host)
	}
	return nil
}

func isNotToken(r rune) bool {
	return !httpguts.IsTokenRune(r)
}

// WriteRequest writes the request line, header block and body, e.g.:
//
//	POST /file HTTP/1.1\r\n
//	Host: 127.0.0.1:9898\r\n
//	Content-Length: 190\r\n
//	\r\n
//	<body>
func WriteRequest(w io.Writer, r *Request) error {
	if r == nil {
		return errors.New("nil request")
	}
	if err := r.Validate(); err != nil {
		return err
	}

	head := bytebufferpool.Get()
	defer bytebufferpool.Put(head)

	head.WriteString(r.Method)
	head.WriteByte(' ')
	head.WriteString(r.Path)
	head.WriteString(" HTTP/1.1\r\n")
	for _, f := range r.Header {
		head.WriteString(f.Name)
		head.WriteString(": ")
		head.WriteString(f.Value)
		head.WriteString("\r\n")
	}
	head.WriteString("\r\n")

	if _, err := w.Write(head.B); err != nil {
		return err
	}
	if len(r.Body) > 0 {
		if _, err := w.Write(r.Body); err != nil {
			return err
		}
	}
	return nil
}

// HeadSize returns the byte length of the request line and header block.
func (r *Request) HeadSize() int {
	n := len(r.Method) + 1 + len(r.Path) + len(" HTTP/1.1\r\n")
	for _, f := range r.Header {
		n += len(f.Name) + 2 + len(f.Value) + 2
	}
	return n + 2
}
