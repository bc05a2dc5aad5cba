package wire

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net/textproto"
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// Response is a completely read HTTP/1.1 response.
type Response struct {
	Proto      string
	Status     string // e.g. "200 OK"
	StatusCode int

	// Headers has lower-cased names; repeated fields are joined with ", ".
	Headers map[string]string
	// RawHeaders holds the header lines as received, without CRLF.
	RawHeaders []string

	Body []byte
	// HeadSize is the byte length of the status line and header block.
	HeadSize int
}

// ReadResponse reads one final response for a request sent with method.
// Interim 1xx responses other than 101 are consumed and skipped.
func ReadResponse(br *bufio.Reader, method string) (*Response, error) {
	tp := textproto.NewReader(br)
	for {
		resp, err := readHead(tp)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 100 && resp.StatusCode < 200 && resp.StatusCode != 101 {
			continue
		}

		body, err := readBody(br, resp, method)
		if err != nil {
			return nil, err
		}
		resp.Body = body
		return resp, nil
	}
}

func readHead(tp *textproto.Reader) (*Response, error) {
	line, err := tp.ReadLine()
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, protocolErr("reading status line", err)
	}

	resp := &Response{Headers: make(map[string]string), HeadSize: len(line) + 2}
	if err := parseStatusLine(line, resp); err != nil {
		return nil, err
	}

	for {
		line, err := tp.ReadLine()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, protocolErr("reading header block", err)
		}
		resp.HeadSize += len(line) + 2
		if line == "" {
			return resp, nil
		}
		if line[0] == ' ' || line[0] == '\t' {
			return nil, protocolErr("obsolete header line folding", nil)
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok || !httpguts.ValidHeaderFieldName(name) {
			return nil, protocolErr("malformed header line "+strconv.Quote(line), nil)
		}
		value = textproto.TrimString(value)
		key := strings.ToLower(name)
		if prev, ok := resp.Headers[key]; ok {
			resp.Headers[key] = prev + ", " + value
		} else {
			resp.Headers[key] = value
		}
		resp.RawHeaders = append(resp.RawHeaders, line)
	}
}

func parseStatusLine(line string, resp *Response) error {
	proto, status, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/") {
		return protocolErr("malformed status line "+strconv.Quote(line), nil)
	}
	if _, _, ok := parseHTTPVersion(proto); !ok {
		return protocolErr("malformed HTTP version "+strconv.Quote(proto), nil)
	}
	resp.Proto = proto
	resp.Status = strings.TrimLeft(status, " ")

	code, _, _ := strings.Cut(resp.Status, " ")
	if len(code) != 3 {
		return protocolErr("malformed status code "+strconv.Quote(code), nil)
	}
	n, err := strconv.Atoi(code)
	if err != nil || n < 100 {
		return protocolErr("malformed status code "+strconv.Quote(code), err)
	}
	resp.StatusCode = n
	return nil
}

func parseHTTPVersion(proto string) (major, minor int, ok bool) {
	v, found := strings.CutPrefix(proto, "HTTP/")
	if !found || len(v) != 3 || v[1] != '.' {
		return 0, 0, false
	}
	if v[0] < '0' || v[0] > '9' || v[2] < '0' || v[2] > '9' {
		return 0, 0, false
	}
	return int(v[0] - '0'), int(v[2] - '0'), true
}

func bodyAllowed(method string, status int) bool {
	if method == "HEAD" {
		return false
	}
	if status >= 100 && status < 200 {
		return false
	}
	return status != 204 && status != 304
}

func readBody(br *bufio.Reader, resp *Response, method string) ([]byte, error) {
	if !bodyAllowed(method, resp.StatusCode) {
		return nil, nil
	}

	if te, ok := resp.Headers["transfer-encoding"]; ok {
		codings := strings.Split(te, ",")
		if strings.EqualFold(textproto.TrimString(codings[len(codings)-1]), "chunked") {
			body, err := readChunked(br)
			if err != nil {
				return nil, err
			}
			return body, nil
		}
		// A final coding other than chunked is delimited by close.
		return readUntilClose(br)
	}

	if cl, ok := resp.Headers["content-length"]; ok {
		n, err := parseContentLength(cl)
		if err != nil {
			return nil, err
		}
		// Grows with bytes received, not with the declared length.
		var body bytes.Buffer
		if _, err := io.CopyN(&body, br, n); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, protocolErr("body shorter than Content-Length "+cl, err)
		}
		return body.Bytes(), nil
	}

	return readUntilClose(br)
}

// parseContentLength accepts repeated identical values, which arrive
// joined with ", ", and rejects conflicting ones.
func parseContentLength(v string) (int64, error) {
	values := strings.Split(v, ",")
	first := textproto.TrimString(values[0])
	for _, other := range values[1:] {
		if textproto.TrimString(other) != first {
			return 0, protocolErr("conflicting Content-Length values "+strconv.Quote(v), nil)
		}
	}
	n, err := strconv.ParseUint(first, 10, 63)
	if err != nil {
		return 0, protocolErr("invalid Content-Length "+strconv.Quote(first), err)
	}
	return int64(n), nil
}

func readUntilClose(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, protocolErr("reading close-delimited body", err)
	}
	return body, nil
}
