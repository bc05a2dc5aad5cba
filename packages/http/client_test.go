package http

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/multisync/packages/echo"
	"github.com/abdul-hamid-achik/multisync/packages/formdata"
)

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(strings.TrimPrefix(addr, "http://"))
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func startEcho(t *testing.T) (string, int) {
	t.Helper()
	server := httptest.NewServer(echo.NewServer().Handler())
	t.Cleanup(server.Close)
	return splitHostPort(t, server.URL)
}

// serveRaw accepts one connection and hands it to handle.
func serveRaw(t *testing.T, handle func(net.Conn)) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()

	return splitHostPort(t, ln.Addr().String())
}

// drainRequest consumes the request so closing conn does not reset it.
func drainRequest(conn net.Conn) {
	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err == nil {
		_, _ = io.Copy(io.Discard, req.Body)
	}
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port := splitHostPort(t, ln.Addr().String())
	require.NoError(t, ln.Close())
	return port
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func decodeEcho(t *testing.T, resp *Response) *echo.Echo {
	t.Helper()
	e, err := echo.Decode(resp.Body)
	require.NoError(t, err)
	return e
}

func TestRequest_BlockingContract(t *testing.T) {
	host, port := startEcho(t)
	readme := writeFile(t, "README.md", "# multisync\n")

	resp, err := Request(&Options{
		Host:     host,
		Port:     port,
		Path:     "/file",
		CopyName: "file",
		File:     readme,
	})
	require.NoError(t, err)
	defer resp.End()

	// The body is complete on return; no further synchronization.
	e := decodeEcho(t, resp)
	assert.Equal(t, "/file", e.URL)
	assert.Equal(t, "*/*", e.Headers["accept"])
	assert.Equal(t, "POST", e.Method)
	require.Len(t, e.Files, 1)
	assert.Equal(t, "file", e.Files[0].Field)
	assert.Equal(t, "README.md", e.Files[0].Filename)
	assert.Equal(t, int64(len("# multisync\n")), e.Files[0].Size)
}

func TestRequest_HeaderFidelity(t *testing.T) {
	rawCh := make(chan []byte, 1)
	host, port := serveRaw(t, func(conn net.Conn) {
		var raw bytes.Buffer
		br := bufio.NewReader(io.TeeReader(conn, &raw))
		req, err := http.ReadRequest(br)
		if err != nil {
			rawCh <- nil
			return
		}
		_, _ = io.ReadAll(req.Body)
		rawCh <- raw.Bytes()
		_, _ = io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok")
	})

	data := writeFile(t, "data.json", `{"a":1}`)
	client := NewClient(WithEncoder(formdata.NewEncoder(formdata.WithBoundary("fixedboundary"))))
	resp, err := client.Do(&Options{
		Host:     host,
		Port:     port,
		Path:     "/upload",
		Headers:  map[string]string{"X-BB-SESSION": "s3ss10n"},
		CopyName: "file",
		File:     data,
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.BodyString())

	raw := <-rawCh
	require.NotNil(t, raw)
	head, body, found := bytes.Cut(raw, []byte("\r\n\r\n"))
	require.True(t, found)

	lines := strings.Split(string(head), "\r\n")
	assert.Equal(t, "POST /upload HTTP/1.1", lines[0])
	assert.Contains(t, lines, "X-BB-SESSION: s3ss10n")
	assert.Contains(t, lines, "Content-Type: multipart/form-data; boundary=fixedboundary")
	assert.Contains(t, lines, "Content-Length: "+strconv.Itoa(len(body)))
	assert.Contains(t, lines, "Host: "+net.JoinHostPort(host, strconv.Itoa(port)))
	assert.Equal(t, resp.Request.Body, body)

	mediaType, params, err := mime.ParseMediaType(resp.Request.ContentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	mr := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	part, err := mr.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "file", part.FormName())
	assert.Equal(t, "data.json", part.FileName())
	content, err := io.ReadAll(part)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(content))
}

func TestRequest_ConnectionRefused(t *testing.T) {
	port := closedPort(t)

	for i := 0; i < 5; i++ {
		resp, err := Request(&Options{Host: "127.0.0.1", Port: port, Path: "/"})
		require.Error(t, err)
		assert.Nil(t, resp)

		var connErr *ConnectionError
		require.ErrorAs(t, err, &connErr)
		assert.Equal(t, "dial", connErr.Op)
		assert.Equal(t, net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), connErr.Addr)
	}
}

func TestRequest_FailuresAreNotLogged(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	client := NewClient(WithLogger(logger))

	_, err := client.Do(&Options{Host: "127.0.0.1", Port: closedPort(t), Path: "/"})
	require.Error(t, err)
	assert.Empty(t, logs.String())
}

func TestResponse_EndIdempotent(t *testing.T) {
	host, port := startEcho(t)

	resp, err := Request(&Options{Host: host, Port: port, Path: "/"})
	require.NoError(t, err)
	assert.False(t, resp.Ended())

	body := append([]byte(nil), resp.Body...)
	assert.Same(t, resp, resp.End())
	assert.True(t, resp.Ended())

	assert.NotPanics(t, func() {
		resp.End().End()
	})
	assert.True(t, resp.Ended())
	assert.Equal(t, body, resp.Body)
}

func TestRequest_Timeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	host, port := serveRaw(t, func(conn net.Conn) {
		<-release
	})

	client := NewClient(WithTimeout(100 * time.Millisecond))
	start := time.Now()
	_, err := client.Do(&Options{Host: host, Port: port, Path: "/slow"})
	require.Error(t, err)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.True(t, timeoutErr.Timeout())
	assert.Equal(t, 100*time.Millisecond, timeoutErr.After)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRequest_OptionTimeoutOverridesClient(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	host, port := serveRaw(t, func(conn net.Conn) {
		<-release
	})

	client := NewClient(WithTimeout(time.Minute))
	_, err := client.Do(&Options{Host: host, Port: port, Timeout: 50 * time.Millisecond})

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 50*time.Millisecond, timeoutErr.After)
}

func TestDoContext_Canceled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	host, port := serveRaw(t, func(conn net.Conn) {
		<-release
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := NewClient().DoContext(ctx, &Options{Host: host, Port: port})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequest_ErrorsBeforeIO(t *testing.T) {
	dialed := false
	client := NewClient(WithDialer(func(ctx context.Context, network, addr string) (net.Conn, error) {
		dialed = true
		return nil, errors.New("unexpected dial")
	}))

	tests := []struct {
		name  string
		opts  *Options
		check func(t *testing.T, err error)
	}{
		{
			name: "copyname without file",
			opts: &Options{Host: "127.0.0.1", CopyName: "file"},
			check: func(t *testing.T, err error) {
				var target *InvalidAttachmentError
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name: "file without copyname",
			opts: &Options{Host: "127.0.0.1", File: "README.md"},
			check: func(t *testing.T, err error) {
				var target *InvalidAttachmentError
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name: "missing file",
			opts: &Options{Host: "127.0.0.1", CopyName: "file", File: filepath.Join(t.TempDir(), "nope.txt")},
			check: func(t *testing.T, err error) {
				var target *FileReadError
				assert.ErrorAs(t, err, &target)
				assert.ErrorIs(t, err, os.ErrNotExist)
			},
		},
		{
			name: "raw body with form fields",
			opts: &Options{
				Host:   "127.0.0.1",
				Body:   []byte("raw"),
				Fields: []formdata.Field{{Name: "a", Value: "b"}},
			},
			check: func(t *testing.T, err error) {
				var target *InvalidAttachmentError
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name: "missing host",
			opts: &Options{Path: "/"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrInvalidOptions)
			},
		},
		{
			name: "relative path",
			opts: &Options{Host: "127.0.0.1", Path: "file"},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrInvalidOptions)
			},
		},
		{
			name: "invalid header value",
			opts: &Options{Host: "127.0.0.1", Headers: map[string]string{"X-Bad": "a\r\nb"}},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrInvalidOptions)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Do(tt.opts)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
	assert.False(t, dialed)
}

func TestRequest_HeaderPrecedence(t *testing.T) {
	host, port := startEcho(t)

	client := NewClient(
		WithUserAgent("client-agent/1.0"),
		WithDefaultHeaders(map[string]string{"X-Team": "core", "X-Env": "test"}),
	)
	resp, err := client.Do(&Options{
		Host:    host,
		Port:    port,
		Headers: map[string]string{"x-env": "caller", "accept": "application/json"},
	})
	require.NoError(t, err)

	e := decodeEcho(t, resp)
	assert.Equal(t, "client-agent/1.0", e.Headers["user-agent"])
	assert.Equal(t, "core", e.Headers["x-team"])
	assert.Equal(t, "caller", e.Headers["x-env"])
	assert.Equal(t, "application/json", e.Headers["accept"])
	assert.Equal(t, "close", e.Headers["connection"])
}

func TestRequest_DefaultTemplate(t *testing.T) {
	host, port := startEcho(t)

	resp, err := Request(&Options{Host: host, Port: port})
	require.NoError(t, err)

	e := decodeEcho(t, resp)
	assert.Equal(t, "GET", e.Method)
	assert.Equal(t, "/", e.URL)
	assert.Equal(t, DefaultUserAgent, e.Headers["user-agent"])
	assert.NotContains(t, e.Headers, "content-length")
	assert.Equal(t, "GET", resp.Request.Method)
	assert.Equal(t, "http://"+net.JoinHostPort(host, strconv.Itoa(port))+"/", resp.Request.URL)
}

func TestRequest_RawBody(t *testing.T) {
	host, port := startEcho(t)

	resp, err := Request(&Options{
		Host:    host,
		Port:    port,
		Path:    "/raw",
		Method:  "put",
		Headers: map[string]string{"Content-Type": "text/plain"},
		Body:    []byte("plain text"),
	})
	require.NoError(t, err)

	e := decodeEcho(t, resp)
	assert.Equal(t, "PUT", e.Method)
	assert.Equal(t, "plain text", e.Body)
	assert.Equal(t, int64(10), e.ContentLength)
	assert.Equal(t, "text/plain", e.Headers["content-type"])
}

func TestRequest_FieldsAndFile(t *testing.T) {
	host, port := startEcho(t)
	path := writeFile(t, "logo.png", "\x89PNG\r\n")

	opts := NewOptions(host, port, "/form").
		SetField("title", "logo").
		SetField("kind", "image").
		Attach("upload", path)

	resp, err := Request(opts)
	require.NoError(t, err)

	e := decodeEcho(t, resp)
	assert.Equal(t, map[string]string{"title": "logo", "kind": "image"}, e.Form)
	require.Len(t, e.Files, 1)
	assert.Equal(t, "upload", e.Files[0].Field)
	assert.Equal(t, "image/png", e.Files[0].ContentType)
	require.Len(t, resp.Request.Parts, 3)
	assert.True(t, resp.Request.Parts[2].IsFile())
}

func TestRequest_ChunkedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "application/json")
		for _, chunk := range []string{`{"parts":`, `["a",`, `"b"]}`} {
			_, _ = io.WriteString(w, chunk)
			flusher.Flush()
		}
	}))
	defer server.Close()
	host, port := splitHostPort(t, server.URL)

	resp, err := Request(&Options{Host: host, Port: port, Path: "/stream"})
	require.NoError(t, err)

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "chunked", resp.Header("Transfer-Encoding"))
	assert.Equal(t, `{"parts":["a","b"]}`, resp.BodyString())
	assert.True(t, resp.IsJSON())

	body, err := resp.BodyJSON()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"parts": []any{"a", "b"}}, body)
}

func TestRequest_ProtocolError(t *testing.T) {
	host, port := serveRaw(t, func(conn net.Conn) {
		drainRequest(conn)
		_, _ = io.WriteString(conn, "garbage\r\n\r\n")
	})

	_, err := Request(&Options{Host: host, Port: port})
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestRequest_TruncatedBody(t *testing.T) {
	host, port := serveRaw(t, func(conn net.Conn) {
		drainRequest(conn)
		_, _ = io.WriteString(conn, "HTTP/1.1 200 OK\r\nContent-Length: 10\r\n\r\nshort")
	})

	_, err := Request(&Options{Host: host, Port: port})
	var protoErr *ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestResponse_Timings(t *testing.T) {
	host, port := startEcho(t)

	resp, err := Request(&Options{Host: host, Port: port})
	require.NoError(t, err)

	sum := resp.Timings.Connect + resp.Timings.Send + resp.Timings.Wait + resp.Timings.Receive
	assert.LessOrEqual(t, sum, resp.Duration)
	assert.Positive(t, resp.HeadSize)
	assert.NotEmpty(t, resp.RawHeaders)
	assert.Equal(t, "HTTP/1.1", resp.Proto)
}

func TestOptions_Addressing(t *testing.T) {
	tests := []struct {
		name       string
		opts       Options
		hostHeader string
		url        string
	}{
		{"default port", Options{Host: "example.com"}, "example.com", "http://example.com/"},
		{"custom port", Options{Host: "127.0.0.1", Port: 9898, Path: "/file"}, "127.0.0.1:9898", "http://127.0.0.1:9898/file"},
		{"ipv6 default port", Options{Host: "::1", Path: "/x"}, "[::1]", "http://[::1]/x"},
		{"ipv6 custom port", Options{Host: "::1", Port: 8080}, "[::1]:8080", "http://[::1]:8080/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.hostHeader, tt.opts.hostHeader())
			assert.Equal(t, tt.url, tt.opts.URL())
		})
	}
}

func TestResponse_IsSuccess(t *testing.T) {
	tests := []struct {
		status   int
		expected bool
	}{
		{200, true},
		{201, true},
		{299, true},
		{300, false},
		{404, false},
		{500, false},
	}

	for _, tt := range tests {
		resp := &Response{StatusCode: tt.status}
		assert.Equal(t, tt.expected, resp.IsSuccess(), "status %d", tt.status)
	}
}

func TestResponse_IsJSON(t *testing.T) {
	tests := []struct {
		contentType string
		expected    bool
	}{
		{"application/json", true},
		{"application/json; charset=utf-8", true},
		{"application/vnd.api+json", true},
		{"text/html", false},
		{"text/plain", false},
	}

	for _, tt := range tests {
		resp := &Response{Headers: map[string]string{"content-type": tt.contentType}}
		assert.Equal(t, tt.expected, resp.IsJSON(), "content-type %s", tt.contentType)
	}
}
