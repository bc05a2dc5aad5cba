// Package echo provides an HTTP server that answers every request with a
// JSON description of what it received.
package echo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// DefaultPort is the port Start listens on unless WithPort is given.
const DefaultPort = 9898

// RequestIDHeader carries the ID assigned to each echoed request.
const RequestIDHeader = "X-Request-Id"

// Echo is the JSON document returned for each request.
type Echo struct {
	ID            string            `json:"id"`
	Method        string            `json:"method"`
	URL           string            `json:"url"`
	HTTPVersion   string            `json:"httpVersion"`
	Headers       map[string]string `json:"headers"`
	ContentLength int64             `json:"contentLength"`
	Form          map[string]string `json:"form,omitempty"`
	Files         []File            `json:"files,omitempty"`
	Body          string            `json:"body,omitempty"`
}

// File describes one uploaded file part.
type File struct {
	Field       string `json:"field"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
}

// Decode parses an echo response body.
func Decode(body []byte) (*Echo, error) {
	var e Echo
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("failed to decode echo response: %w", err)
	}
	return &e, nil
}

// Server is the echo server
type Server struct {
	port   int
	delay  time.Duration
	logger *slog.Logger
}

// Option is a functional option for Server
type Option func(*Server)

// WithPort sets the server port
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay holds every response for d before answering
func WithDelay(d time.Duration) Option {
	return func(s *Server) {
		s.delay = d
	}
}

// WithLogger logs one line per request
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new echo server
func NewServer(opts ...Option) *Server {
	s := &Server{
		port:   DefaultPort,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.port
}

// Handler returns the echo handler, for mounting in httptest or a mux.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleRequest)
}

// Start listens on the configured port until the server fails.
func (s *Server) Start() error {
	return s.StartWithContext(context.Background())
}

// StartWithContext starts the server with context for graceful shutdown
func (s *Server) StartWithContext(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve answers requests on ln until ctx is done. A graceful shutdown
// returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("echo server listening", "addr", ln.Addr().String())

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-r.Context().Done():
			return
		}
	}

	e, err := describe(r)
	status := http.StatusOK
	var payload any = e
	if err != nil {
		status = http.StatusBadRequest
		payload = map[string]string{"id": e.ID, "error": err.Error()}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(RequestIDHeader, e.ID)
	w.WriteHeader(status)
	_, _ = w.Write(data)

	s.logger.Info("echo",
		"id", e.ID,
		"method", r.Method,
		"url", r.RequestURI,
		"status", status,
		"files", len(e.Files),
		"duration", time.Since(start),
	)
}

// describe builds the echo document. On a malformed body it returns the
// partially filled document together with the error.
func describe(r *http.Request) (*Echo, error) {
	e := &Echo{
		ID:            uuid.New().String(),
		Method:        r.Method,
		URL:           r.RequestURI,
		HTTPVersion:   fmt.Sprintf("%d.%d", r.ProtoMajor, r.ProtoMinor),
		Headers:       lowerHeaders(r),
		ContentLength: r.ContentLength,
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := readMultipart(r, e); err != nil {
			return e, err
		}
		return e, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return e, fmt.Errorf("failed to read body: %w", err)
	}
	e.Body = string(body)
	return e, nil
}

func lowerHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string, len(r.Header)+1)
	for name, values := range r.Header {
		headers[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	if r.Host != "" {
		headers["host"] = r.Host
	}
	if len(r.TransferEncoding) > 0 {
		headers["transfer-encoding"] = strings.Join(r.TransferEncoding, ", ")
	}
	return headers
}

func readMultipart(r *http.Request, e *Echo) error {
	mr, err := r.MultipartReader()
	if err != nil {
		return fmt.Errorf("invalid multipart body: %w", err)
	}

	e.Form = make(map[string]string)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("invalid multipart body: %w", err)
		}

		if part.FileName() == "" {
			value, err := io.ReadAll(part)
			if err != nil {
				return fmt.Errorf("failed to read field %q: %w", part.FormName(), err)
			}
			e.Form[part.FormName()] = string(value)
			continue
		}

		h := sha256.New()
		n, err := io.Copy(h, part)
		if err != nil {
			return fmt.Errorf("failed to read file %q: %w", part.FileName(), err)
		}
		e.Files = append(e.Files, File{
			Field:       part.FormName(),
			Filename:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Size:        n,
			SHA256:      hex.EncodeToString(h.Sum(nil)),
		})
	}
}
