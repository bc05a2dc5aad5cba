package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/abdul-hamid-achik/multisync/packages/formdata"
	"github.com/abdul-hamid-achik/multisync/packages/wire"
)

const (
	// DefaultConnectTimeout bounds the dial when nothing else is configured.
	DefaultConnectTimeout = 30 * time.Second
)

// DialFunc opens the connection for one request.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Client holds configuration only. Every call owns its connection, so a
// Client is safe for concurrent use.
type Client struct {
	timeout        time.Duration
	connectTimeout time.Duration
	defaultHeaders map[string]string
	logger         *slog.Logger
	dial           DialFunc
	encoder        *formdata.Encoder
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		connectTimeout: DefaultConnectTimeout,
		defaultHeaders: make(map[string]string),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		encoder:        formdata.NewEncoder(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.dial == nil {
		d := &net.Dialer{}
		c.dial = d.DialContext
	}

	return c
}

// WithTimeout bounds every exchange. Zero means no deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithConnectTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

func WithUserAgent(ua string) ClientOption {
	return WithDefaultHeader("User-Agent", ua)
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDialer replaces the TCP dialer.
func WithDialer(dial DialFunc) ClientOption {
	return func(c *Client) {
		c.dial = dial
	}
}

// WithEncoder replaces the multipart encoder, e.g. to fix the boundary.
func WithEncoder(e *formdata.Encoder) ClientOption {
	return func(c *Client) {
		if e != nil {
			c.encoder = e
		}
	}
}

// DefaultClient is used by Request.
var DefaultClient = NewClient()

// Request sends opts with DefaultClient and blocks until the whole
// response has been received.
func Request(opts *Options) (*Response, error) {
	return DefaultClient.Do(opts)
}

func (c *Client) Do(opts *Options) (*Response, error) {
	return c.DoContext(context.Background(), opts)
}

// DoContext is Do with a caller context. Cancellation or deadline expiry
// aborts the exchange and closes the connection before returning.
func (c *Client) DoContext(ctx context.Context, opts *Options) (*Response, error) {
	p, err := c.prepare(opts)
	if err != nil {
		return nil, err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	return c.execute(ctx, p)
}

// prepare validates options and builds the wire request. The attachment
// file is the only I/O performed here.
func (c *Client) prepare(opts *Options) (*pendingRequest, error) {
	if opts == nil {
		return nil, errors.New("nil request options")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	file, err := formdata.NewFilePart(opts.CopyName, opts.File)
	if err != nil {
		return nil, err
	}

	var (
		body        []byte
		contentType string
		parts       []formdata.Part
	)
	if file != nil || len(opts.Fields) > 0 {
		if len(opts.Body) > 0 {
			return nil, &InvalidAttachmentError{
				FieldName: opts.CopyName,
				Path:      opts.File,
				Reason:    "raw body cannot be combined with form fields or a file",
			}
		}
		encoded, err := c.encoder.Encode(opts.Fields, file)
		if err != nil {
			return nil, err
		}
		body = encoded.Bytes
		contentType = encoded.ContentType
		parts = encoded.Parts
	} else {
		body = opts.Body
	}

	method := opts.method(len(body) > 0 || parts != nil)
	header := buildHeader(opts.hostHeader(), method, c.defaultHeaders, opts.Headers, contentType, body)

	req := &wire.Request{
		Method: method,
		Path:   opts.path(),
		Header: header,
		Body:   body,
	}
	if err := req.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidOptions, err)
	}

	p := &pendingRequest{
		addr: opts.addr(),
		req:  req,
		sent: &SentRequest{
			Method:      method,
			URL:         opts.URL(),
			Proto:       "HTTP/1.1",
			Header:      header,
			HeadSize:    req.HeadSize(),
			Body:        body,
			ContentType: header.Get("Content-Type"),
			Parts:       parts,
		},
		timeout:        c.timeout,
		connectTimeout: c.connectTimeout,
	}
	if opts.Timeout > 0 {
		p.timeout = opts.Timeout
	}
	if opts.ConnectTimeout > 0 {
		p.connectTimeout = opts.ConnectTimeout
	}
	return p, nil
}
