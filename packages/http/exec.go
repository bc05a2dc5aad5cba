package http

import (
	"bufio"
	"context"
	"errors"
	"net"
	"time"

	"github.com/abdul-hamid-achik/multisync/packages/wire"
)

// pendingRequest is the working state of one call. It never outlives it.
type pendingRequest struct {
	addr           string
	req            *wire.Request
	sent           *SentRequest
	timeout        time.Duration
	connectTimeout time.Duration
}

type result struct {
	resp *Response
	err  error
}

// execute runs the round trip on its own goroutine and blocks the caller
// until exactly one result arrives. The goroutine closes its connection
// before sending, so nothing it opened survives the return.
func (c *Client) execute(ctx context.Context, p *pendingRequest) (*Response, error) {
	resCh := make(chan result, 1)

	go func() {
		resp, err := c.roundTrip(ctx, p)
		resCh <- result{resp: resp, err: err}
	}()

	res := <-resCh
	if res.err != nil {
		return nil, res.err
	}

	c.logger.Debug("request completed",
		"method", p.req.Method,
		"url", p.sent.URL,
		"status", res.resp.StatusCode,
		"bytes", len(res.resp.Body),
		"duration", res.resp.Duration,
	)
	return res.resp, nil
}

func (c *Client) roundTrip(ctx context.Context, p *pendingRequest) (*Response, error) {
	start := time.Now()

	dialCtx := ctx
	if p.connectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, p.connectTimeout)
		defer cancel()
	}

	conn, err := c.dial(dialCtx, "tcp", p.addr)
	if err != nil {
		if ctx.Err() != nil {
			return nil, c.ctxError(ctx, "dial", p, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TimeoutError{Op: "dial", After: p.connectTimeout, Err: err}
		}
		return nil, &ConnectionError{Op: "dial", Addr: p.addr, Err: err}
	}
	defer conn.Close()

	// Unblock any pending read or write once ctx is done.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	connected := time.Now()

	if err := wire.WriteRequest(conn, p.req); err != nil {
		if ctx.Err() != nil {
			return nil, c.ctxError(ctx, "write", p, err)
		}
		return nil, &ConnectionError{Op: "write", Addr: p.addr, Err: err}
	}
	sent := time.Now()

	br := bufio.NewReader(conn)
	if _, err := br.Peek(1); err != nil && ctx.Err() != nil {
		return nil, c.ctxError(ctx, "read", p, err)
	}
	firstByte := time.Now()

	wr, err := wire.ReadResponse(br, p.req.Method)
	if err != nil {
		if ctx.Err() != nil {
			return nil, c.ctxError(ctx, "read", p, err)
		}
		var nerr net.Error
		if errors.As(err, &nerr) && nerr.Timeout() {
			return nil, &TimeoutError{Op: "read", After: p.timeout, Err: err}
		}
		return nil, err
	}
	done := time.Now()

	resp := &Response{
		StatusCode: wr.StatusCode,
		Status:     wr.Status,
		Proto:      wr.Proto,
		Headers:    wr.Headers,
		RawHeaders: wr.RawHeaders,
		Body:       wr.Body,
		HeadSize:   wr.HeadSize,
		RemoteAddr: conn.RemoteAddr().String(),
		Started:    start,
		Duration:   done.Sub(start),
		Timings: Timings{
			Connect: connected.Sub(start),
			Send:    sent.Sub(connected),
			Wait:    firstByte.Sub(sent),
			Receive: done.Sub(firstByte),
		},
		Request: p.sent,
	}
	logger := c.logger
	resp.release = func() {
		logger.Debug("response ended", "url", p.sent.URL)
	}
	return resp, nil
}

// ctxError maps a failure after ctx is done to TimeoutError, or wraps the
// cancellation cause.
func (c *Client) ctxError(ctx context.Context, op string, p *pendingRequest, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Op: op, After: p.timeout, Err: err}
	}
	return &ConnectionError{Op: op, Addr: p.addr, Err: errors.Join(ctx.Err(), err)}
}
