package server

import (
	"context"
	"log/slog"
	"sync"

	"bzot/application/bzot/request"
	iolib "bzot/lib/io"
	"bzot/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type conn struct {
	con transport.Conn

	responder Responder
	metrics   *Metrics
	tracer    trace.Tracer
	clock     clock.Clock

	logger *slog.Logger

	opts Options

	// Guards deadlines, so abort wins over the handler's own timeouts.
	mu      sync.Mutex
	aborted bool
}

// start handles the connection from the first read to close.
// The connection is closed on every path.
func (c *conn) start(ctx context.Context) {
	_, span := c.tracer.Start(ctx, "bzot.conn",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("net.peer.addr", c.con.RemoteAddr().String())),
	)
	defer span.End()

	c.metrics.connOpened()
	defer c.metrics.connClosed()

	defer func() {
		c.logger.Debug("closing connection")
		if err := c.con.Close(); err != nil {
			c.logger.Error("error when closing connection", "error", err)
		}
		c.logger.Info("handler is done")
	}()

	req, err := c.serve()

	if req != nil {
		span.SetAttributes(
			attribute.String("bzot.state", req.State.String()),
			attribute.Int("bzot.request_bytes", len(req.Raw)),
			attribute.Int("bzot.reads", req.Reads),
		)
	}

	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
		c.logger.Debug("request served", "state", req.State, "bytes", len(req.Raw))
	case errors.Is(err, transport.ErrDeadLineExceeded) && c.isAborted():
		span.RecordError(err)
		span.SetStatus(codes.Error, "aborted")
		c.logger.Info("connection aborted by server")
	case errors.Is(err, transport.ErrDeadLineExceeded):
		span.RecordError(err)
		span.SetStatus(codes.Error, "timeout")
		c.logger.Info("timeout exceeded", "error", err)
	case errors.Is(err, transport.ErrConnClosed):
		span.RecordError(err)
		span.SetStatus(codes.Error, "closed")
		c.logger.Error("unexpected connection closure")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Error("unknown error occured", "error", err)
	}
}

// serve reads the request and writes the reply.
// The reply is skipped when reading failed.
func (c *conn) serve() (req *request.Request, err error) {
	defer func() {
		if e := recover(); e != nil {
			req = &request.Request{State: request.StateIOError}
			err = errors.Errorf("handler panicked: %v", e)
		}
	}()

	if banner := c.opts.Reply.Banner; len(banner) > 0 {
		c.setWriteDeadLine()
		if _, err := iolib.WriteFull(c.con, banner); err != nil {
			req = &request.Request{State: request.StateIOError}
			c.metrics.requestRead(req)
			return req, errors.Wrap(err, "writing banner")
		}
	}

	c.setReadDeadLine()

	req, err = request.Read(c.con, request.Options{
		ChunkSize: c.opts.Read.ChunkSize,
		MaxSize:   c.opts.Read.MaxRequestSize,
	})
	c.metrics.requestRead(req)
	if err != nil {
		return req, err
	}

	c.setWriteDeadLine()
	if err := c.responder.Respond(c.con, req); err != nil {
		c.metrics.replyFailed()
		return req, errors.Wrap(err, "writing reply")
	}

	return req, nil
}

func (c *conn) setReadDeadLine() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timeout := c.opts.Timeout.ReadTimeout; timeout > 0 && !c.aborted {
		c.con.SetReadDeadLine(c.clock.Now().Add(timeout))
	}
}

func (c *conn) setWriteDeadLine() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if timeout := c.opts.Timeout.WriteTimeout; timeout > 0 && !c.aborted {
		c.con.SetWriteDeadLine(c.clock.Now().Add(timeout))
	}
}

func (c *conn) isAborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// abort makes pending and future reads and writes fail right away.
// The handler then closes the connection as usual.
func (c *conn) abort() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.aborted = true
	now := c.clock.Now()
	c.con.SetReadDeadLine(now)
	c.con.SetWriteDeadLine(now)
}
