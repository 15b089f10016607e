package server

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bzot/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "bzot/server"

// Backoff bounds for temporary accept failures.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

type Server struct {
	l transport.ConnListener

	cancelAccept func()
	startOnce    sync.Once
	stopOnce     sync.Once
	acceptDone   chan struct{}
	acceptErr    error
	wg           sync.WaitGroup

	// Connections being handled, so Close can unblock them.
	mu    sync.Mutex
	conns map[*conn]struct{}

	logger *slog.Logger
	opts   Options

	responder Responder
	tracer    trace.Tracer
	clock     clock.Clock
}

func New(
	l transport.ConnListener,
	logger *slog.Logger,
	clock clock.Clock,
	opts Options,
) *Server {
	s := &Server{
		l:          l,
		logger:     logger,
		opts:       opts,
		clock:      clock,
		responder:  opts.Reply.Responder,
		conns:      make(map[*conn]struct{}),
		acceptDone: make(chan struct{}),
	}

	if s.responder == nil {
		s.responder = FixedReply(DefaultReply)
	}

	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	s.tracer = tp.Tracer(tracerName)

	return s
}

// Start accepts connections in the background.
// Every connection is handled by its own goroutine.
// Calls after the first, or after Close, do nothing.
func (s *Server) Start() {
	s.startOnce.Do(s.start)
}

func (s *Server) start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelAccept = cancel

	s.logger.Info("waiting for incoming connections", "addr", s.l.Addr())

	go func() {
		defer close(s.acceptDone)
		s.acceptErr = s.acceptLoop(ctx)
	}()
}

// acceptLoop returns nil once the server is stopped, or the error that
// made accepting impossible.
func (s *Server) acceptLoop(ctx context.Context) error {
	var delay time.Duration

	for {
		conn, err := s.acceptConn(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) ||
				errors.Is(err, transport.ErrConnListenerClosed) {
				return nil
			}

			if !isTemporary(err) {
				s.logger.Error(
					"unexpected error when accepting connection",
					"error", err.Error(),
				)
				return err
			}

			delay = min(max(2*delay, minAcceptDelay), maxAcceptDelay)
			s.logger.Warn("accept failed, retrying", "error", err.Error(), "delay", delay)

			select {
			case <-ctx.Done():
				return nil
			case <-s.clock.After(delay):
			}
			continue
		}
		delay = 0

		conn.logger.Info("connection accepted")

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			conn.start(ctx)
		}()
	}
}

// Wait blocks until the accept loop has ended. It returns nil when the
// server was stopped, or the error that ended accepting.
func (s *Server) Wait() error {
	<-s.acceptDone
	return s.acceptErr
}

// isTemporary reports whether err is worth retrying, like
// running out of file descriptors.
func isTemporary(err error) bool {
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}

func (s *Server) acceptConn(ctx context.Context) (*conn, error) {
	con, err := s.l.Accept(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listening for connection")
	}

	conn := &conn{
		con:       con,
		responder: s.responder,
		opts:      s.opts,
		metrics:   s.opts.Metrics,
		tracer:    s.tracer,
		logger:    s.logger.With("conn", con.RemoteAddr()),
		clock:     s.clock,
	}
	s.track(conn)

	return conn, nil
}

func (s *Server) track(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = struct{}{}
}

func (s *Server) untrack(c *conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
}

func (s *Server) stopAccepting() {
	// A server that was never started must not start later.
	s.startOnce.Do(func() { close(s.acceptDone) })

	s.stopOnce.Do(func() {
		if s.cancelAccept != nil {
			s.cancelAccept()
		}
		if err := s.l.Close(); err != nil && !errors.Is(err, transport.ErrConnListenerClosed) {
			s.logger.Error("error when closing listener", "error", err)
		}
	})
	<-s.acceptDone
}

// Shutdown stops accepting and waits for running handlers.
// When ctx is done first, the remaining connections are aborted.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopAccepting()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.abortConns()
		<-done
		return ctx.Err()
	}
}

// Close stops accepting, aborts every connection and waits for handlers to return.
func (s *Server) Close() error {
	s.stopAccepting()
	s.abortConns()
	s.wg.Wait()
	return nil
}

// abortConns unblocks every handler. Handlers close their own connection.
func (s *Server) abortConns() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for c := range s.conns {
		c.abort()
	}
}
