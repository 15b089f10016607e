// Package tcp adapts kernel TCP sockets to [transport.ConnListener].
package tcp

import (
	"context"
	"io"
	"net"
	"net/netip"
	"os"
	"sync"
	"time"

	"bzot/transport"

	"github.com/pkg/errors"
)

type ListenOptions struct {
	Address string // host:port, empty host means every interface.

	ReuseAddr bool // SO_REUSEADDR
	ReusePort bool // SO_REUSEPORT

	// Listen backlog. Non-positive uses the system maximum.
	// Only honored on linux.
	Backlog int
}

func DefaultListenOptions() ListenOptions {
	return ListenOptions{
		Address:   ":8080",
		ReuseAddr: true,
		ReusePort: true,
		Backlog:   3,
	}
}

type Listener struct {
	l *net.TCPListener
}

var _ transport.ConnListener = (*Listener)(nil)

func Listen(opts ListenOptions) (*Listener, error) {
	l, err := listen(opts)
	if err != nil {
		return nil, err
	}

	tl, ok := l.(*net.TCPListener)
	if !ok {
		l.Close()
		return nil, errors.Errorf("unexpected listener type %T", l)
	}

	return &Listener{l: tl}, nil
}

var aLongTimeAgo = time.Unix(1, 0)

// Accept waits for the next connection. Canceling ctx unblocks it.
func (l *Listener) Accept(ctx context.Context) (transport.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_ = l.l.SetDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() {
		_ = l.l.SetDeadline(aLongTimeAgo)
	})
	defer stop()

	c, err := l.l.AcceptTCP()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, transport.ErrConnListenerClosed
		}
		return nil, errors.Wrap(err, "accept failed on server socket")
	}

	return newConn(c), nil
}

func (l *Listener) Addr() transport.Addr { return l.l.Addr() }

func (l *Listener) Close() error {
	if err := l.l.Close(); err != nil {
		if errors.Is(err, net.ErrClosed) {
			return transport.ErrConnListenerClosed
		}
		return err
	}
	return nil
}

// resolve turns address into a concrete ip:port.
// An empty host becomes 0.0.0.0.
func resolve(address string) (netip.AddrPort, error) {
	ta, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return netip.AddrPort{}, errors.Wrapf(err, "resolving %q", address)
	}

	ap := ta.AddrPort()
	addr := ap.Addr().Unmap()
	if !addr.IsValid() {
		addr = netip.IPv4Unspecified()
	}

	return netip.AddrPortFrom(addr, ap.Port()), nil
}

type conn struct {
	c *net.TCPConn

	once     sync.Once
	closeErr error
}

var _ transport.Conn = (*conn)(nil)

func newConn(c *net.TCPConn) *conn { return &conn{c: c} }

// Dial connects to a TCP address. Mostly useful for tests and tools.
func Dial(ctx context.Context, address string) (transport.Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", address)
	}
	return newConn(c.(*net.TCPConn)), nil
}

func (c *conn) Read(p []byte) (int, error) {
	n, err := c.c.Read(p)
	return n, mapErr(err)
}

func (c *conn) Write(p []byte) (int, error) {
	n, err := c.c.Write(p)
	return n, mapErr(err)
}

// Close is safe to call more than once.
func (c *conn) Close() error {
	c.once.Do(func() { c.closeErr = c.c.Close() })
	return c.closeErr
}

// CloseWrite shuts down the sending side only.
func (c *conn) CloseWrite() error { return mapErr(c.c.CloseWrite()) }

func (c *conn) LocalAddr() transport.Addr  { return c.c.LocalAddr() }
func (c *conn) RemoteAddr() transport.Addr { return c.c.RemoteAddr() }

func (c *conn) SetReadDeadLine(t time.Time)  { _ = c.c.SetReadDeadline(t) }
func (c *conn) SetWriteDeadLine(t time.Time) { _ = c.c.SetWriteDeadline(t) }

func mapErr(err error) error {
	switch {
	case err == nil, err == io.EOF:
		return err
	case errors.Is(err, os.ErrDeadlineExceeded):
		return transport.ErrDeadLineExceeded
	case errors.Is(err, net.ErrClosed):
		return transport.ErrConnClosed
	}
	return errors.Wrap(err, "tcp")
}
