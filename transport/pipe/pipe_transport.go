package pipe

import (
	"context"
	"math/rand/v2"
	"strconv"
	"sync"

	"bzot/transport"

	"github.com/benbjohnson/clock"
)

type pipeRequest struct {
	conn     *pipe
	accepted chan struct{}
}

// PipeTransport connects dialers and listeners in memory.
type PipeTransport struct {
	listeners map[Addr]*pipeListener
	ports     *transport.PortTable
	clock     clock.Clock

	mu sync.Mutex
}

func NewPipeTransport(clock clock.Clock) *PipeTransport {
	ports, err := transport.NewPortTable(transport.EphemeralPortOptions{
		Range:  [2]uint16{49152, 65535},
		Rand:   func() uint16 { return uint16(rand.Uint32()) },
		MaxTry: 100,
	})
	if err != nil {
		panic(err)
	}

	return &PipeTransport{
		listeners: make(map[Addr]*pipeListener),
		ports:     ports,
		clock:     clock,
	}
}

var _ transport.ConnDialer = (*PipeTransport)(nil)

func (pt *PipeTransport) Dial(ctx context.Context, addr transport.Addr) (transport.Conn, error) {
	a, ok := addr.(Addr)
	if !ok {
		return nil, transport.ErrNetUnreachable
	}

	pt.mu.Lock()
	listener, ok := pt.listeners[a]
	pt.mu.Unlock()

	if !ok {
		return nil, transport.ErrNetUnreachable
	}

	// Every dialer gets its own address, so connections can be told apart.
	port, release, err := pt.ports.Occupy(0)
	if err != nil {
		return nil, err
	}

	p1, p2 := NewPair("dialer:"+strconv.Itoa(int(port)), a.Name, pt.clock)
	p1.onClose = release

	req := pipeRequest{
		conn:     p2,
		accepted: make(chan struct{}, 1),
	}

	select {
	case <-ctx.Done():
		p1.Close()
		return nil, ctx.Err()
	case <-listener.closed:
		p1.Close()
		return nil, transport.ErrConnRefused
	case listener.requests <- req:
	}

	select {
	case <-ctx.Done():
		p1.Close()
		return nil, ctx.Err()
	case <-req.accepted:
	}

	return p1, nil
}

func (pt *PipeTransport) Listen(addr Addr) (*pipeListener, error) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if _, ok := pt.listeners[addr]; ok {
		return nil, transport.ErrAddrAlreadyInUse
	}

	pl := &pipeListener{
		addr:      addr,
		transport: pt,
		requests:  make(chan pipeRequest),
		closed:    make(chan struct{}),
	}
	pt.listeners[addr] = pl

	return pl, nil
}

type pipeListener struct {
	addr Addr

	transport *PipeTransport

	requests chan pipeRequest
	closed   chan struct{}

	once sync.Once
}

var _ transport.ConnListener = (*pipeListener)(nil)

func (pl *pipeListener) Addr() transport.Addr { return pl.addr }

func (pl *pipeListener) Accept(ctx context.Context) (transport.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-pl.closed:
		return nil, transport.ErrConnListenerClosed
	case request := <-pl.requests:
		// accepted is buffered, so this never blocks.
		request.accepted <- struct{}{}
		return request.conn, nil
	}
}

func (pl *pipeListener) Close() error {
	err := transport.ErrConnListenerClosed
	pl.once.Do(func() {
		close(pl.closed)

		pl.transport.mu.Lock()
		delete(pl.transport.listeners, pl.addr)
		pl.transport.mu.Unlock()

		err = nil
	})
	return err
}
