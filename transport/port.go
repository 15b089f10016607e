package transport

import (
	"sync"

	"github.com/pkg/errors"
)

var ErrNoPortAvailable = errors.New("no port available")

// PortTable hands out ports that are unique while held.
// In-memory transports use it to give each dialed connection its own address.
type PortTable struct {
	table map[uint16]struct{}
	mu    sync.Mutex

	ephemeral [2]uint16 // [start, end)
	rand      func() uint16
	maxTry    uint
}

type EphemeralPortOptions struct {
	Range  [2]uint16 // [start, end)
	Rand   func() uint16
	MaxTry uint
}

func (o EphemeralPortOptions) validate() error {
	if o.Range[0] >= o.Range[1] {
		return errors.Errorf("end(%d) must be greater than start(%d)", o.Range[1], o.Range[0])
	}
	if o.Rand == nil {
		return errors.New("rand function must be provided")
	}
	return nil
}

func NewPortTable(opts EphemeralPortOptions) (*PortTable, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	return &PortTable{
		table:     make(map[uint16]struct{}),
		ephemeral: opts.Range,
		rand:      opts.Rand,
		maxTry:    max(opts.MaxTry, 1),
	}, nil
}

// Occupy reserves port, or a random ephemeral port when port is 0.
// release frees it again and is safe to call more than once.
func (p *PortTable) Occupy(port uint16) (result uint16, release func(), err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if port != 0 {
		if release, ok := p.occupyLocked(port); ok {
			return port, release, nil
		}
		return 0, nil, ErrAddrAlreadyInUse
	}

	for try := uint(0); try < p.maxTry; try++ {
		port := p.selectEphemeral()
		if release, ok := p.occupyLocked(port); ok {
			return port, release, nil
		}
	}

	return 0, nil, ErrNoPortAvailable
}

func (p *PortTable) occupyLocked(port uint16) (release func(), ok bool) {
	if _, found := p.table[port]; found {
		return nil, false
	}

	p.table[port] = struct{}{}

	var once sync.Once
	release = func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.table, port)
		})
	}

	return release, true
}

func (p *PortTable) selectEphemeral() uint16 {
	gap := p.ephemeral[1] - p.ephemeral[0]
	return p.ephemeral[0] + (p.rand() % gap)
}

// InUse returns how many ports are held.
func (p *PortTable) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.table)
}
