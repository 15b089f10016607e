// Package transport defines the connection source the server reads from.
// Implementations live in sub packages: tcp for real sockets,
// pipe for in-memory connections.
package transport

type Protocol string

const (
	TCP  Protocol = "tcp"
	Pipe Protocol = "pipe"
)

// Addr is satisfied by [net.Addr].
type Addr interface {
	Network() string
	String() string
}
