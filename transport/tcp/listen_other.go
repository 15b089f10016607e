//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd

package tcp

import (
	"net"

	"github.com/pkg/errors"
)

// Socket options and backlog are not supported on this platform.
func listen(opts ListenOptions) (net.Listener, error) {
	ap, err := resolve(opts.Address)
	if err != nil {
		return nil, err
	}

	l, err := net.Listen("tcp", ap.String())
	if err != nil {
		return nil, errors.Wrap(err, "listen failed on endpoint socket")
	}
	return l, nil
}
