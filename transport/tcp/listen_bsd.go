//go:build darwin || dragonfly || freebsd || netbsd || openbsd

package tcp

import (
	"context"
	"net"
	"syscall"

	"github.com/pkg/errors"
)

// Backlog is left to the runtime here.
func listen(opts ListenOptions) (net.Listener, error) {
	ap, err := resolve(opts.Address)
	if err != nil {
		return nil, err
	}

	listenConfig := new(net.ListenConfig)
	listenConfig.Control = func(network string, address string, rawConn syscall.RawConn) error {
		var serr error
		if err := rawConn.Control(func(fd uintptr) {
			serr = applyReuse(int(fd), opts)
		}); err != nil {
			return err
		}
		return serr
	}

	l, err := listenConfig.Listen(context.Background(), "tcp", ap.String())
	if err != nil {
		return nil, errors.Wrap(err, "listen failed on endpoint socket")
	}
	return l, nil
}
