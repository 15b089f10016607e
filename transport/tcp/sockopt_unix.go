//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package tcp

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func setSockOpt(fd, option int, enable bool) error {
	yes := 0
	if enable {
		yes = 1
	}
	return os.NewSyscallError("setsockopt", unix.SetsockoptInt(fd, unix.SOL_SOCKET, option, yes))
}

func applyReuse(fd int, opts ListenOptions) error {
	if opts.ReuseAddr {
		if err := setSockOpt(fd, unix.SO_REUSEADDR, true); err != nil {
			return errors.Wrap(err, "setting SO_REUSEADDR")
		}
	}
	if opts.ReusePort {
		if err := setSockOpt(fd, unix.SO_REUSEPORT, true); err != nil {
			return errors.Wrap(err, "setting SO_REUSEPORT")
		}
	}
	return nil
}
