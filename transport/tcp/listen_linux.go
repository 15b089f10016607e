package tcp

import (
	"net"
	"net/netip"
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// listen builds the socket by hand, so the backlog can be set.
func listen(opts ListenOptions) (net.Listener, error) {
	ap, err := resolve(opts.Address)
	if err != nil {
		return nil, err
	}

	sa, family := sockaddr(ap)

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, errors.Wrap(os.NewSyscallError("socket", err), "can't open server socket")
	}

	if err := bindAndListen(fd, sa, opts); err != nil {
		unix.Close(fd)
		return nil, err
	}

	// net.FileListener dups fd, so the file is closed either way.
	f := os.NewFile(uintptr(fd), "tcp:"+ap.String())
	defer f.Close()

	l, err := net.FileListener(f)
	if err != nil {
		return nil, errors.Wrap(err, "wrapping server socket")
	}

	return l, nil
}

func bindAndListen(fd int, sa unix.Sockaddr, opts ListenOptions) error {
	if err := applyReuse(fd, opts); err != nil {
		return err
	}

	if err := unix.Bind(fd, sa); err != nil {
		return errors.Wrap(os.NewSyscallError("bind", err), "bind failed on endpoint socket")
	}

	backlog := opts.Backlog
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}

	if err := unix.Listen(fd, backlog); err != nil {
		return errors.Wrap(os.NewSyscallError("listen", err), "listen failed on endpoint socket")
	}

	return nil
}

func sockaddr(ap netip.AddrPort) (unix.Sockaddr, int) {
	if ap.Addr().Is4() {
		return &unix.SockaddrInet4{Port: int(ap.Port()), Addr: ap.Addr().As4()}, unix.AF_INET
	}
	return &unix.SockaddrInet6{Port: int(ap.Port()), Addr: ap.Addr().As16()}, unix.AF_INET6
}
