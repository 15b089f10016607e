package pipe

import (
	"context"
	"strings"
	"testing"
	"time"

	"bzot/transport"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"
)

type PipeTransportTestSuite struct {
	suite.Suite

	transport *PipeTransport
}

func TestPipeTransportTestSuite(t *testing.T) {
	suite.Run(t, new(PipeTransportTestSuite))
}

func (s *PipeTransportTestSuite) SetupTest() {
	s.transport = NewPipeTransport(clock.New())
}

func (s *PipeTransportTestSuite) TestListen() {
	addr := Addr{Name: "hey"}

	lis, err := s.transport.Listen(addr)
	s.Require().NoError(err)
	s.Require().NotNil(lis)

	got, ok := s.transport.listeners[addr]
	s.True(ok)
	s.Equal(lis, got)
	s.Equal(transport.Addr(addr), lis.Addr())

	lis, err = s.transport.Listen(addr)
	s.ErrorIs(err, transport.ErrAddrAlreadyInUse)
	s.Nil(lis)
}

func (s *PipeTransportTestSuite) TestDial() {
	addr := Addr{Name: "hey"}

	lis, err := s.transport.Listen(addr)
	s.Require().NoError(err)

	accepted := make(chan transport.Conn, 1)
	go func() {
		conn, err := lis.Accept(context.Background())
		s.NoError(err)
		accepted <- conn
	}()

	conn, err := s.transport.Dial(context.Background(), addr)
	s.Require().NoError(err)
	s.Require().NotNil(conn)

	s.Equal(transport.Addr(addr), conn.RemoteAddr())

	server := <-accepted
	s.Equal(conn.LocalAddr(), server.RemoteAddr())
	s.True(strings.HasPrefix(server.RemoteAddr().String(), "dialer:"))
	s.Equal(1, s.transport.ports.InUse())

	s.NoError(conn.Close())
	s.NoError(server.Close())
	s.Zero(s.transport.ports.InUse())
}

func (s *PipeTransportTestSuite) TestDialUnknown() {
	_, err := s.transport.Dial(context.Background(), Addr{Name: "nowhere"})
	s.ErrorIs(err, transport.ErrNetUnreachable)
}

func (s *PipeTransportTestSuite) TestDialCanceled() {
	addr := Addr{Name: "hey"}
	_, err := s.transport.Listen(addr)
	s.Require().NoError(err)

	// Nobody accepts.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = s.transport.Dial(ctx, addr)
	s.ErrorIs(err, context.DeadlineExceeded)
	s.Zero(s.transport.ports.InUse())
}

func (s *PipeTransportTestSuite) TestClose() {
	addr := Addr{Name: "hey"}
	lis, err := s.transport.Listen(addr)
	s.Require().NoError(err)

	done := make(chan error, 1)
	go func() {
		_, err := lis.Accept(context.Background())
		done <- err
	}()

	s.Require().NoError(lis.Close())
	s.ErrorIs(<-done, transport.ErrConnListenerClosed)
	s.ErrorIs(lis.Close(), transport.ErrConnListenerClosed)

	// The address is free again.
	_, err = s.transport.Dial(context.Background(), addr)
	s.ErrorIs(err, transport.ErrNetUnreachable)

	_, err = s.transport.Listen(addr)
	s.NoError(err)
}

func (s *PipeTransportTestSuite) TestAcceptCanceled() {
	lis, err := s.transport.Listen(Addr{Name: "hey"})
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = lis.Accept(ctx)
	s.ErrorIs(err, context.Canceled)
}
