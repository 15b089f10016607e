// Package request reads a request head off a connection.
//
// Bytes are read in fixed size chunks into a growing buffer until the
// terminator "\r\n\r\n" shows up or the peer stops sending.
package request

import (
	"io"

	iolib "bzot/lib/io"

	"github.com/pkg/errors"
)

// Terminator marks the end of a request head.
var Terminator = []byte("\r\n\r\n")

const DefaultChunkSize = 20

type State uint8

const (
	StateReading State = iota
	StateTerminatorFound
	StateStreamEnded
	StateIOError
)

func (s State) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateTerminatorFound:
		return "terminator_found"
	case StateStreamEnded:
		return "stream_ended"
	case StateIOError:
		return "io_error"
	}
	return "unknown"
}

// Replyable reports whether a reply should be written in this state.
func (s State) Replyable() bool {
	return s == StateTerminatorFound || s == StateStreamEnded
}

type Request struct {
	// Every byte read from the connection.
	Raw   []byte
	State State

	// Length of the head including the terminator. Zero unless terminator was found.
	HeadLen int

	// Number of reads that returned data.
	Reads int
}

// Head returns the bytes up to and including the terminator.
// Without a terminator it is everything received.
func (r *Request) Head() []byte {
	if r.State == StateTerminatorFound {
		return r.Raw[:r.HeadLen]
	}
	return r.Raw
}

type Options struct {
	ChunkSize uint // 0 uses DefaultChunkSize.
	MaxSize   uint // 0 means unbounded.
}

// Read reads from r until the terminator is found or r is exhausted.
//
// A non-nil error means StateIOError. The returned request is never nil,
// so the bytes read before the failure are still available.
func Read(r io.Reader, opts Options) (*Request, error) {
	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}

	ur, err := iolib.NewUntilReader(r, Terminator, iolib.UntilOptions{
		ChunkSize: chunkSize,
		MaxSize:   opts.MaxSize,
	})
	if err != nil {
		return &Request{State: StateIOError}, err
	}

	buf, end, found, err := ur.ReadUntil()
	req := &Request{Raw: buf, Reads: ur.Reads()}

	switch {
	case err != nil:
		req.State = StateIOError
		return req, errors.Wrap(err, "reading request")
	case found:
		req.State = StateTerminatorFound
		req.HeadLen = end
	default:
		req.State = StateStreamEnded
	}

	return req, nil
}
