package iolib

import (
	"io"

	"github.com/pkg/errors"
)

var ErrBufferFull = errors.New("buffer reached its size limit")

// Same bound as bufio uses for readers returning (0, nil).
const maxConsecutiveEmptyReads = 100

// GrowBuffer accumulates bytes read from a reader into one contiguous slice.
// Its capacity is always a multiple of the chunk size and only grows,
// by exactly one chunk, when the previous capacity was filled completely.
type GrowBuffer struct {
	buf   []byte
	chunk int
	max   int // 0 means unbounded.

	err error // sticky error from a read that also returned data.
}

// NewGrowBuffer creates an empty buffer. chunkSize MUST be more than 0.
func NewGrowBuffer(chunkSize, maxSize uint) *GrowBuffer {
	if chunkSize == 0 {
		panic("chunk size cannot be 0")
	}

	return &GrowBuffer{chunk: int(chunkSize), max: int(maxSize)}
}

// Append reads once from r into the free tail of the buffer.
// It returns io.EOF when r has no more data.
func (b *GrowBuffer) Append(r io.Reader) (int, error) {
	if b.err != nil {
		err := b.err
		b.err = nil
		return 0, err
	}

	if b.max > 0 && len(b.buf) >= b.max {
		return 0, ErrBufferFull
	}

	if len(b.buf) == cap(b.buf) {
		b.grow()
	}

	tail := b.buf[len(b.buf):cap(b.buf)]
	if b.max > 0 && len(b.buf)+len(tail) > b.max {
		tail = tail[:b.max-len(b.buf)]
	}

	for empty := 0; empty < maxConsecutiveEmptyReads; empty++ {
		n, err := r.Read(tail)
		if n < 0 || n > len(tail) {
			return 0, errors.Errorf("reader returned invalid count %d", n)
		}
		b.buf = b.buf[:len(b.buf)+n]

		switch {
		case n > 0:
			// Report the bytes now, the error on the next call.
			if err != nil && err != io.EOF {
				err = errors.Wrap(err, "reading from source")
			}
			b.err = err
			return n, nil
		case err == io.EOF:
			return 0, io.EOF
		case err != nil:
			return 0, errors.Wrap(err, "reading from source")
		}
	}

	return 0, io.ErrNoProgress
}

func (b *GrowBuffer) grow() {
	grown := make([]byte, len(b.buf), cap(b.buf)+b.chunk)
	copy(grown, b.buf)
	b.buf = grown
}

// Bytes returns everything accumulated so far.
// The slice aliases the buffer and is only valid until the next Append.
func (b *GrowBuffer) Bytes() []byte { return b.buf }
func (b *GrowBuffer) Len() int      { return len(b.buf) }
func (b *GrowBuffer) Cap() int      { return cap(b.buf) }
