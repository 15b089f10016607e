package iolib

import (
	"io"

	"github.com/pkg/errors"
)

var ErrZeroLenDelim = errors.New("delim has zero length")

type UntilOptions struct {
	ChunkSize uint // Bytes requested per read. Must be more than 0.
	MaxSize   uint // 0 means unbounded.
}

// UntilReader reads from r into a [GrowBuffer] until delim shows up
// or r runs out of data.
type UntilReader struct {
	r io.Reader

	buf     *GrowBuffer
	scanner DelimScanner

	reads int
}

func NewUntilReader(r io.Reader, delim []byte, opts UntilOptions) (*UntilReader, error) {
	if len(delim) == 0 {
		return nil, ErrZeroLenDelim
	}
	if opts.ChunkSize == 0 {
		return nil, errors.New("chunk size must be more than 0")
	}

	return &UntilReader{
		r:       r,
		buf:     NewGrowBuffer(opts.ChunkSize, opts.MaxSize),
		scanner: DelimScanner{Delim: delim},
	}, nil
}

// ReadUntil keeps reading until the delimiter is found, r returns io.EOF,
// or r fails. On failure no more reads are attempted and the bytes read
// so far are returned along with the error.
//
// buf holds every byte read, including any that arrived after the delimiter
// in the same read. end is the index just past the delimiter when found.
func (ur *UntilReader) ReadUntil() (buf []byte, end int, found bool, err error) {
	for {
		n, err := ur.buf.Append(ur.r)
		if err == io.EOF {
			return ur.buf.Bytes(), 0, false, nil
		}
		if err != nil {
			return ur.buf.Bytes(), 0, false, err
		}
		ur.reads++

		if n == 0 {
			continue
		}

		if end, found := ur.scanner.Scan(ur.buf.Bytes()); found {
			return ur.buf.Bytes(), end, true, nil
		}
	}
}

// Reads returns how many reads returned data.
func (ur *UntilReader) Reads() int { return ur.reads }

// Cap returns the capacity of the underlying buffer.
func (ur *UntilReader) Cap() int { return ur.buf.Cap() }
