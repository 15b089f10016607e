// Package iotest has readers that deliver data in controlled pieces.
package iotest

import (
	"io"
	"sync"
)

// ChunkReader returns one chunk per Read, then Err (io.EOF if nil).
// A chunk bigger than the caller's slice is delivered over several reads
// without merging into the next chunk.
type ChunkReader struct {
	chunks [][]byte
	Err    error

	mu    sync.Mutex
	reads int
}

func NewChunkReader(chunks ...[]byte) *ChunkReader {
	return &ChunkReader{chunks: append([][]byte(nil), chunks...)}
}

func (r *ChunkReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reads++

	for len(r.chunks) > 0 && len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}

	if len(r.chunks) == 0 {
		if r.Err != nil {
			return 0, r.Err
		}
		return 0, io.EOF
	}

	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	return n, nil
}

// Reads returns how many times Read was called.
func (r *ChunkReader) Reads() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

// Split cuts data into pieces of size bytes. The last piece may be shorter.
func Split(data []byte, size int) [][]byte {
	if size <= 0 {
		size = 1
	}

	var chunks [][]byte
	for len(data) > size {
		chunks = append(chunks, data[:size])
		data = data[size:]
	}
	return append(chunks, data)
}

// SplitAt cuts data at the given offsets.
func SplitAt(data []byte, offsets ...int) [][]byte {
	var chunks [][]byte
	prev := 0
	for _, off := range offsets {
		chunks = append(chunks, data[prev:off])
		prev = off
	}
	return append(chunks, data[prev:])
}
