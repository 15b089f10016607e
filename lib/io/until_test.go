package iolib

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"bzot/lib/io/iotest"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUntil(t *testing.T, r *iotest.ChunkReader, chunkSize uint) *UntilReader {
	t.Helper()
	ur, err := NewUntilReader(r, crlf2, UntilOptions{ChunkSize: chunkSize})
	require.NoError(t, err)
	return ur
}

func TestReadUntil(t *testing.T) {
	request := []byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n")

	testcases := []struct {
		desc     string
		chunks   [][]byte
		expected []byte
		found    bool
		reads    int
	}{
		{
			desc:     "one chunk",
			chunks:   [][]byte{request},
			expected: request,
			found:    true,
			reads:    2, // 20 bytes, then the remaining 7.
		},
		{
			desc:     "two chunks",
			chunks:   [][]byte{[]byte("GET / HTTP/1.1\r\n"), []byte("Host: x\r\n\r\n")},
			expected: request,
			found:    true,
			reads:    3, // 16, 4, 7.
		},
		{
			desc:     "closed before terminator",
			chunks:   [][]byte{[]byte("GET / HTTP/1.1\r\n")},
			expected: []byte("GET / HTTP/1.1\r\n"),
			found:    false,
			reads:    1,
		},
		{
			desc:     "straddling terminator",
			chunks:   [][]byte{[]byte("GET /\r\n"), []byte("\r\nX")},
			expected: []byte("GET /\r\n\r\nX"),
			found:    true,
			reads:    2,
		},
		{
			desc:     "nothing sent",
			chunks:   nil,
			expected: nil,
			found:    false,
			reads:    0,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			ur := newUntil(t, iotest.NewChunkReader(tc.chunks...), 20)

			buf, end, found, err := ur.ReadUntil()
			require.NoError(t, err)

			assert.Equal(t, tc.found, found)
			assert.Equal(t, string(tc.expected), string(buf))
			assert.Equal(t, tc.reads, ur.Reads())
			if found {
				assert.True(t, bytes.HasSuffix(buf[:end], crlf2))
			}
		})
	}
}

func TestReadUntilStopsAtError(t *testing.T) {
	boom := errors.New("boom")
	r := iotest.NewChunkReader([]byte("GET /"))
	r.Err = boom

	ur := newUntil(t, r, 20)

	buf, _, found, err := ur.ReadUntil()
	assert.ErrorIs(t, err, boom)
	assert.False(t, found)
	assert.Equal(t, []byte("GET /"), buf)
	// One read with data, one failing read, nothing after.
	assert.Equal(t, 2, r.Reads())
}

func TestReadUntilGrowth(t *testing.T) {
	// Exactly one full chunk without terminator, then the terminator.
	r := iotest.NewChunkReader(bytes.Repeat([]byte("a"), 20), crlf2)
	ur := newUntil(t, r, 20)

	_, _, found, err := ur.ReadUntil()
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 40, ur.Cap())
}

func TestReadUntilMaxSize(t *testing.T) {
	r := iotest.NewChunkReader(bytes.Repeat([]byte("a"), 100))
	ur, err := NewUntilReader(r, crlf2, UntilOptions{ChunkSize: 20, MaxSize: 30})
	require.NoError(t, err)

	buf, _, found, err := ur.ReadUntil()
	assert.ErrorIs(t, err, ErrBufferFull)
	assert.False(t, found)
	assert.Len(t, buf, 30)
}

func TestNewUntilReaderInvalid(t *testing.T) {
	_, err := NewUntilReader(bytes.NewReader(nil), nil, UntilOptions{ChunkSize: 20})
	assert.ErrorIs(t, err, ErrZeroLenDelim)

	_, err = NewUntilReader(bytes.NewReader(nil), crlf2, UntilOptions{})
	assert.Error(t, err)
}

func TestReadUntilChunkingInvariance(t *testing.T) {
	inputs := [][]byte{
		[]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"),
		[]byte("GET / HTTP/1.1\r\nHost: x\r\n"),
		[]byte("\r\n\r\n"),
		[]byte("\r\n\r"),
		[]byte("a\r\nb\r\n\r\nc"),
		bytes.Repeat([]byte("\r\n"), 30),
		append(bytes.Repeat([]byte("abc\r\n"), 15), '\r', '\n'),
	}

	rnd := rand.New(rand.NewPCG(1, 2))

	for _, input := range inputs {
		wantFound := bytes.Contains(input, crlf2)
		wantHead := input
		if wantFound {
			wantHead = input[:bytes.Index(input, crlf2)+len(crlf2)]
		}

		chunkings := [][][]byte{
			{input},
			iotest.Split(input, 1),
			iotest.Split(input, 3),
		}
		for range 20 {
			var offsets []int
			for off := rnd.IntN(5) + 1; off < len(input); off += rnd.IntN(7) + 1 {
				offsets = append(offsets, off)
			}
			chunkings = append(chunkings, iotest.SplitAt(input, offsets...))
		}

		for _, chunks := range chunkings {
			for _, chunkSize := range []uint{1, 4, 20} {
				ur := newUntil(t, iotest.NewChunkReader(chunks...), chunkSize)

				buf, end, found, err := ur.ReadUntil()
				require.NoError(t, err)
				require.Equal(t, wantFound, found, "input=%q chunks=%q", input, chunks)

				if found {
					assert.Equal(t, wantHead, buf[:end])
				} else {
					assert.Equal(t, input, buf)
				}
			}
		}
	}
}
