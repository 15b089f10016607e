package iolib

import "bytes"

// ContainsDelim reports whether delim appears anywhere in b.
func ContainsDelim(b, delim []byte) bool {
	return len(delim) > 0 && bytes.Contains(b, delim)
}

// DelimScanner finds a delimiter in a buffer that grows between calls.
// Only the bytes appended since the previous call are searched, together with
// the last len(Delim)-1 bytes before them, so a delimiter split across two
// appends is still found.
type DelimScanner struct {
	Delim []byte

	scanned int
	end     int
	found   bool
}

// Scan returns the index just past the first delimiter in b.
// b must be the same growing buffer on every call.
func (s *DelimScanner) Scan(b []byte) (end int, found bool) {
	if s.found {
		return s.end, true
	}
	if len(s.Delim) == 0 {
		return 0, false
	}

	from := max(0, s.scanned-(len(s.Delim)-1))
	if idx := bytes.Index(b[from:], s.Delim); idx >= 0 {
		s.found = true
		s.end = from + idx + len(s.Delim)
		return s.end, true
	}

	s.scanned = len(b)
	return 0, false
}

func (s *DelimScanner) Reset() { *s = DelimScanner{Delim: s.Delim} }
