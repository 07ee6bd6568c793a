package ics

import "io"

// lineScanner splits a byte stream into lines without read-ahead: it pulls
// one byte at a time, so stopping the scanner leaves every later byte
// unread in the source.
type lineScanner struct {
	src io.ByteReader
	buf [LineCapacity]byte

	lineNo  int
	skipped int
}

func newLineScanner(r io.Reader) *lineScanner {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteAtATime{r: r}
	}
	return &lineScanner{src: br}
}

// next returns the next line without its terminator. Carriage returns are
// dropped. A line longer than LineCapacity is skipped up to and including
// its terminator and the following line is returned instead. A final line
// without a terminator is not returned; io.EOF is.
//
// The returned slice aliases the scanner's buffer and is valid until the
// next call.
func (s *lineScanner) next() ([]byte, error) {
	for {
		n := 0
		overflow := false
		for {
			b, err := s.src.ReadByte()
			if err != nil {
				return nil, err
			}
			if b == '\n' {
				break
			}
			if b == '\r' || overflow {
				continue
			}
			if n == len(s.buf) {
				overflow = true
				continue
			}
			s.buf[n] = b
			n++
		}
		s.lineNo++
		if overflow {
			s.skipped++
			continue
		}
		return s.buf[:n], nil
	}
}

// byteAtATime adapts a plain io.Reader without buffering.
type byteAtATime struct {
	r io.Reader
	b [1]byte
}

func (r *byteAtATime) ReadByte() (byte, error) {
	for {
		n, err := r.r.Read(r.b[:])
		if n == 1 {
			return r.b[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}
