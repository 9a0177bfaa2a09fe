package scanner

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/bodgit/plumbing"
)

// MAME splits the onboard flash into two chips holding the even and odd
// bytes of each 16-bit word.
const (
	evenSuffix = ".31m"
	oddSuffix  = ".27m"
)

// pairedPath returns the path of the other half of a flash pair.
func pairedPath(path, suffix, other string) (string, bool) {
	if !strings.HasSuffix(strings.ToLower(path), suffix) {
		return "", false
	}
	return path[:len(path)-len(suffix)] + other, true
}

// InterleavedReader reads two streams alternately one byte at a time,
// starting with the even stream. It stops at the end of either stream.
type InterleavedReader struct {
	even, odd *bufio.Reader
	onOdd     bool
}

// NewInterleavedReader returns a reader merging the even and odd bytes of a
// 16-bit bus.
func NewInterleavedReader(even, odd io.Reader) *InterleavedReader {
	return &InterleavedReader{
		even: bufio.NewReader(even),
		odd:  bufio.NewReader(odd),
	}
}

func (r *InterleavedReader) Read(p []byte) (int, error) {
	for n := range p {
		src := r.even
		if r.onOdd {
			src = r.odd
		}

		b, err := src.ReadByte()
		if err != nil {
			if n > 0 && errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		p[n] = b
		r.onOdd = !r.onOdd
	}
	return len(p), nil
}

// Flash sizes. MAME splits the 16 MiB flash into pairs of 2 MiB chips; only
// the first pair holds the header.
const (
	FlashImageSize = 0x1000000
	FlashPairSize  = 0x400000
)

// readInterleaved merges a flash pair. Missing data at the end of short
// dumps reads as erased flash.
func (s *Scanner) readInterleaved(evenPath, oddPath string) ([]byte, error) {
	even, err := s.fs.Open(evenPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = even.Close() }()

	odd, err := s.fs.Open(oddPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = odd.Close() }()

	size := min(int64(FlashPairSize), s.maxFileSize)
	return s.limitedRead(plumbing.PaddedReader(NewInterleavedReader(even, odd), size, 0xff))
}
