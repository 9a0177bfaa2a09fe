package parser

import (
	"log/slog"

	"github.com/richardwooding/cartsleuth/internal/formats"
)

// checksumCandidates lists every distinct checksum algorithm in ascending
// order of its flag byte. Input byte order only matters for 16-bit words.
var checksumCandidates = [...]formats.ChecksumFlags{
	// 0x00
	{Width: formats.ChecksumWidth8},
	{Width: formats.ChecksumWidth8To16},
	{Width: formats.ChecksumWidth16},
	{Width: formats.ChecksumWidth16, InputBigEndian: true},

	// 0x08
	{Width: formats.ChecksumWidth8, OutputBigEndian: true},
	{Width: formats.ChecksumWidth8To16, OutputBigEndian: true},
	{Width: formats.ChecksumWidth16, OutputBigEndian: true},
	{Width: formats.ChecksumWidth16, InputBigEndian: true, OutputBigEndian: true},

	// 0x10
	{Width: formats.ChecksumWidth8, Inverted: true},
	{Width: formats.ChecksumWidth8To16, Inverted: true},
	{Width: formats.ChecksumWidth16, Inverted: true},
	{Width: formats.ChecksumWidth16, InputBigEndian: true, Inverted: true},

	// 0x18
	{Width: formats.ChecksumWidth8, OutputBigEndian: true, Inverted: true},
	{Width: formats.ChecksumWidth8To16, OutputBigEndian: true, Inverted: true},
	{Width: formats.ChecksumWidth16, OutputBigEndian: true, Inverted: true},
	{Width: formats.ChecksumWidth16, InputBigEndian: true, OutputBigEndian: true, Inverted: true},

	// 0x20
	{Width: formats.ChecksumWidth8, ForceGXSpec: true},
	{Width: formats.ChecksumWidth8To16, ForceGXSpec: true},
	{Width: formats.ChecksumWidth16, ForceGXSpec: true},
	{Width: formats.ChecksumWidth16, InputBigEndian: true, ForceGXSpec: true},

	// 0x28
	{Width: formats.ChecksumWidth8, OutputBigEndian: true, ForceGXSpec: true},
	{Width: formats.ChecksumWidth8To16, OutputBigEndian: true, ForceGXSpec: true},
	{Width: formats.ChecksumWidth16, OutputBigEndian: true, ForceGXSpec: true},
	{Width: formats.ChecksumWidth16, InputBigEndian: true, OutputBigEndian: true, ForceGXSpec: true},

	// 0x30
	{Width: formats.ChecksumWidth8, Inverted: true, ForceGXSpec: true},
	{Width: formats.ChecksumWidth8To16, Inverted: true, ForceGXSpec: true},
	{Width: formats.ChecksumWidth16, Inverted: true, ForceGXSpec: true},
	{Width: formats.ChecksumWidth16, InputBigEndian: true, Inverted: true, ForceGXSpec: true},

	// 0x38
	{Width: formats.ChecksumWidth8, OutputBigEndian: true, Inverted: true, ForceGXSpec: true},
	{Width: formats.ChecksumWidth8To16, OutputBigEndian: true, Inverted: true, ForceGXSpec: true},
	{Width: formats.ChecksumWidth16, OutputBigEndian: true, Inverted: true, ForceGXSpec: true},
	{Width: formats.ChecksumWidth16, InputBigEndian: true, OutputBigEndian: true, Inverted: true, ForceGXSpec: true},
}

// DetectChecksum finds the algorithm that produced the checksum stored in a
// header. observed is the stored value read as little endian. A zero checksum
// means the header has none.
func DetectChecksum(window []byte, observed uint16) (formats.ChecksumFlags, error) {
	if observed == 0 {
		return formats.ChecksumFlags{Width: formats.ChecksumWidthNone}, nil
	}
	return searchChecksum(window, observed, true)
}

// searchChecksum returns the first candidate algorithm that computes observed.
// The GX specification override is only tried if allowGX is set.
func searchChecksum(window []byte, observed uint16, allowGX bool) (formats.ChecksumFlags, error) {
	for _, flags := range checksumCandidates {
		if flags.ForceGXSpec && !allowGX {
			continue
		}

		expected := flags.Compute(window)
		slog.Debug("checksum candidate",
			"flags", flags.String(),
			"expected", expected,
			"got", observed)

		if expected == observed {
			return flags, nil
		}
	}

	return formats.ChecksumFlags{}, ErrChecksumFormatUnknown
}
