package parser

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/richardwooding/cartsleuth/internal/cartridge"
	"github.com/richardwooding/cartsleuth/internal/formats"
)

// Header layout sizes.
const (
	RegionOnlyHeaderSize = 4
	BasicHeaderSize      = 8
	ExtendedHeaderSize   = 16

	PublicIDBlockSize  = 2 * cartridge.IDLength
	PrivateIDBlockSize = 4 * cartridge.IDLength

	basicChecksumLength    = 4
	extendedChecksumLength = 14
)

// spec[0] is always G and spec[1] the product type ('*' is a wildcard).
// Codes range from 700-999 then A00-D99. The first region letter is the
// market (Asia, Europe, Japan, Korea, Singapore, US), the second the major
// version and the optional suffix the minor version.
var (
	specificationPattern = regexp.MustCompile(`^G[A-Z*]$`)
	codePattern          = regexp.MustCompile(`^[0-9A-D][0-9]{2}$`)
	regionPattern        = regexp.MustCompile(`(?i)^[AEJKSU][A-FR-WX-Z]([A-D]|Z[0-9]{2})?$`)
)

// Header is the result of header detection.
type Header struct {
	Flags     formats.HeaderFlags
	Checksum  formats.ChecksumFlags
	YearField formats.YearField

	// Specification is empty for layouts that do not store one
	Specification string
	Code          string
	Region        string

	// Offsets of the identifier blocks within Data, or -1 if the layout has
	// no such block
	PrivateIDOffset int
	PublicIDOffset  int

	// Data is the buffer the header was found in, unscrambled if needed
	Data []byte
}

// GameCode returns the full game code (e.g. "GN845"), or an empty string if
// the header does not store one.
func (h *Header) GameCode() string {
	if h.Specification == "" || h.Code == "" {
		return ""
	}
	return h.Specification + h.Code
}

type headerCandidate struct {
	format    formats.FormatType
	scrambled bool
	public    bool
}

func (c headerCandidate) flags() formats.HeaderFlags {
	return formats.HeaderFlags{
		Format:       c.format,
		Scrambled:    c.scrambled,
		InPublicArea: c.public,
	}
}

// headerCandidates is tried in order. Extended layouts must come before the
// shorter ones, which also accept the beginning of an extended header.
var headerCandidates = [...]headerCandidate{
	{formats.FormatExtended, false, false},
	{formats.FormatExtended, false, true},
	{formats.FormatExtended, true, false},
	{formats.FormatExtended, true, true},

	{formats.FormatEarlyExtended, false, false},
	{formats.FormatEarlyExtended, false, true},
	{formats.FormatEarlyExtended, true, false},
	{formats.FormatEarlyExtended, true, true},

	{formats.FormatBasic, false, false},
	{formats.FormatBasic, false, true},
	{formats.FormatBasic, true, false},
	{formats.FormatBasic, true, true},

	{formats.FormatRegionOnly, false, false},
	{formats.FormatRegionOnly, false, true},
	{formats.FormatRegionOnly, true, false},
	{formats.FormatRegionOnly, true, true},
}

// DetectHeader finds the layout of the header stored in data. The header is
// looked for at privateOffset and publicOffset, either of which may be
// negative to skip that area. Data made up only of 0x00 and 0xFF bytes is
// reported as FormatNone.
func DetectHeader(data []byte, privateOffset, publicOffset int) (*Header, error) {
	if isBlank(data) {
		return &Header{
			Flags:           formats.HeaderFlags{Format: formats.FormatNone},
			PrivateIDOffset: -1,
			PublicIDOffset:  -1,
			Data:            data,
		}, nil
	}

	unscrambled := unscramble(data)

	var rejected []*CandidateError
	for _, c := range headerCandidates {
		buf := data
		if c.scrambled {
			buf = unscrambled
		}
		offset := privateOffset
		if c.public {
			offset = publicOffset
		}

		h, err := parseHeaderAt(c, buf, offset)
		if err != nil {
			slog.Debug("header candidate rejected", "flags", c.flags().String(), "err", err)
			rejected = append(rejected, &CandidateError{Flags: c.flags(), Err: err})
			continue
		}

		slog.Debug("header valid", "flags", h.Flags.String(), "checksum", h.Checksum.String())
		return h, nil
	}

	return nil, &NoValidFormatError{Candidates: rejected}
}

func parseHeaderAt(c headerCandidate, buf []byte, offset int) (*Header, error) {
	if offset < 0 || offset >= len(buf) {
		return nil, ErrOffsetOutOfBounds
	}

	h := &Header{
		Flags:           c.flags(),
		PrivateIDOffset: -1,
		PublicIDOffset:  -1,
		Data:            buf,
	}
	area := buf[offset:]

	var specification, region []byte

	switch c.format {
	case formats.FormatRegionOnly:
		if len(area) < RegionOnlyHeaderSize {
			return nil, fmt.Errorf("%w: need %d bytes", ErrOffsetOutOfBounds, RegionOnlyHeaderSize)
		}
		region = area[0:4]

	case formats.FormatBasic:
		if len(area) < BasicHeaderSize {
			return nil, fmt.Errorf("%w: need %d bytes", ErrOffsetOutOfBounds, BasicHeaderSize)
		}
		region = area[0:2]
		specification = area[2:4]
		h.PrivateIDOffset = offset + BasicHeaderSize

		// Basic headers always carry a checksum, so a zero byte has to be
		// produced by one of the algorithms, otherwise any region-only header
		// would pass as a basic one. The first two bytes are the region, not
		// a specification, so the GX override does not apply.
		sum, err := searchChecksum(area[0:basicChecksumLength], uint16(area[4]), false)
		if err != nil {
			return nil, err
		}
		h.Checksum = sum

	case formats.FormatEarlyExtended:
		// Strings are padded with spaces, the year is ASCII and there is no
		// checksum.
		if len(area) < ExtendedHeaderSize {
			return nil, fmt.Errorf("%w: need %d bytes", ErrOffsetOutOfBounds, ExtendedHeaderSize)
		}
		specification = area[0:2]
		copy(h.YearField[:], area[8:10])
		region = area[10:16]
		h.PublicIDOffset = offset + ExtendedHeaderSize
		h.PrivateIDOffset = h.PublicIDOffset + PublicIDBlockSize

		if err := h.setCode(specification, area[2:8]); err != nil {
			return nil, err
		}

	case formats.FormatExtended:
		if len(area) < ExtendedHeaderSize {
			return nil, fmt.Errorf("%w: need %d bytes", ErrOffsetOutOfBounds, ExtendedHeaderSize)
		}
		specification = area[0:2]
		copy(h.YearField[:], area[8:10])
		region = area[10:14]
		h.PublicIDOffset = offset + ExtendedHeaderSize
		h.PrivateIDOffset = h.PublicIDOffset + PublicIDBlockSize

		if err := h.setCode(specification, area[2:8]); err != nil {
			return nil, err
		}

		observed := binary.LittleEndian.Uint16(area[14:16])
		sum, err := DetectChecksum(area[0:extendedChecksumLength], observed)
		if err != nil {
			return nil, err
		}
		h.Checksum = sum

	default:
		return nil, fmt.Errorf("unsupported header format %s", c.format)
	}

	regionText := trimPadding(region)
	if !regionPattern.Match(regionText) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRegion, regionText)
	}
	h.Region = string(regionText)
	h.Flags.LowercaseRegion = h.Region == strings.ToLower(h.Region)

	if specificationPattern.Match(specification) {
		h.Specification = string(specification)
		if specification[1] == '*' {
			h.Flags.SpecType = formats.SpecTypeWildcard
		} else {
			h.Flags.SpecType = formats.SpecTypeActual
		}
	}

	return h, nil
}

func (h *Header) setCode(specification, code []byte) error {
	codeText := trimPadding(code)
	if !specificationPattern.Match(specification) || !codePattern.Match(codeText) {
		return fmt.Errorf("%w: %q", ErrInvalidCode, string(specification)+string(codeText))
	}
	h.Code = string(codeText)
	return nil
}

// trimPadding strips the NUL or space padding of a fixed-length string.
func trimPadding(field []byte) []byte {
	return bytes.TrimRight(field, "\x00 ")
}

func isBlank(data []byte) bool {
	for _, b := range data {
		if b != 0x00 && b != 0xff {
			return false
		}
	}
	return true
}

// unscramble undoes the expansion of 16-bit big endian words into 32-bit
// little endian words performed by some early games when writing RTC RAM.
// The result is half as long as the input.
func unscramble(data []byte) []byte {
	out := make([]byte, len(data)/2)
	for i := 0; i+1 < len(out); i += 2 {
		out[i] = data[2*i+1]
		out[i+1] = data[2*i]
	}
	return out
}
