package synth

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/richardwooding/cartsleuth/internal/cartridge"
	"github.com/richardwooding/cartsleuth/internal/formats"
)

// Header layout sizes.
const (
	regionOnlyHeaderSize = 4
	basicHeaderSize      = 8
	extendedHeaderSize   = 16
	publicIDBlockSize    = 2 * cartridge.IDLength
	privateIDBlockSize   = 4 * cartridge.IDLength

	defaultTIDWidth = 16
)

var (
	// ErrLayout indicates a format that does not fit the chip it was
	// requested for.
	ErrLayout = errors.New("format does not fit chip")

	// ErrUnsupportedSignature indicates a signature type that cannot be
	// generated.
	ErrUnsupportedSignature = errors.New("signature type cannot be generated")
)

// Cart describes a cartridge to generate.
type Cart struct {
	Chip cartridge.ChipType `json:"chip"`
	Info formats.CartInfo   `json:"info"`

	Specification string `json:"specification,omitempty"`
	Code          string `json:"code,omitempty"`
	Region        string `json:"region"`

	// CartID and SystemID are also stored in the dump's ID fields when set
	CartID   formats.Identifier `json:"cartID"`
	SystemID formats.Identifier `json:"systemID"`
}

// Dump renders the cartridge into a dump. Every ID the flags call for is
// generated: the trace ID from CartID, the install ID from Info.MIDValue.
func (c *Cart) Dump() (*cartridge.CartDump, error) {
	size, err := c.Chip.Size()
	if err != nil {
		return nil, err
	}

	hf := c.Info.HeaderFlags
	ids := c.Info.IDFlags

	headerOffset := size.PrivateOffset
	if hf.InPublicArea {
		if !size.HasPublicArea() {
			return nil, fmt.Errorf("%w: %s has no public area", ErrLayout, c.Chip)
		}
		headerOffset = size.PublicOffset
	}

	// Scrambled data is laid out in a buffer half the payload's size, which
	// is then expanded.
	logical := make([]byte, size.DataLength)
	if hf.Scrambled {
		logical = make([]byte, size.DataLength/2)
	}

	header, err := encodeHeader(hf, c.Info.ChecksumFlags, c.Info.YearField, c.Specification, c.Code, c.Region)
	if err != nil {
		return nil, err
	}
	if err := place(logical, headerOffset, header); err != nil {
		return nil, err
	}

	privateIDOffset, publicIDOffset := -1, -1
	switch hf.Format {
	case formats.FormatBasic:
		privateIDOffset = headerOffset + basicHeaderSize
	case formats.FormatExtended, formats.FormatEarlyExtended:
		publicIDOffset = headerOffset + extendedHeaderSize
		privateIDOffset = publicIDOffset + publicIDBlockSize
	}

	hasPrivateIDs := ids.PrivateTID != formats.TraceIDNone || ids.PrivateSID || ids.PrivateMID || ids.PrivateXID
	if hasPrivateIDs {
		if privateIDOffset < 0 {
			return nil, fmt.Errorf("%w: %s headers have no private IDs", ErrLayout, hf.Format)
		}
		if ids.DummyPublicArea {
			if !hf.InPublicArea || size.PublicOffset <= size.PrivateOffset {
				return nil, fmt.Errorf("%w: dummy public area needs a relocated public area", ErrLayout)
			}
			privateIDOffset = privateIDOffset - size.PublicOffset + size.PrivateOffset
		}
		if err := place(logical, privateIDOffset, c.privateIDs()); err != nil {
			return nil, err
		}
	}

	if ids.PublicMID || ids.PublicXID {
		if publicIDOffset < 0 {
			return nil, fmt.Errorf("%w: %s headers have no public IDs", ErrLayout, hf.Format)
		}
		if err := place(logical, publicIDOffset, c.publicIDs()); err != nil {
			return nil, err
		}
	}

	data := logical
	if hf.Scrambled {
		data = scramble(logical)
	}

	dump := &cartridge.CartDump{
		Chip:    c.Chip,
		Flags:   cartridge.DumpConfigOK | cartridge.DumpPublicDataOK | cartridge.DumpPrivateDataOK,
		DataKey: c.Info.DataKey,
		Data:    data,
	}
	if c.CartID != (formats.Identifier{}) {
		dump.Flags |= cartridge.DumpHasCartID | cartridge.DumpCartIDOK
		dump.CartID = c.CartID
	}
	if c.SystemID != (formats.Identifier{}) {
		dump.Flags |= cartridge.DumpHasSystemID | cartridge.DumpSystemIDOK
		dump.SystemID = c.SystemID
	}

	return dump, nil
}

func (c *Cart) privateIDs() []byte {
	ids := c.Info.IDFlags
	block := make([]byte, privateIDBlockSize)

	if ids.PrivateTID != formats.TraceIDNone {
		width := int(c.Info.TIDWidth)
		if width == 0 {
			width = defaultTIDWidth
		}
		tid := TraceID(ids.PrivateTID, width, c.CartID)
		copy(block[0:8], tid[:])
	}
	if ids.PrivateSID {
		copy(block[8:16], c.CartID[:])
	}
	if ids.PrivateMID {
		mid := CustomID(c.Info.MIDValue)
		copy(block[16:24], mid[:])
	}
	if ids.PrivateXID {
		copy(block[24:32], c.SystemID[:])
	}
	return block
}

func (c *Cart) publicIDs() []byte {
	ids := c.Info.IDFlags
	block := make([]byte, publicIDBlockSize)

	if ids.PublicMID {
		mid := CustomID(c.Info.MIDValue)
		copy(block[0:8], mid[:])
	}
	if ids.PublicXID {
		copy(block[8:16], c.SystemID[:])
	}
	return block
}

// encodeHeader lays out a header and computes its checksum.
func encodeHeader(
	hf formats.HeaderFlags,
	cf formats.ChecksumFlags,
	year formats.YearField,
	specification, code, region string,
) ([]byte, error) {
	if hf.LowercaseRegion {
		region = strings.ToLower(region)
	}
	if hf.SpecType == formats.SpecTypeNone {
		specification = ""
	}

	switch hf.Format {
	case formats.FormatNone:
		return nil, nil

	case formats.FormatRegionOnly:
		return pad(region, regionOnlyHeaderSize, 0), nil

	case formats.FormatBasic:
		header := make([]byte, 0, basicHeaderSize)
		header = append(header, pad(region, 2, 0)...)
		header = append(header, pad(specification, 2, 0)...)

		sum := cf.Compute(header[0:4])
		if sum > 0xff {
			return nil, fmt.Errorf("%w: checksum %s does not fit in a byte", ErrLayout, cf)
		}
		header = append(header, byte(sum), 0, 0, 0)
		return header, nil

	case formats.FormatEarlyExtended:
		header := make([]byte, 0, extendedHeaderSize)
		header = append(header, pad(specification, 2, ' ')...)
		header = append(header, pad(code, 6, ' ')...)
		header = append(header, year[:]...)
		header = append(header, pad(region, 6, ' ')...)
		return header, nil

	case formats.FormatExtended:
		header := make([]byte, 0, extendedHeaderSize)
		header = append(header, pad(specification, 2, 0)...)
		header = append(header, pad(code, 6, 0)...)
		header = append(header, year[:]...)
		header = append(header, pad(region, 4, 0)...)
		header = binary.LittleEndian.AppendUint16(header, cf.Compute(header[0:14]))
		return header, nil

	default:
		return nil, fmt.Errorf("%w: unknown header format %s", ErrLayout, hf.Format)
	}
}

// pad truncates or pads s to a fixed-length field.
func pad(s string, length int, fill byte) []byte {
	field := make([]byte, length)
	n := copy(field, s)
	for i := n; i < length; i++ {
		field[i] = fill
	}
	return field
}

func place(buf []byte, offset int, data []byte) error {
	if offset < 0 || offset+len(data) > len(buf) {
		return fmt.Errorf("%w: %d bytes at offset %d exceed %d byte area", ErrLayout, len(data), offset, len(buf))
	}
	copy(buf[offset:], data)
	return nil
}

// scramble expands each 16-bit big endian word into a 32-bit little endian
// word, the way some early games write RTC RAM.
func scramble(logical []byte) []byte {
	out := make([]byte, len(logical)*2)
	for i := 0; i+1 < len(logical); i += 2 {
		out[2*i] = logical[i+1]
		out[2*i+1] = logical[i]
	}
	return out
}
