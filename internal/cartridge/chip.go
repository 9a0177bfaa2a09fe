package cartridge

import (
	"errors"
	"fmt"
	"strings"
)

// ChipType identifies the security EEPROM fitted to a cartridge.
type ChipType uint8

// Supported security chips.
const (
	ChipNone    ChipType = 0
	ChipX76F041 ChipType = 1
	ChipX76F100 ChipType = 2
	ChipZS01    ChipType = 3
)

// ErrUnsupportedChip indicates a chip type with no known geometry.
var ErrUnsupportedChip = errors.New("unsupported chip type")

// String returns the chip's part number.
func (c ChipType) String() string {
	switch c {
	case ChipNone:
		return "NONE"
	case ChipX76F041:
		return "X76F041"
	case ChipX76F100:
		return "X76F100"
	case ChipZS01:
		return "ZS01"
	default:
		return fmt.Sprintf("UNKNOWN (0x%02X)", byte(c))
	}
}

// MarshalText encodes supported chips by part number.
func (c ChipType) MarshalText() ([]byte, error) {
	switch c {
	case ChipNone, ChipX76F041, ChipX76F100, ChipZS01:
		return []byte(c.String()), nil
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnsupportedChip, byte(c))
	}
}

// UnmarshalText decodes a part number, ignoring case.
func (c *ChipType) UnmarshalText(text []byte) error {
	for _, chip := range []ChipType{ChipNone, ChipX76F041, ChipX76F100, ChipZS01} {
		if strings.EqualFold(string(text), chip.String()) {
			*c = chip
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedChip, text)
}

// ChipSize describes where the private (key protected) and public areas are
// located within a chip's data payload.
type ChipSize struct {
	DataLength int

	PrivateOffset int
	PrivateLength int

	// PublicLength is zero for chips with no public area
	PublicOffset int
	PublicLength int
}

// HasPublicArea reports whether the chip exposes an unprotected area.
func (s ChipSize) HasPublicArea() bool {
	return s.PublicLength > 0
}

// Size returns the data geometry of the chip.
func (c ChipType) Size() (ChipSize, error) {
	switch c {
	case ChipX76F041:
		// The last 128-byte sector can be configured as unprotected.
		return ChipSize{
			DataLength:    512,
			PrivateOffset: 0,
			PrivateLength: 384,
			PublicOffset:  384,
			PublicLength:  128,
		}, nil
	case ChipX76F100:
		return ChipSize{
			DataLength:    112,
			PrivateOffset: 0,
			PrivateLength: 112,
		}, nil
	case ChipZS01:
		return ChipSize{
			DataLength:    112,
			PrivateOffset: 32,
			PrivateLength: 80,
			PublicOffset:  0,
			PublicLength:  32,
		}, nil
	default:
		return ChipSize{}, fmt.Errorf("%w: %s", ErrUnsupportedChip, c)
	}
}

// DumpFlag records which parts of a chip were read and which of them were
// validated by the dumping hardware.
type DumpFlag uint8

// Dump flags, as stored in dump containers.
const (
	DumpHasSystemID   DumpFlag = 1 << 0
	DumpHasCartID     DumpFlag = 1 << 1
	DumpConfigOK      DumpFlag = 1 << 2
	DumpSystemIDOK    DumpFlag = 1 << 3
	DumpCartIDOK      DumpFlag = 1 << 4
	DumpZSIDOK        DumpFlag = 1 << 5
	DumpPublicDataOK  DumpFlag = 1 << 6
	DumpPrivateDataOK DumpFlag = 1 << 7
)

var dumpFlagNames = [...]string{
	"HAS_SYSTEM_ID",
	"HAS_CART_ID",
	"CONFIG_OK",
	"SYSTEM_ID_OK",
	"CART_ID_OK",
	"ZS_ID_OK",
	"PUBLIC_DATA_OK",
	"PRIVATE_DATA_OK",
}

// Has reports whether all bits of mask are set.
func (f DumpFlag) Has(mask DumpFlag) bool {
	return f&mask == mask
}

// String returns the set flags joined with '|', or "0" when none are set.
func (f DumpFlag) String() string {
	var names []string
	for i, name := range dumpFlagNames {
		if f&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "0"
	}
	return strings.Join(names, "|")
}
