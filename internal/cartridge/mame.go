package cartridge

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MAME stores cartridge EEPROM contents as raw images starting with a
// big-endian chip identifier.
const (
	mameX76F041Magic uint32 = 0x1955aa55
	mameX76F100Magic uint32 = 0x1900aa55
	mameZS01Magic    uint32 = 0x5a530001
)

// Sizes of the MAME EEPROM images.
const (
	MAMEX76F041Size = 4 + 4*IDLength + 512
	MAMEX76F100Size = 4 + 2*IDLength + 112
	MAMEZS01Size    = 4 + 3*IDLength + 112
)

// MAMEDumpSizes lists the size of every supported MAME image. Files of any
// other size can be skipped without reading them.
var MAMEDumpSizes = []int{MAMEX76F041Size, MAMEX76F100Size, MAMEZS01Size}

// ErrKeyMismatch indicates an X76F100 image whose read and write keys differ.
var ErrKeyMismatch = errors.New("X76F100 dumps with different read/write keys are not supported")

// IsMAMEDumpSize reports whether size matches any supported MAME image.
func IsMAMEDumpSize(size int64) bool {
	for _, s := range MAMEDumpSizes {
		if int64(s) == size {
			return true
		}
	}
	return false
}

// ParseMAMECartDump converts a MAME EEPROM image into a cart dump. MAME does
// not emulate cartridge IDs, so the resulting dump never has one.
func ParseMAMECartDump(data []byte) (*CartDump, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: got %d bytes", ErrDumpTooShort, len(data))
	}

	d := &CartDump{Flags: DumpPublicDataOK | DumpPrivateDataOK}
	field := func(index int) []byte {
		offset := 4 + index*IDLength
		return data[offset : offset+IDLength]
	}

	magic := binary.BigEndian.Uint32(data[0:4])
	switch magic {
	case mameX76F041Magic:
		// Response to reset, write key, data key, configuration registers.
		if len(data) < MAMEX76F041Size {
			return nil, fmt.Errorf("%w: X76F041 image is %d bytes", ErrDumpTooShort, len(data))
		}
		d.Chip = ChipX76F041
		d.Flags |= DumpConfigOK
		copy(d.DataKey[:], field(2))
		copy(d.Config[:], field(3))
		d.Data = append([]byte(nil), data[4+4*IDLength:MAMEX76F041Size]...)

	case mameX76F100Magic:
		if len(data) < MAMEX76F100Size {
			return nil, fmt.Errorf("%w: X76F100 image is %d bytes", ErrDumpTooShort, len(data))
		}
		d.Chip = ChipX76F100
		writeKey, readKey := field(0), field(1)
		if string(writeKey) != string(readKey) {
			return nil, ErrKeyMismatch
		}
		copy(d.DataKey[:], writeKey)
		d.Data = append([]byte(nil), data[4+2*IDLength:MAMEX76F100Size]...)

	case mameZS01Magic:
		if len(data) < MAMEZS01Size {
			return nil, fmt.Errorf("%w: ZS01 image is %d bytes", ErrDumpTooShort, len(data))
		}
		d.Chip = ChipZS01
		d.Flags |= DumpConfigOK | DumpZSIDOK
		copy(d.DataKey[:], field(1))
		copy(d.Config[:], field(2))
		d.Data = append([]byte(nil), data[4+3*IDLength:MAMEZS01Size]...)

	default:
		return nil, fmt.Errorf("%w: unrecognized chip ID 0x%08X", ErrUnsupportedChip, magic)
	}

	return d, nil
}
