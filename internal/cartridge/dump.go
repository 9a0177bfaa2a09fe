// Package cartridge implements security cartridge and ROM header dumps: chip
// geometry, the binary dump containers and the QR code and MAME import formats.
package cartridge

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Container magic values.
const (
	CartDumpMagic      uint16 = 0x573d
	ROMHeaderDumpMagic uint16 = 0x573e
)

// Container and field sizes.
const (
	IDLength = 8

	// CartDumpHeaderSize is the size of the fixed part of a cart dump container
	CartDumpHeaderSize = 2 + 1 + 1 + 5*IDLength

	// ROMHeaderLength is the size of a flash or RTC header
	ROMHeaderLength = 0x20

	// ROMHeaderDumpSize is the total size of a ROM header dump container
	ROMHeaderDumpSize = 2 + 1 + 1 + IDLength + ROMHeaderLength
)

var (
	// ErrInvalidMagic indicates data that is not a dump container.
	ErrInvalidMagic = errors.New("invalid or unsupported dump format")

	// ErrDumpTooShort indicates a truncated dump.
	ErrDumpTooShort = errors.New("dump too short")
)

// CartDump is a snapshot of a security cartridge: the identifiers read from
// the board, the chip's keys and configuration and its data payload.
//
// A CartDump is never modified once parsed.
type CartDump struct {
	Chip  ChipType
	Flags DumpFlag

	SystemID [IDLength]byte
	CartID   [IDLength]byte
	ZSID     [IDLength]byte
	DataKey  [IDLength]byte
	Config   [IDLength]byte

	// Data holds the chip's payload, ChipSize.DataLength bytes
	Data []byte
}

// Size returns the geometry of the dump's chip.
func (d *CartDump) Size() (ChipSize, error) {
	return d.Chip.Size()
}

// ParseCartDump parses a cart dump container.
func ParseCartDump(data []byte) (*CartDump, error) {
	if len(data) < CartDumpHeaderSize {
		return nil, fmt.Errorf("%w: got %d bytes, need at least %d",
			ErrDumpTooShort, len(data), CartDumpHeaderSize)
	}

	if magic := binary.LittleEndian.Uint16(data[0:2]); magic != CartDumpMagic {
		return nil, fmt.Errorf("%w: magic 0x%04X", ErrInvalidMagic, magic)
	}

	d := &CartDump{
		Chip:  ChipType(data[2]),
		Flags: DumpFlag(data[3]),
	}

	size, err := d.Chip.Size()
	if err != nil {
		return nil, err
	}

	offset := 4
	for _, field := range []*[IDLength]byte{&d.SystemID, &d.CartID, &d.ZSID, &d.DataKey, &d.Config} {
		copy(field[:], data[offset:offset+IDLength])
		offset += IDLength
	}

	end := CartDumpHeaderSize + size.DataLength
	if len(data) < end {
		return nil, fmt.Errorf("%w: %s payload needs %d bytes, got %d",
			ErrDumpTooShort, d.Chip, size.DataLength, len(data)-CartDumpHeaderSize)
	}

	d.Data = make([]byte, size.DataLength)
	copy(d.Data, data[CartDumpHeaderSize:end])

	return d, nil
}

// MarshalBinary serializes the dump into a cart dump container.
func (d *CartDump) MarshalBinary() ([]byte, error) {
	size, err := d.Chip.Size()
	if err != nil {
		return nil, err
	}
	if len(d.Data) != size.DataLength {
		return nil, fmt.Errorf("%w: %s payload must be %d bytes, got %d",
			ErrDumpTooShort, d.Chip, size.DataLength, len(d.Data))
	}

	out := make([]byte, 0, CartDumpHeaderSize+len(d.Data))
	out = binary.LittleEndian.AppendUint16(out, CartDumpMagic)
	out = append(out, byte(d.Chip), byte(d.Flags))
	out = append(out, d.SystemID[:]...)
	out = append(out, d.CartID[:]...)
	out = append(out, d.ZSID[:]...)
	out = append(out, d.DataKey[:]...)
	out = append(out, d.Config[:]...)
	out = append(out, d.Data...)

	return out, nil
}

// PublicData returns the chip's public area, or nil if it has none.
func (d *CartDump) PublicData() []byte {
	size, err := d.Chip.Size()
	if err != nil || !size.HasPublicArea() {
		return nil
	}
	return d.Data[size.PublicOffset : size.PublicOffset+size.PublicLength]
}

// IsPublicDataEmpty reports whether the public area was read and contains
// only 0x00 or only 0xFF bytes.
func (d *CartDump) IsPublicDataEmpty() bool {
	if !d.Flags.Has(DumpPublicDataOK) {
		return false
	}
	return isUniform(d.PublicData())
}

// IsDataEmpty reports whether the whole payload was read and contains only
// 0x00 or only 0xFF bytes.
func (d *CartDump) IsDataEmpty() bool {
	if !d.Flags.Has(DumpPublicDataOK | DumpPrivateDataOK) {
		return false
	}
	return isUniform(d.Data)
}

// IsReadableDataEmpty reports whether the data accessible without the key is
// empty. Only ZS01 carts reliably have a public area, so other chips are
// checked as a whole.
func (d *CartDump) IsReadableDataEmpty() bool {
	if d.Chip == ChipZS01 {
		return d.IsPublicDataEmpty()
	}
	return d.IsDataEmpty()
}

func isUniform(data []byte) bool {
	sum := 0
	for _, b := range data {
		sum += int(b)
	}
	return sum == 0 || sum == 0xff*len(data)
}

// ROMHeaderDump is a snapshot of the 32-byte header stored at the beginning
// of the internal flash or RTC RAM, along with the system ID of the board it
// was read from.
type ROMHeaderDump struct {
	Flags    DumpFlag
	SystemID [IDLength]byte
	Data     [ROMHeaderLength]byte
}

// ParseROMHeaderDump parses a ROM header dump container.
func ParseROMHeaderDump(data []byte) (*ROMHeaderDump, error) {
	if len(data) < ROMHeaderDumpSize {
		return nil, fmt.Errorf("%w: got %d bytes, need %d",
			ErrDumpTooShort, len(data), ROMHeaderDumpSize)
	}

	if magic := binary.LittleEndian.Uint16(data[0:2]); magic != ROMHeaderDumpMagic {
		return nil, fmt.Errorf("%w: magic 0x%04X", ErrInvalidMagic, magic)
	}

	// Byte 2 is padding.
	d := &ROMHeaderDump{Flags: DumpFlag(data[3])}
	copy(d.SystemID[:], data[4:4+IDLength])
	copy(d.Data[:], data[4+IDLength:ROMHeaderDumpSize])

	return d, nil
}

// MarshalBinary serializes the dump into a ROM header dump container.
func (d *ROMHeaderDump) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, ROMHeaderDumpSize)
	out = binary.LittleEndian.AppendUint16(out, ROMHeaderDumpMagic)
	out = append(out, 0, byte(d.Flags))
	out = append(out, d.SystemID[:]...)
	out = append(out, d.Data[:]...)

	return out, nil
}

// HasSystemID reports whether the dump carries a system ID that was
// validated when it was read.
func (d *ROMHeaderDump) HasSystemID() bool {
	return d.Flags.Has(DumpHasSystemID | DumpSystemIDOK)
}
