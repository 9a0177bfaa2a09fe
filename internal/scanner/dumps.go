package scanner

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/richardwooding/cartsleuth/internal/cartridge"
)

// ErrUnknownDump indicates an item in none of the supported dump formats.
var ErrUnknownDump = errors.New("not a recognized dump")

// MAMESystemID is the DS2401 serial MAME reports for every I/O board. Flash
// contents installed under MAME are signed with it.
var MAMESystemID = [cartridge.IDLength]byte{0x01, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0x3d}

// LoadCartDump decodes a cartridge dump container, QR dump string or MAME
// EEPROM image.
func LoadCartDump(item *Item) (*cartridge.CartDump, error) {
	data := item.Data

	switch {
	case hasMagic(data, cartridge.CartDumpMagic):
		return cartridge.ParseCartDump(data)
	case isQRString(data):
		return cartridge.ParseCartQRString(string(data))
	case cartridge.IsMAMEDumpSize(int64(len(data))):
		return cartridge.ParseMAMECartDump(data)
	default:
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrUnknownDump, item.Path, len(data))
	}
}

// LoadROMHeaderDump decodes a ROM header dump container or extracts the
// header from a flash image. Flash images are full 16 MiB dumps or
// interleaved MAME chip pairs, and are assumed to come from MAME.
func LoadROMHeaderDump(item *Item) (*cartridge.ROMHeaderDump, error) {
	data := item.Data

	switch {
	case hasMagic(data, cartridge.ROMHeaderDumpMagic):
		return cartridge.ParseROMHeaderDump(data)
	case item.Interleaved && len(data) == FlashPairSize, len(data) == FlashImageSize:
		dump := &cartridge.ROMHeaderDump{
			Flags:    cartridge.DumpHasSystemID | cartridge.DumpSystemIDOK,
			SystemID: MAMESystemID,
		}
		copy(dump.Data[:], data)
		return dump, nil
	default:
		return nil, fmt.Errorf("%w: %s (%d bytes)", ErrUnknownDump, item.Path, len(data))
	}
}

// hasMagic reports whether data starts with a little-endian container magic.
func hasMagic(data []byte, magic uint16) bool {
	return len(data) >= 2 && binary.LittleEndian.Uint16(data[0:2]) == magic
}

// isQRString checks the beginning of data for the QR string prefix.
func isQRString(data []byte) bool {
	head := bytes.TrimSpace(data[:min(len(data), 64)])
	return bytes.HasPrefix(bytes.ToUpper(head), []byte(cartridge.QRStringPrefix))
}
