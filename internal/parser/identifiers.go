package parser

import (
	"fmt"

	"github.com/richardwooding/cartsleuth/internal/cartridge"
	"github.com/richardwooding/cartsleuth/internal/checksum"
	"github.com/richardwooding/cartsleuth/internal/formats"
)

// Trace ID prefixes.
const (
	TraceIDPrefixStatic  = 0x81
	TraceIDPrefixSIDHash = 0x82
)

// traceIDWidths is the order in which hash widths are tried. Databases record
// the first width that matches, so 16 must stay ahead of 14 even though both
// can match the same cart ID.
var traceIDWidths = [...]int{16, 14}

// ID is an 8-byte identifier slot.
type ID [cartridge.IDLength]byte

// IsEmpty reports whether the slot is unused (all bytes zero).
func (id ID) IsEmpty() bool {
	return id == ID{}
}

// ValidateCustom checks an identifier protected by an inverted 8-bit sum of
// its first 7 bytes. It returns false for empty slots.
func (id ID) ValidateCustom() (bool, error) {
	if id.IsEmpty() {
		return false, nil
	}
	if sum := checksum.Sum8(id[0:7], true); sum != id[7] {
		return false, fmt.Errorf("%w: expected 0x%02X, got 0x%02X", ErrIDChecksum, sum, id[7])
	}
	return true, nil
}

// ValidateDS2401 checks a 1-Wire serial number: a family code that is
// neither 0x00 nor 0xFF and a trailing CRC-8. It returns false for empty
// slots.
func (id ID) ValidateDS2401() (bool, error) {
	if id.IsEmpty() {
		return false, nil
	}
	if id[0] == 0x00 || id[0] == 0xff {
		return false, fmt.Errorf("%w: 0x%02X", ErrIDFamilyCode, id[0])
	}
	if crc := checksum.DSCRC8(id[0:7]); crc != id[7] {
		return false, fmt.Errorf("%w: expected CRC 0x%02X, got 0x%02X", ErrIDChecksum, crc, id[7])
	}
	return true, nil
}

// IdentifierSet holds the slots of an identifier block. Public blocks only
// carry InstallID and SystemID.
type IdentifierSet struct {
	TraceID   ID
	CartID    ID
	InstallID ID
	SystemID  ID
}

// ParsePrivateIDSlots splits a 32-byte private identifier block (trace, cart,
// install and system ID).
func ParsePrivateIDSlots(block []byte) (IdentifierSet, error) {
	if len(block) < PrivateIDBlockSize {
		return IdentifierSet{}, fmt.Errorf("%w: private ID block needs %d bytes, got %d",
			ErrOffsetOutOfBounds, PrivateIDBlockSize, len(block))
	}

	var set IdentifierSet
	copy(set.TraceID[:], block[0:8])
	copy(set.CartID[:], block[8:16])
	copy(set.InstallID[:], block[16:24])
	copy(set.SystemID[:], block[24:32])
	return set, nil
}

// ParsePublicIDSlots splits a 16-byte public identifier block (install and
// system ID).
func ParsePublicIDSlots(block []byte) (IdentifierSet, error) {
	if len(block) < PublicIDBlockSize {
		return IdentifierSet{}, fmt.Errorf("%w: public ID block needs %d bytes, got %d",
			ErrOffsetOutOfBounds, PublicIDBlockSize, len(block))
	}

	var set IdentifierSet
	copy(set.InstallID[:], block[0:8])
	copy(set.SystemID[:], block[8:16])
	return set, nil
}

// DetectedIDs is the result of identifier detection.
type DetectedIDs struct {
	Flags formats.IdentifierFlags

	// TIDWidth is the width of the hash a trace ID was derived with
	TIDWidth uint8

	// MIDValue is the first byte of the install ID
	MIDValue uint8
}

// DetectPrivateIDs validates the private identifier block at offset. If
// dummyOffset is within data and the block there is not empty, it is used
// instead and the dummy public area flag is set: some X76F041 games relocate
// their public area to the last sector but leave the space it would take up
// in front of the private IDs allocated.
func DetectPrivateIDs(data []byte, offset, dummyOffset int) (DetectedIDs, error) {
	var ids DetectedIDs

	if dummyOffset >= 0 && dummyOffset+PrivateIDBlockSize <= len(data) {
		dummy := data[dummyOffset : dummyOffset+PrivateIDBlockSize]
		if !isZero(dummy) {
			offset = dummyOffset
			ids.Flags.DummyPublicArea = true
		}
	}
	if offset < 0 || offset > len(data) {
		return DetectedIDs{}, fmt.Errorf("%w: private IDs at %d", ErrOffsetOutOfBounds, offset)
	}

	set, err := ParsePrivateIDSlots(data[offset:])
	if err != nil {
		return DetectedIDs{}, err
	}

	ok, err := set.TraceID.ValidateCustom()
	if err != nil {
		return DetectedIDs{}, fmt.Errorf("trace ID: %w", err)
	}
	if ok {
		if err := ids.detectTraceID(set); err != nil {
			return DetectedIDs{}, err
		}
	}

	if ids.Flags.PrivateSID, err = set.CartID.ValidateDS2401(); err != nil {
		return DetectedIDs{}, fmt.Errorf("cart ID: %w", err)
	}
	if ids.Flags.PrivateMID, err = set.InstallID.ValidateCustom(); err != nil {
		return DetectedIDs{}, fmt.Errorf("install ID: %w", err)
	}
	if ids.Flags.PrivateMID {
		ids.MIDValue = set.InstallID[0]
	}
	if ids.Flags.PrivateXID, err = set.SystemID.ValidateDS2401(); err != nil {
		return DetectedIDs{}, fmt.Errorf("system ID: %w", err)
	}

	return ids, nil
}

func (ids *DetectedIDs) detectTraceID(set IdentifierSet) error {
	tid := set.TraceID

	switch tid[0] {
	case TraceIDPrefixStatic:
		ids.Flags.PrivateTID = formats.TraceIDStatic
		return nil

	case TraceIDPrefixSIDHash:
		little := uint16(tid[1]) | uint16(tid[2])<<8
		big := uint16(tid[1])<<8 | uint16(tid[2])

		for _, width := range traceIDWidths {
			expected := checksum.SIDCRC16(set.CartID[1:7], width)

			switch expected {
			case little:
				ids.Flags.PrivateTID = formats.TraceIDSIDHashLittle
			case big:
				ids.Flags.PrivateTID = formats.TraceIDSIDHashBig
			default:
				continue
			}
			ids.TIDWidth = uint8(width)
			return nil
		}
		return ErrTraceIDWidth

	default:
		return fmt.Errorf("%w: 0x%02X", ErrUnknownTraceID, tid[0])
	}
}

// DetectPublicIDs validates the public identifier block at offset.
func DetectPublicIDs(data []byte, offset int) (DetectedIDs, error) {
	var ids DetectedIDs

	if offset < 0 || offset > len(data) {
		return DetectedIDs{}, fmt.Errorf("%w: public IDs at %d", ErrOffsetOutOfBounds, offset)
	}
	set, err := ParsePublicIDSlots(data[offset:])
	if err != nil {
		return DetectedIDs{}, err
	}

	if ids.Flags.PublicMID, err = set.InstallID.ValidateCustom(); err != nil {
		return DetectedIDs{}, fmt.Errorf("public install ID: %w", err)
	}
	if ids.Flags.PublicMID {
		ids.MIDValue = set.InstallID[0]
	}
	if ids.Flags.PublicXID, err = set.SystemID.ValidateDS2401(); err != nil {
		return DetectedIDs{}, fmt.Errorf("public system ID: %w", err)
	}

	return ids, nil
}

func isZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
