package formats

import (
	"fmt"
	"strings"

	"github.com/richardwooding/cartsleuth/internal/checksum"
)

// Wire layout of the header flag byte.
const (
	headerFormatMask      = 7 << 0
	headerSpecTypeShift   = 3
	headerSpecTypeMask    = 3 << headerSpecTypeShift
	headerScrambled       = 1 << 5
	headerInPublicArea    = 1 << 6
	headerRegionLowercase = 1 << 7
)

// HeaderFlags describes the layout a header was found in.
type HeaderFlags struct {
	Format   FormatType `json:"format,omitempty"`
	SpecType SpecType   `json:"specType,omitempty"`

	// Scrambled headers were written as 16-bit big endian values expanded
	// to 32-bit little endian words
	Scrambled       bool `json:"scrambled,omitempty"`
	InPublicArea    bool `json:"usesPublicArea,omitempty"`
	LowercaseRegion bool `json:"lowercaseRegion,omitempty"`
}

// Bits returns the flags' database encoding.
func (f HeaderFlags) Bits() uint8 {
	bits := uint8(f.Format) & headerFormatMask
	bits |= (uint8(f.SpecType) << headerSpecTypeShift) & headerSpecTypeMask
	bits |= boolBit(f.Scrambled, headerScrambled)
	bits |= boolBit(f.InPublicArea, headerInPublicArea)
	bits |= boolBit(f.LowercaseRegion, headerRegionLowercase)
	return bits
}

// HeaderFlagsFromBits decodes a header flag byte.
func HeaderFlagsFromBits(bits uint8) (HeaderFlags, error) {
	f := HeaderFlags{
		Format:          FormatType(bits & headerFormatMask),
		SpecType:        SpecType((bits & headerSpecTypeMask) >> headerSpecTypeShift),
		Scrambled:       bits&headerScrambled != 0,
		InPublicArea:    bits&headerInPublicArea != 0,
		LowercaseRegion: bits&headerRegionLowercase != 0,
	}
	if int(f.Format) >= len(formatTypeNames) {
		return HeaderFlags{}, fmt.Errorf("%w: header format %d", ErrInvalidFlags, f.Format)
	}
	if int(f.SpecType) >= len(specTypeNames) {
		return HeaderFlags{}, fmt.Errorf("%w: spec type %d", ErrInvalidFlags, f.SpecType)
	}
	return f, nil
}

// String lists the flags in the form used in log messages.
func (f HeaderFlags) String() string {
	return flagList(
		"FORMAT_"+strings.ToUpper(f.Format.String()),
		named(f.SpecType != SpecTypeNone, "SPEC_TYPE_"+strings.ToUpper(f.SpecType.String())),
		named(f.Scrambled, "HEADER_SCRAMBLED"),
		named(f.InPublicArea, "HEADER_IN_PUBLIC_AREA"),
		named(f.LowercaseRegion, "REGION_LOWERCASE"),
	)
}

// Wire layout of the checksum flag byte.
const (
	checksumWidthMask       = 3 << 0
	checksumInputBigEndian  = 1 << 2
	checksumOutputBigEndian = 1 << 3
	checksumInverted        = 1 << 4
	checksumForceGXSpec     = 1 << 5
	checksumReserved        = 3 << 6
)

// ChecksumFlags describes how a header checksum is computed.
type ChecksumFlags struct {
	Width ChecksumWidth `json:"width,omitempty"`

	// InputBigEndian only applies to 16-bit checksums
	InputBigEndian  bool `json:"bigEndianInput,omitempty"`
	OutputBigEndian bool `json:"bigEndianOutput,omitempty"`
	Inverted        bool `json:"inverted,omitempty"`

	// ForceGXSpec computes the checksum as if the specification field were
	// "GX", regardless of its actual contents
	ForceGXSpec bool `json:"forceGXSpec,omitempty"`
}

// Bits returns the flags' database encoding.
func (f ChecksumFlags) Bits() uint8 {
	bits := uint8(f.Width) & checksumWidthMask
	bits |= boolBit(f.InputBigEndian, checksumInputBigEndian)
	bits |= boolBit(f.OutputBigEndian, checksumOutputBigEndian)
	bits |= boolBit(f.Inverted, checksumInverted)
	bits |= boolBit(f.ForceGXSpec, checksumForceGXSpec)
	return bits
}

// ChecksumFlagsFromBits decodes a checksum flag byte.
func ChecksumFlagsFromBits(bits uint8) (ChecksumFlags, error) {
	if bits&checksumReserved != 0 {
		return ChecksumFlags{}, fmt.Errorf("%w: checksum flags 0x%02X", ErrInvalidFlags, bits)
	}
	return ChecksumFlags{
		Width:           ChecksumWidth(bits & checksumWidthMask),
		InputBigEndian:  bits&checksumInputBigEndian != 0,
		OutputBigEndian: bits&checksumOutputBigEndian != 0,
		Inverted:        bits&checksumInverted != 0,
		ForceGXSpec:     bits&checksumForceGXSpec != 0,
	}, nil
}

// Compute returns the checksum of window as described by the flags. The
// result is in the byte order it is stored in, so it can be compared
// directly against the little endian value read from the header.
func (f ChecksumFlags) Compute(window []byte) uint16 {
	data := window
	if f.ForceGXSpec && len(window) >= 2 {
		data = append([]byte("GX"), window[2:]...)
	}

	var value uint16
	switch f.Width {
	case ChecksumWidth8:
		value = uint16(checksum.Sum8(data, f.Inverted))
	case ChecksumWidth8To16:
		value = checksum.Sum8To16(data, f.Inverted)
	case ChecksumWidth16:
		value = checksum.Sum16(data, f.InputBigEndian, f.Inverted)
	default:
		return 0
	}

	if f.OutputBigEndian {
		return checksum.Swap16(value)
	}
	return value
}

// String lists the flags in the form used in log messages.
func (f ChecksumFlags) String() string {
	return flagList(
		"CHECKSUM_WIDTH_"+strings.ToUpper(f.Width.String()),
		named(f.InputBigEndian, "CHECKSUM_INPUT_BIG_ENDIAN"),
		named(f.OutputBigEndian, "CHECKSUM_OUTPUT_BIG_ENDIAN"),
		named(f.Inverted, "CHECKSUM_INVERTED"),
		named(f.ForceGXSpec, "CHECKSUM_FORCE_GX_SPEC"),
	)
}

// Wire layout of the identifier flag byte.
const (
	idTraceIDMask     = 3 << 0
	idPrivateSID      = 1 << 2
	idPrivateMID      = 1 << 3
	idPrivateXID      = 1 << 4
	idDummyPublicArea = 1 << 5
	idPublicMID       = 1 << 6
	idPublicXID       = 1 << 7
)

// IdentifierFlags records which identifiers were found in a cartridge.
// SID is the cartridge ID, MID the install ID and XID the system ID.
type IdentifierFlags struct {
	PrivateTID TraceIDType `json:"privateTID,omitempty"`
	PrivateSID bool        `json:"privateSID,omitempty"`
	PrivateMID bool        `json:"privateMID,omitempty"`
	PrivateXID bool        `json:"privateXID,omitempty"`

	// DummyPublicArea is set when the private IDs are preceded by an unused
	// copy of the public area
	DummyPublicArea bool `json:"dummyPublicArea,omitempty"`
	PublicMID       bool `json:"publicMID,omitempty"`
	PublicXID       bool `json:"publicXID,omitempty"`
}

// Bits returns the flags' database encoding.
func (f IdentifierFlags) Bits() uint8 {
	bits := uint8(f.PrivateTID) & idTraceIDMask
	bits |= boolBit(f.PrivateSID, idPrivateSID)
	bits |= boolBit(f.PrivateMID, idPrivateMID)
	bits |= boolBit(f.PrivateXID, idPrivateXID)
	bits |= boolBit(f.DummyPublicArea, idDummyPublicArea)
	bits |= boolBit(f.PublicMID, idPublicMID)
	bits |= boolBit(f.PublicXID, idPublicXID)
	return bits
}

// IdentifierFlagsFromBits decodes an identifier flag byte. Every bit pattern
// is valid.
func IdentifierFlagsFromBits(bits uint8) (IdentifierFlags, error) {
	return IdentifierFlags{
		PrivateTID:      TraceIDType(bits & idTraceIDMask),
		PrivateSID:      bits&idPrivateSID != 0,
		PrivateMID:      bits&idPrivateMID != 0,
		PrivateXID:      bits&idPrivateXID != 0,
		DummyPublicArea: bits&idDummyPublicArea != 0,
		PublicMID:       bits&idPublicMID != 0,
		PublicXID:       bits&idPublicXID != 0,
	}, nil
}

// Merge combines flags found in the private and public areas.
func (f IdentifierFlags) Merge(other IdentifierFlags) IdentifierFlags {
	merged := f
	if merged.PrivateTID == TraceIDNone {
		merged.PrivateTID = other.PrivateTID
	}
	merged.PrivateSID = merged.PrivateSID || other.PrivateSID
	merged.PrivateMID = merged.PrivateMID || other.PrivateMID
	merged.PrivateXID = merged.PrivateXID || other.PrivateXID
	merged.DummyPublicArea = merged.DummyPublicArea || other.DummyPublicArea
	merged.PublicMID = merged.PublicMID || other.PublicMID
	merged.PublicXID = merged.PublicXID || other.PublicXID
	return merged
}

// HasCartID reports whether the cartridge carries a cartridge ID, either
// directly or hashed into its trace ID.
func (f IdentifierFlags) HasCartID() bool {
	return f.PrivateSID ||
		f.PrivateTID == TraceIDSIDHashLittle ||
		f.PrivateTID == TraceIDSIDHashBig
}

// String lists the flags in the form used in log messages.
func (f IdentifierFlags) String() string {
	return flagList(
		named(f.PrivateTID != TraceIDNone, "PRIVATE_TID_"+strings.ToUpper(f.PrivateTID.String())),
		named(f.PrivateSID, "PRIVATE_SID"),
		named(f.PrivateMID, "PRIVATE_MID"),
		named(f.PrivateXID, "PRIVATE_XID"),
		named(f.DummyPublicArea, "ALLOCATE_DUMMY_PUBLIC_AREA"),
		named(f.PublicMID, "PUBLIC_MID"),
		named(f.PublicXID, "PUBLIC_XID"),
	)
}

// Wire layout of the signature flag byte.
const (
	signatureTypeMask     = 3 << 0
	signaturePadWithFF    = 1 << 2
	signatureReservedMask = 0xf8
)

// SignatureFlags describes the installation signature of a ROM header.
type SignatureFlags struct {
	Type      SignatureType `json:"type,omitempty"`
	PadWithFF bool          `json:"padWithFF,omitempty"`
}

// Bits returns the flags' database encoding.
func (f SignatureFlags) Bits() uint8 {
	return uint8(f.Type)&signatureTypeMask | boolBit(f.PadWithFF, signaturePadWithFF)
}

// SignatureFlagsFromBits decodes a signature flag byte.
func SignatureFlagsFromBits(bits uint8) (SignatureFlags, error) {
	if bits&signatureReservedMask != 0 {
		return SignatureFlags{}, fmt.Errorf("%w: signature flags 0x%02X", ErrInvalidFlags, bits)
	}
	return SignatureFlags{
		Type:      SignatureType(bits & signatureTypeMask),
		PadWithFF: bits&signaturePadWithFF != 0,
	}, nil
}

// String lists the flags in the form used in log messages.
func (f SignatureFlags) String() string {
	return flagList(
		named(f.Type != SignatureNone, "SIGNATURE_TYPE_"+strings.ToUpper(f.Type.String())),
		named(f.PadWithFF, "SIGNATURE_PAD_WITH_FF"),
	)
}

// Wire layout of the game flag byte.
const (
	gameIOBoardMask              = 7 << 0
	gameInstallRTCHeaderRequired = 1 << 3
	gameRTCHeaderRequired        = 1 << 4
	gameReservedMask             = 0xe0
)

// GameFlags describes the hardware a game requires.
type GameFlags struct {
	IOBoard                  IOBoard `json:"ioBoard,omitempty"`
	InstallRequiresRTCHeader bool    `json:"installRequiresRTCHeader,omitempty"`
	RequiresRTCHeader        bool    `json:"requiresRTCHeader,omitempty"`
}

// Bits returns the flags' database encoding.
func (f GameFlags) Bits() uint8 {
	bits := uint8(f.IOBoard) & gameIOBoardMask
	bits |= boolBit(f.InstallRequiresRTCHeader, gameInstallRTCHeaderRequired)
	bits |= boolBit(f.RequiresRTCHeader, gameRTCHeaderRequired)
	return bits
}

// GameFlagsFromBits decodes a game flag byte.
func GameFlagsFromBits(bits uint8) (GameFlags, error) {
	f := GameFlags{
		IOBoard:                  IOBoard(bits & gameIOBoardMask),
		InstallRequiresRTCHeader: bits&gameInstallRTCHeaderRequired != 0,
		RequiresRTCHeader:        bits&gameRTCHeaderRequired != 0,
	}
	if bits&gameReservedMask != 0 || int(f.IOBoard) >= len(ioBoardNames) {
		return GameFlags{}, fmt.Errorf("%w: game flags 0x%02X", ErrInvalidFlags, bits)
	}
	return f, nil
}

func boolBit(set bool, bit uint8) uint8 {
	if set {
		return bit
	}
	return 0
}

func named(set bool, name string) string {
	if set {
		return name
	}
	return ""
}

func flagList(names ...string) string {
	var set []string
	for _, name := range names {
		if name != "" {
			set = append(set, name)
		}
	}
	if len(set) == 0 {
		return "0"
	}
	return strings.Join(set, "|")
}
