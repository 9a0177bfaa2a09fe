// Package formats defines the vocabulary used to describe detected cartridge
// and ROM header layouts. Every flag group has a binary encoding, used by the
// generated databases, and a JSON encoding, used by the game info files.
package formats

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidFlags indicates a flag byte with an out of range kind value
	// or reserved bits set.
	ErrInvalidFlags = errors.New("invalid flag value")

	// ErrUnknownName indicates a JSON name with no matching value.
	ErrUnknownName = errors.New("unknown name")
)

// nameOf returns the name of an enum value from a table indexed by value.
func nameOf[T ~uint8](names []string, v T) string {
	if int(v) < len(names) && names[v] != "" {
		return names[v]
	}
	return fmt.Sprintf("UNKNOWN (%d)", uint8(v))
}

func marshalName[T ~uint8](names []string, v T) ([]byte, error) {
	if int(v) >= len(names) || names[v] == "" {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFlags, uint8(v))
	}
	return []byte(names[v]), nil
}

func unmarshalName[T ~uint8](names []string, kind string, text []byte, v *T) error {
	for i, name := range names {
		if name != "" && name == string(text) {
			*v = T(i)
			return nil
		}
	}
	return fmt.Errorf("%w: %s %q", ErrUnknownName, kind, text)
}

// FormatType is the layout of a cartridge or ROM header.
type FormatType uint8

// Header layouts.
const (
	FormatNone          FormatType = 0
	FormatRegionOnly    FormatType = 1
	FormatBasic         FormatType = 2
	FormatExtended      FormatType = 3
	FormatEarlyExtended FormatType = 4
)

var formatTypeNames = []string{"none", "regionOnly", "basic", "extended", "earlyExtended"}

func (t FormatType) String() string { return nameOf(formatTypeNames, t) }
func (t FormatType) MarshalText() ([]byte, error) { return marshalName(formatTypeNames, t) }
func (t *FormatType) UnmarshalText(text []byte) error { return unmarshalName(formatTypeNames, "format", text, t) }

// SpecType records whether the header's specification field holds a real
// product type letter or the '*' wildcard.
type SpecType uint8

// Specification types.
const (
	SpecTypeNone     SpecType = 0
	SpecTypeActual   SpecType = 1
	SpecTypeWildcard SpecType = 2
)

var specTypeNames = []string{"none", "actual", "wildcard"}

func (t SpecType) String() string { return nameOf(specTypeNames, t) }
func (t SpecType) MarshalText() ([]byte, error) { return marshalName(specTypeNames, t) }
func (t *SpecType) UnmarshalText(text []byte) error { return unmarshalName(specTypeNames, "specType", text, t) }

// ChecksumWidth is the unit a header checksum is computed in.
type ChecksumWidth uint8

// Checksum widths.
const (
	ChecksumWidthNone  ChecksumWidth = 0
	ChecksumWidth8     ChecksumWidth = 1
	ChecksumWidth8To16 ChecksumWidth = 2
	ChecksumWidth16    ChecksumWidth = 3
)

var checksumWidthNames = []string{"none", "8", "8to16", "16"}

func (w ChecksumWidth) String() string { return nameOf(checksumWidthNames, w) }
func (w ChecksumWidth) MarshalText() ([]byte, error) { return marshalName(checksumWidthNames, w) }
func (w *ChecksumWidth) UnmarshalText(text []byte) error { return unmarshalName(checksumWidthNames, "width", text, w) }

// TraceIDType is how the private trace ID was generated.
type TraceIDType uint8

// Trace ID types.
const (
	TraceIDNone          TraceIDType = 0
	TraceIDStatic        TraceIDType = 1
	TraceIDSIDHashLittle TraceIDType = 2
	TraceIDSIDHashBig    TraceIDType = 3
)

var traceIDTypeNames = []string{"none", "static", "littleEndianSIDHash", "bigEndianSIDHash"}

func (t TraceIDType) String() string { return nameOf(traceIDTypeNames, t) }
func (t TraceIDType) MarshalText() ([]byte, error) { return marshalName(traceIDTypeNames, t) }
func (t *TraceIDType) UnmarshalText(text []byte) error { return unmarshalName(traceIDTypeNames, "privateTID", text, t) }

// SignatureType is how an installation signature was derived.
type SignatureType uint8

// Signature types. SignatureChecksum marks signatures produced by an
// algorithm that has not been identified; they are never validated.
const (
	SignatureNone     SignatureType = 0
	SignatureStatic   SignatureType = 1
	SignatureChecksum SignatureType = 2
	SignatureMD5      SignatureType = 3
)

var signatureTypeNames = []string{"none", "static", "checksum", "md5"}

func (t SignatureType) String() string { return nameOf(signatureTypeNames, t) }
func (t SignatureType) MarshalText() ([]byte, error) { return marshalName(signatureTypeNames, t) }
func (t *SignatureType) UnmarshalText(text []byte) error { return unmarshalName(signatureTypeNames, "type", text, t) }

// IOBoard is the I/O expansion board a game requires.
type IOBoard uint8

// I/O boards.
const (
	IOBoardNone        IOBoard = 0
	IOBoardAnalog      IOBoard = 1
	IOBoardKick        IOBoard = 2
	IOBoardFishingReel IOBoard = 3
	IOBoardDigital     IOBoard = 4
	IOBoardDDRKaraoke  IOBoard = 5
	IOBoardGunMania    IOBoard = 6
)

var ioBoardNames = []string{
	"none",
	"GX700-PWB(F)",
	"GX700-PWB(K)",
	"GE765-PWB(B)A",
	"GX894-PWB(B)A",
	"GX921-PWB(B)",
	"PWB0000073070",
}

func (b IOBoard) String() string { return nameOf(ioBoardNames, b) }
func (b IOBoard) MarshalText() ([]byte, error) { return marshalName(ioBoardNames, b) }
func (b *IOBoard) UnmarshalText(text []byte) error { return unmarshalName(ioBoardNames, "ioBoard", text, b) }

// CartPCBType is the cartridge board revision.
type CartPCBType uint8

// Cartridge boards. The unknown types are used when only the chip is known.
const (
	CartPCBNone              CartPCBType = 0
	CartUnknownX76F041       CartPCBType = 1
	CartUnknownX76F041DS2401 CartPCBType = 2
	CartUnknownZS01          CartPCBType = 3
	CartGX700PWBD            CartPCBType = 4
	CartGX700PWBE            CartPCBType = 5
	CartGX700PWBJ            CartPCBType = 6
	CartGX883PWBD            CartPCBType = 7
	CartGX894PWBD            CartPCBType = 8
	CartGX896PWBAA           CartPCBType = 9
	CartGE949PWBDA           CartPCBType = 10
	CartGE949PWBDB           CartPCBType = 11
	CartPWB0000068819        CartPCBType = 12
	CartPWB0000088954        CartPCBType = 13
)

var cartPCBTypeNames = []string{
	"none",
	"unknown-x76f041",
	"unknown-x76f041-ds2401",
	"unknown-zs01",
	"GX700-PWB(D)",
	"GX700-PWB(E)",
	"GX700-PWB(J)",
	"GX883-PWB(D)",
	"GX894-PWB(D)",
	"GX896-PWB(A)A",
	"GE949-PWB(D)A",
	"GE949-PWB(D)B",
	"PWB0000068819",
	"PWB0000088954",
}

func (p CartPCBType) String() string { return nameOf(cartPCBTypeNames, p) }
func (p CartPCBType) MarshalText() ([]byte, error) { return marshalName(cartPCBTypeNames, p) }
func (p *CartPCBType) UnmarshalText(text []byte) error { return unmarshalName(cartPCBTypeNames, "pcb", text, p) }

// Fixed-size byte fields are written to JSON as dash separated hex
// ("01-02-03"), the same way the game info files store them.

func hexText(data []byte) []byte {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = hex.EncodeToString([]byte{b})
	}
	return []byte(strings.Join(parts, "-"))
}

func parseHexText(dst []byte, text []byte) error {
	cleaned := strings.NewReplacer("-", "", " ", "").Replace(string(text))
	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFlags, err)
	}
	if len(data) != len(dst) {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidFlags, len(dst), len(data))
	}
	copy(dst, data)
	return nil
}

// DataKey is the 8-byte key protecting a cartridge's private area.
type DataKey [8]byte

func (k DataKey) MarshalText() ([]byte, error) { return hexText(k[:]), nil }
func (k *DataKey) UnmarshalText(text []byte) error { return parseHexText(k[:], text) }

// YearField is the raw 2-byte year stored in a header.
type YearField [2]byte

func (y YearField) MarshalText() ([]byte, error) { return hexText(y[:]), nil }
func (y *YearField) UnmarshalText(text []byte) error { return parseHexText(y[:], text) }

// SignatureField holds the first 4 bytes of a static installation signature.
type SignatureField [4]byte

func (s SignatureField) MarshalText() ([]byte, error) { return hexText(s[:]), nil }
func (s *SignatureField) UnmarshalText(text []byte) error { return parseHexText(s[:], text) }

// Identifier is an 8-byte trace, cartridge, install or system ID.
type Identifier [8]byte

func (id Identifier) MarshalText() ([]byte, error) { return hexText(id[:]), nil }
func (id *Identifier) UnmarshalText(text []byte) error { return parseHexText(id[:], text) }
