package formats

import (
	"errors"
	"fmt"
)

// Binary record sizes.
const (
	CartInfoSize      = 16
	ROMHeaderInfoSize = 10
)

// ErrInvalidRecord indicates a binary record of the wrong size.
var ErrInvalidRecord = errors.New("invalid record")

// CartInfo is everything needed to recreate the data of a security
// cartridge, as recovered by the parser.
type CartInfo struct {
	PCB CartPCBType `json:"pcb"`

	DataKey   DataKey   `json:"dataKey"`
	YearField YearField `json:"yearField"`

	// TIDWidth is the bit width of the hash used to derive the trace ID
	TIDWidth uint8 `json:"tidWidth,omitempty"`

	// MIDValue is the first byte of the install ID
	MIDValue uint8 `json:"midValue,omitempty"`

	HeaderFlags   HeaderFlags     `json:"headerFlags"`
	ChecksumFlags ChecksumFlags   `json:"checksumFlags"`
	IDFlags       IdentifierFlags `json:"idFlags"`
}

// MarshalBinary encodes the info into its 16-byte database record.
func (c CartInfo) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, CartInfoSize)
	out = append(out, c.DataKey[:]...)
	out = append(out, c.YearField[:]...)
	out = append(out,
		byte(c.PCB),
		c.TIDWidth,
		c.MIDValue,
		c.HeaderFlags.Bits(),
		c.ChecksumFlags.Bits(),
		c.IDFlags.Bits(),
	)
	return out, nil
}

// UnmarshalBinary decodes a 16-byte database record.
func (c *CartInfo) UnmarshalBinary(data []byte) error {
	if len(data) != CartInfoSize {
		return fmt.Errorf("%w: cart info is %d bytes, want %d", ErrInvalidRecord, len(data), CartInfoSize)
	}

	header, err := HeaderFlagsFromBits(data[13])
	if err != nil {
		return err
	}
	sum, err := ChecksumFlagsFromBits(data[14])
	if err != nil {
		return err
	}
	ids, err := IdentifierFlagsFromBits(data[15])
	if err != nil {
		return err
	}
	if int(data[10]) >= len(cartPCBTypeNames) {
		return fmt.Errorf("%w: PCB type %d", ErrInvalidFlags, data[10])
	}

	*c = CartInfo{
		PCB:           CartPCBType(data[10]),
		TIDWidth:      data[11],
		MIDValue:      data[12],
		HeaderFlags:   header,
		ChecksumFlags: sum,
		IDFlags:       ids,
	}
	copy(c.DataKey[:], data[0:8])
	copy(c.YearField[:], data[8:10])
	return nil
}

// ROMHeaderInfo is everything needed to recreate a flash or RTC RAM header,
// as recovered by the parser.
type ROMHeaderInfo struct {
	SignatureField SignatureField `json:"signatureField"`
	YearField      YearField      `json:"yearField"`

	HeaderFlags    HeaderFlags    `json:"headerFlags"`
	ChecksumFlags  ChecksumFlags  `json:"checksumFlags"`
	SignatureFlags SignatureFlags `json:"signatureFlags"`
}

// MarshalBinary encodes the info into its 10-byte database record.
func (r ROMHeaderInfo) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, ROMHeaderInfoSize)
	out = append(out, r.SignatureField[:]...)
	out = append(out, r.YearField[:]...)
	out = append(out,
		r.HeaderFlags.Bits(),
		r.ChecksumFlags.Bits(),
		r.SignatureFlags.Bits(),
		0,
	)
	return out, nil
}

// UnmarshalBinary decodes a 10-byte database record.
func (r *ROMHeaderInfo) UnmarshalBinary(data []byte) error {
	if len(data) != ROMHeaderInfoSize {
		return fmt.Errorf("%w: ROM header info is %d bytes, want %d", ErrInvalidRecord, len(data), ROMHeaderInfoSize)
	}

	header, err := HeaderFlagsFromBits(data[6])
	if err != nil {
		return err
	}
	sum, err := ChecksumFlagsFromBits(data[7])
	if err != nil {
		return err
	}
	sig, err := SignatureFlagsFromBits(data[8])
	if err != nil {
		return err
	}

	*r = ROMHeaderInfo{
		HeaderFlags:    header,
		ChecksumFlags:  sum,
		SignatureFlags: sig,
	}
	copy(r.SignatureField[:], data[0:4])
	copy(r.YearField[:], data[4:6])
	return nil
}

// GameInfo is an entry of the game information files maintained alongside
// the game list, optionally annotated with the headers and cartridges found
// in the game's dumps.
type GameInfo struct {
	Specifications []string  `json:"specifications"`
	Code           string    `json:"code"`
	Regions        []string  `json:"regions"`
	Identifiers    []*string `json:"identifiers"`

	Name   string `json:"name"`
	Series string `json:"series,omitempty"`
	Year   int    `json:"year"`

	Flags GameFlags `json:"flags"`

	BootloaderVersion string `json:"bootloaderVersion,omitempty"`

	RTCHeader   *ROMHeaderInfo `json:"rtcHeader,omitempty"`
	FlashHeader *ROMHeaderInfo `json:"flashHeader,omitempty"`
	InstallCart *CartInfo      `json:"installCart,omitempty"`
	GameCart    *CartInfo      `json:"gameCart,omitempty"`
}

// HasRegion reports whether the game was released with the given region code.
func (g *GameInfo) HasRegion(region string) bool {
	for _, r := range g.Regions {
		if r == region {
			return true
		}
	}
	return false
}
