// Package parser detects the layout of security cartridge and ROM header data
// and recovers the parameters needed to recreate it.
//
// Nothing in the data identifies its layout, so every known combination of
// header format, checksum algorithm and identifier encoding is tried until
// one validates.
package parser

import (
	"fmt"

	"github.com/richardwooding/cartsleuth/internal/cartridge"
	"github.com/richardwooding/cartsleuth/internal/checksum"
	"github.com/richardwooding/cartsleuth/internal/formats"
)

// FlashHeaderOffset is the offset of the header within a flash or RTC RAM
// header dump.
const FlashHeaderOffset = 0

// CartResult is a successfully parsed cartridge.
type CartResult struct {
	Info   formats.CartInfo
	Header *Header
}

// InferPCB returns the generic board type for a dump's chip.
func InferPCB(dump *cartridge.CartDump) (formats.CartPCBType, error) {
	switch dump.Chip {
	case cartridge.ChipX76F041:
		if dump.Flags.Has(cartridge.DumpHasCartID) {
			return formats.CartUnknownX76F041DS2401, nil
		}
		return formats.CartUnknownX76F041, nil
	case cartridge.ChipZS01:
		return formats.CartUnknownZS01, nil
	default:
		return formats.CartPCBNone, fmt.Errorf("%w: %s cartridges are not supported",
			cartridge.ErrUnsupportedChip, dump.Chip)
	}
}

// ParseCartHeader detects the header and identifiers stored in a cartridge
// dump. If pcb is CartPCBNone the board type is inferred from the chip.
func ParseCartHeader(dump *cartridge.CartDump, pcb formats.CartPCBType) (*CartResult, error) {
	if pcb == formats.CartPCBNone {
		inferred, err := InferPCB(dump)
		if err != nil {
			return nil, err
		}
		pcb = inferred
	}

	size, err := dump.Size()
	if err != nil {
		return nil, err
	}

	publicOffset := -1
	if size.HasPublicArea() {
		publicOffset = size.PublicOffset
	}

	header, err := DetectHeader(dump.Data, size.PrivateOffset, publicOffset)
	if err != nil {
		return nil, err
	}

	var private, public DetectedIDs

	// Identifier blocks that do not fit in the (possibly unscrambled) data
	// are treated as absent.
	if header.PrivateIDOffset >= 0 && header.PrivateIDOffset+PrivateIDBlockSize <= len(header.Data) {
		dummyOffset := -1
		if header.Flags.InPublicArea && size.PublicOffset > size.PrivateOffset {
			dummyOffset = header.PrivateIDOffset - size.PublicOffset + size.PrivateOffset
		}

		private, err = DetectPrivateIDs(header.Data, header.PrivateIDOffset, dummyOffset)
		if err != nil {
			return nil, err
		}
	}
	if header.PublicIDOffset >= 0 && header.PublicIDOffset+PublicIDBlockSize <= len(header.Data) {
		public, err = DetectPublicIDs(header.Data, header.PublicIDOffset)
		if err != nil {
			return nil, err
		}
	}

	if private.Flags.PrivateMID && public.Flags.PublicMID && private.MIDValue != public.MIDValue {
		return nil, fmt.Errorf("%w: private 0x%02X, public 0x%02X",
			ErrInstallIDMismatch, private.MIDValue, public.MIDValue)
	}

	midValue := private.MIDValue
	if !private.Flags.PrivateMID {
		midValue = public.MIDValue
	}

	return &CartResult{
		Info: formats.CartInfo{
			PCB:           pcb,
			DataKey:       formats.DataKey(dump.DataKey),
			YearField:     header.YearField,
			TIDWidth:      private.TIDWidth,
			MIDValue:      midValue,
			HeaderFlags:   header.Flags,
			ChecksumFlags: header.Checksum,
			IDFlags:       private.Flags.Merge(public.Flags),
		},
		Header: header,
	}, nil
}

// ROMHeaderResult is a successfully parsed flash or RTC RAM header.
type ROMHeaderResult struct {
	Info      formats.ROMHeaderInfo
	Header    *Header
	Signature DetectedSignature

	// SignatureVerified is set when an MD5 signature matches the dump's
	// system ID. It is never set for other signature types.
	SignatureVerified bool
}

type romHeaderConfig struct {
	ignoreSignature bool
	systemIDLocked  bool
}

// ROMHeaderOption configures ParseROMHeader.
type ROMHeaderOption func(*romHeaderConfig)

// WithoutSignature skips signature detection.
func WithoutSignature() ROMHeaderOption {
	return func(c *romHeaderConfig) {
		c.ignoreSignature = true
	}
}

// WithSystemIDLock tells the parser whether the game locks its flash to the
// I/O board's system ID, which changes how non-MD5 signatures are classified.
func WithSystemIDLock(locked bool) ROMHeaderOption {
	return func(c *romHeaderConfig) {
		c.systemIDLocked = locked
	}
}

// ParseROMHeader detects the header and installation signature stored in a
// flash or RTC RAM header dump.
func ParseROMHeader(dump *cartridge.ROMHeaderDump, opts ...ROMHeaderOption) (*ROMHeaderResult, error) {
	var cfg romHeaderConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	header, err := DetectHeader(dump.Data[:], -1, FlashHeaderOffset)
	if err != nil {
		return nil, err
	}

	result := &ROMHeaderResult{Header: header}

	// Scrambled headers take up the whole area, leaving no room for a
	// signature.
	hasSignature := header.PublicIDOffset >= 0 &&
		header.PublicIDOffset+SignatureBlockSize <= len(header.Data)

	if !cfg.ignoreSignature && hasSignature {
		result.Signature, err = DetectSignature(header.Data, header.PublicIDOffset, cfg.systemIDLocked)
		if err != nil {
			return nil, err
		}
	}

	if result.Signature.Flags.Type == formats.SignatureMD5 && dump.HasSystemID() {
		start := header.PublicIDOffset - ExtendedHeaderSize
		expected := checksum.SignatureMD5(dump.SystemID[:], header.Data[start:header.PublicIDOffset])
		result.SignatureVerified = expected == result.Signature.Raw
	}

	result.Info = formats.ROMHeaderInfo{
		SignatureField: result.Signature.Field,
		YearField:      header.YearField,
		HeaderFlags:    header.Flags,
		ChecksumFlags:  header.Checksum,
		SignatureFlags: result.Signature.Flags,
	}
	return result, nil
}
