package synth

import (
	"fmt"

	"github.com/richardwooding/cartsleuth/internal/cartridge"
	"github.com/richardwooding/cartsleuth/internal/checksum"
	"github.com/richardwooding/cartsleuth/internal/formats"
)

const signatureBlockSize = 16

// ROMHeader describes a flash or RTC RAM header to generate.
type ROMHeader struct {
	Info formats.ROMHeaderInfo `json:"info"`

	Specification string `json:"specification"`
	Code          string `json:"code"`
	Region        string `json:"region"`

	// SystemID is used to compute MD5 signatures and stored in the dump
	SystemID formats.Identifier `json:"systemID"`
}

// Dump renders the header into a dump.
func (r *ROMHeader) Dump() (*cartridge.ROMHeaderDump, error) {
	hf := r.Info.HeaderFlags

	logical := make([]byte, cartridge.ROMHeaderLength)
	if hf.Scrambled {
		logical = make([]byte, cartridge.ROMHeaderLength/2)
	}

	header, err := encodeHeader(hf, r.Info.ChecksumFlags, r.Info.YearField, r.Specification, r.Code, r.Region)
	if err != nil {
		return nil, err
	}
	if err := place(logical, 0, header); err != nil {
		return nil, err
	}

	if hf.Format == formats.FormatExtended || hf.Format == formats.FormatEarlyExtended {
		sig, err := r.signature(header)
		if err != nil {
			return nil, err
		}
		if sig != nil {
			if err := place(logical, extendedHeaderSize, sig); err != nil {
				return nil, err
			}
		}
	}

	data := logical
	if hf.Scrambled {
		data = scramble(logical)
	}

	dump := &cartridge.ROMHeaderDump{}
	copy(dump.Data[:], data)
	if r.SystemID != (formats.Identifier{}) {
		dump.Flags = cartridge.DumpHasSystemID | cartridge.DumpSystemIDOK
		dump.SystemID = r.SystemID
	}
	return dump, nil
}

// signature returns the installation signature block, or nil if the header
// has no room for one.
func (r *ROMHeader) signature(header []byte) ([]byte, error) {
	sf := r.Info.SignatureFlags

	var padding [8]byte
	if sf.PadWithFF {
		padding = [8]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	}

	var sig [8]byte
	switch sf.Type {
	case formats.SignatureNone:
		sig = padding
	case formats.SignatureStatic:
		copy(sig[:], r.Info.SignatureField[:])
	case formats.SignatureMD5:
		sig = checksum.SignatureMD5(r.SystemID[:], header)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSignature, sf.Type)
	}

	if r.Info.HeaderFlags.Scrambled {
		if sf.Type != formats.SignatureNone {
			return nil, fmt.Errorf("%w: scrambled headers have no room for a signature", ErrLayout)
		}
		return nil, nil
	}

	block := make([]byte, 0, signatureBlockSize)
	block = append(block, sig[:]...)
	block = append(block, padding[:]...)
	return block, nil
}
