package parser

import (
	"bytes"
	"fmt"

	"github.com/richardwooding/cartsleuth/internal/formats"
)

// SignatureBlockSize is the size of the installation signature and its
// padding.
const SignatureBlockSize = 16

// DetectedSignature is the result of signature detection.
type DetectedSignature struct {
	Flags formats.SignatureFlags

	// Field holds the first 4 bytes of a static signature
	Field formats.SignatureField

	// Raw is the signature as stored
	Raw [8]byte
}

// DetectSignature classifies the installation signature at offset.
//
// Signatures whose last 4 bytes are not all zero are taken to be MD5 based,
// as an MD5 signature ending in 4 null bytes is practically impossible. The
// rest are fixed values baked into the installation disc, except on games
// that lock their flash to the I/O board's system ID: those derive the
// signature with an algorithm that has not been reverse engineered, so it is
// reported as SignatureChecksum and never validated.
func DetectSignature(data []byte, offset int, systemIDLocked bool) (DetectedSignature, error) {
	var sig DetectedSignature

	if offset < 0 || offset+SignatureBlockSize > len(data) {
		return sig, fmt.Errorf("%w: signature at %d", ErrOffsetOutOfBounds, offset)
	}
	installSig := data[offset : offset+8]
	padding := data[offset+8 : offset+SignatureBlockSize]
	copy(sig.Raw[:], installSig)

	if !bytes.Equal(installSig, padding) {
		switch {
		case !isZero(installSig[4:8]):
			sig.Flags.Type = formats.SignatureMD5
		case systemIDLocked:
			sig.Flags.Type = formats.SignatureChecksum
		default:
			sig.Flags.Type = formats.SignatureStatic
			copy(sig.Field[:], installSig[0:4])
		}
	}

	switch {
	case isFilled(padding, 0xff):
		sig.Flags.PadWithFF = true
	case !isZero(padding):
		return DetectedSignature{}, ErrSignaturePadding
	}

	return sig, nil
}

func isFilled(data []byte, value byte) bool {
	for _, b := range data {
		if b != value {
			return false
		}
	}
	return true
}
