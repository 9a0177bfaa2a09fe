package parser

import (
	"errors"
	"testing"

	"github.com/richardwooding/cartsleuth/internal/formats"
)

func TestDetectSignature(t *testing.T) {
	ff := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	zero := make([]byte, 8)

	tests := []struct {
		name      string
		sig       []byte
		padding   []byte
		locked    bool
		wantFlags formats.SignatureFlags
		wantField formats.SignatureField
	}{
		{
			name:    "none",
			sig:     zero,
			padding: zero,
		},
		{
			name:      "none padded with FF",
			sig:       ff,
			padding:   ff,
			wantFlags: formats.SignatureFlags{PadWithFF: true},
		},
		{
			name:      "static",
			sig:       []byte{0x12, 0x34, 0x56, 0x78, 0x00, 0x00, 0x00, 0x00},
			padding:   ff,
			wantFlags: formats.SignatureFlags{Type: formats.SignatureStatic, PadWithFF: true},
			wantField: formats.SignatureField{0x12, 0x34, 0x56, 0x78},
		},
		{
			name:      "locked to system ID",
			sig:       []byte{0x12, 0x34, 0x56, 0x78, 0x00, 0x00, 0x00, 0x00},
			padding:   zero,
			locked:    true,
			wantFlags: formats.SignatureFlags{Type: formats.SignatureChecksum},
		},
		{
			name:      "md5",
			sig:       []byte{0x9e, 0x10, 0x7d, 0x9d, 0x37, 0x2b, 0xb6, 0x82},
			padding:   zero,
			wantFlags: formats.SignatureFlags{Type: formats.SignatureMD5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, 0, 32)
			data = append(data, make([]byte, 16)...)
			data = append(data, tt.sig...)
			data = append(data, tt.padding...)

			got, err := DetectSignature(data, 16, tt.locked)
			if err != nil {
				t.Fatalf("DetectSignature() error = %v", err)
			}
			if got.Flags != tt.wantFlags {
				t.Errorf("Flags = %s, want %s", got.Flags, tt.wantFlags)
			}
			if got.Field != tt.wantField {
				t.Errorf("Field = % X, want % X", got.Field, tt.wantField)
			}
			if string(got.Raw[:]) != string(tt.sig) {
				t.Errorf("Raw = % X, want % X", got.Raw, tt.sig)
			}
		})
	}
}

func TestDetectSignatureErrors(t *testing.T) {
	badPadding := []byte{
		0x12, 0x34, 0x56, 0x78, 0x00, 0x00, 0x00, 0x00,
		0xff, 0xff, 0x00, 0x00, 0xff, 0xff, 0x00, 0x00,
	}
	if _, err := DetectSignature(badPadding, 0, false); !errors.Is(err, ErrSignaturePadding) {
		t.Errorf("DetectSignature() error = %v, want ErrSignaturePadding", err)
	}

	if _, err := DetectSignature(make([]byte, 24), 16, false); !errors.Is(err, ErrOffsetOutOfBounds) {
		t.Errorf("DetectSignature() error = %v, want ErrOffsetOutOfBounds", err)
	}
}
