package parser

import (
	"errors"
	"testing"

	"github.com/richardwooding/cartsleuth/internal/formats"
)

var (
	testCartID   = ID{0x01, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0x3d}
	testSystemID = ID{0x01, 0xca, 0xfe, 0xba, 0xbe, 0x00, 0x01, 0xf5}
	testInstall  = ID{0x22, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xdd}
)

// privateBlock assembles a 32-byte private identifier block.
func privateBlock(tid, cid, mid, xid ID) []byte {
	block := make([]byte, 0, PrivateIDBlockSize)
	block = append(block, tid[:]...)
	block = append(block, cid[:]...)
	block = append(block, mid[:]...)
	block = append(block, xid[:]...)
	return block
}

func TestIDValidateCustom(t *testing.T) {
	tests := []struct {
		name    string
		id      ID
		want    bool
		wantErr error
	}{
		{"empty", ID{}, false, nil},
		{"install ID", testInstall, true, nil},
		{"static trace ID", ID{0x81, 0x00, 0x05, 0x00, 0x00, 0x07, 0x03, 0x6f}, true, nil},
		{"bad check byte", ID{0x22, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xde}, false, ErrIDChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.id.ValidateCustom()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateCustom() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateCustom() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIDValidateDS2401(t *testing.T) {
	tests := []struct {
		name    string
		id      ID
		want    bool
		wantErr error
	}{
		{"empty", ID{}, false, nil},
		{"cart ID", testCartID, true, nil},
		{"system ID", testSystemID, true, nil},
		{"bad CRC", ID{0x01, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0x3e}, false, ErrIDChecksum},
		{"zero family", ID{0x00, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0x3d}, false, ErrIDFamilyCode},
		{"erased family", ID{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, false, ErrIDFamilyCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.id.ValidateDS2401()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateDS2401() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ValidateDS2401() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectPrivateIDs(t *testing.T) {
	tests := []struct {
		name      string
		block     []byte
		wantFlags formats.IdentifierFlags
		wantWidth uint8
		wantMID   uint8
	}{
		{
			name:  "empty",
			block: make([]byte, PrivateIDBlockSize),
		},
		{
			name:      "static trace ID",
			block:     privateBlock(ID{0x81, 0x00, 0x05, 0x00, 0x00, 0x07, 0x03, 0x6f}, ID{}, ID{}, ID{}),
			wantFlags: formats.IdentifierFlags{PrivateTID: formats.TraceIDStatic},
		},
		{
			name:      "big endian 16-bit hash",
			block:     privateBlock(ID{0x82, 0xf0, 0xde, 0x00, 0x00, 0x00, 0x00, 0xaf}, testCartID, ID{}, ID{}),
			wantFlags: formats.IdentifierFlags{PrivateTID: formats.TraceIDSIDHashBig, PrivateSID: true},
			wantWidth: 16,
		},
		{
			name:      "little endian 14-bit hash",
			block:     privateBlock(ID{0x82, 0xc2, 0x1c, 0x00, 0x00, 0x00, 0x00, 0x9f}, testCartID, ID{}, ID{}),
			wantFlags: formats.IdentifierFlags{PrivateTID: formats.TraceIDSIDHashLittle, PrivateSID: true},
			wantWidth: 14,
		},
		{
			// Only the low 14 bits of the cart ID are set, so both widths
			// produce the same hash.
			name:      "hash matching both widths",
			block:     privateBlock(ID{0x82, 0x34, 0x12, 0x00, 0x00, 0x00, 0x00, 0x00}, ID{0x01, 0x12, 0x34, 0x00, 0x00, 0x00, 0x00, 0x93}, ID{}, ID{}),
			wantFlags: formats.IdentifierFlags{PrivateTID: formats.TraceIDSIDHashBig, PrivateSID: true},
			wantWidth: 16,
		},
		{
			name:  "all IDs",
			block: privateBlock(ID{0x82, 0xf0, 0xde, 0x00, 0x00, 0x00, 0x00, 0xaf}, testCartID, testInstall, testSystemID),
			wantFlags: formats.IdentifierFlags{
				PrivateTID: formats.TraceIDSIDHashBig,
				PrivateSID: true,
				PrivateMID: true,
				PrivateXID: true,
			},
			wantWidth: 16,
			wantMID:   0x22,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectPrivateIDs(tt.block, 0, -1)
			if err != nil {
				t.Fatalf("DetectPrivateIDs() error = %v", err)
			}
			if got.Flags != tt.wantFlags {
				t.Errorf("Flags = %s, want %s", got.Flags, tt.wantFlags)
			}
			if got.TIDWidth != tt.wantWidth {
				t.Errorf("TIDWidth = %d, want %d", got.TIDWidth, tt.wantWidth)
			}
			if got.MIDValue != tt.wantMID {
				t.Errorf("MIDValue = 0x%02X, want 0x%02X", got.MIDValue, tt.wantMID)
			}
		})
	}
}

func TestDetectPrivateIDsErrors(t *testing.T) {
	tests := []struct {
		name    string
		block   []byte
		wantErr error
	}{
		{
			name:    "unknown prefix",
			block:   privateBlock(ID{0x90, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x6f}, ID{}, ID{}, ID{}),
			wantErr: ErrUnknownTraceID,
		},
		{
			name:    "hash matches no width",
			block:   privateBlock(ID{0x82, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x7c}, testCartID, ID{}, ID{}),
			wantErr: ErrTraceIDWidth,
		},
		{
			name:    "bad cart ID",
			block:   privateBlock(ID{}, ID{0x00, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0x3d}, ID{}, ID{}),
			wantErr: ErrIDFamilyCode,
		},
		{
			name:    "bad install ID",
			block:   privateBlock(ID{}, ID{}, ID{0x22, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, ID{}),
			wantErr: ErrIDChecksum,
		},
		{
			name:    "short block",
			block:   make([]byte, 20),
			wantErr: ErrOffsetOutOfBounds,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DetectPrivateIDs(tt.block, 0, -1); !errors.Is(err, tt.wantErr) {
				t.Errorf("DetectPrivateIDs() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDetectPrivateIDsDummyArea(t *testing.T) {
	data := make([]byte, 128)
	copy(data[32:], privateBlock(ID{}, testCartID, testInstall, ID{}))

	got, err := DetectPrivateIDs(data, 96, 32)
	if err != nil {
		t.Fatalf("DetectPrivateIDs() error = %v", err)
	}
	if !got.Flags.DummyPublicArea || !got.Flags.PrivateSID || !got.Flags.PrivateMID {
		t.Errorf("Flags = %s, want dummy area with SID and MID", got.Flags)
	}

	// An empty dummy block leaves the regular offset in use.
	got, err = DetectPrivateIDs(data, 32, 64)
	if err != nil {
		t.Fatalf("DetectPrivateIDs() error = %v", err)
	}
	if got.Flags.DummyPublicArea {
		t.Errorf("Flags = %s, want no dummy area", got.Flags)
	}
}

func TestDetectPublicIDs(t *testing.T) {
	block := append(append([]byte{}, testInstall[:]...), testSystemID[:]...)

	got, err := DetectPublicIDs(block, 0)
	if err != nil {
		t.Fatalf("DetectPublicIDs() error = %v", err)
	}
	if want := (formats.IdentifierFlags{PublicMID: true, PublicXID: true}); got.Flags != want {
		t.Errorf("Flags = %s, want %s", got.Flags, want)
	}
	if got.MIDValue != 0x22 {
		t.Errorf("MIDValue = 0x%02X, want 0x22", got.MIDValue)
	}

	if _, err := DetectPublicIDs(block, 8); !errors.Is(err, ErrOffsetOutOfBounds) {
		t.Errorf("DetectPublicIDs() error = %v, want ErrOffsetOutOfBounds", err)
	}
}
