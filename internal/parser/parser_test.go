package parser_test

import (
	"errors"
	"testing"

	"github.com/richardwooding/cartsleuth/internal/cartridge"
	"github.com/richardwooding/cartsleuth/internal/formats"
	"github.com/richardwooding/cartsleuth/internal/parser"
	"github.com/richardwooding/cartsleuth/internal/synth"
)

var (
	cartID   = formats.Identifier{0x01, 0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0x3d}
	systemID = formats.Identifier{0x01, 0xca, 0xfe, 0xba, 0xbe, 0x00, 0x01, 0xf5}
)

func allIDsCart(chip cartridge.ChipType) *synth.Cart {
	return &synth.Cart{
		Chip: chip,
		Info: formats.CartInfo{
			DataKey:   formats.DataKey{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
			YearField: formats.YearField{0x98, 0x19},
			TIDWidth:  16,
			MIDValue:  0x22,
			HeaderFlags: formats.HeaderFlags{
				Format:       formats.FormatExtended,
				SpecType:     formats.SpecTypeActual,
				InPublicArea: true,
			},
			ChecksumFlags: formats.ChecksumFlags{Width: formats.ChecksumWidth16, Inverted: true},
			IDFlags: formats.IdentifierFlags{
				PrivateTID: formats.TraceIDSIDHashBig,
				PrivateSID: true,
				PrivateMID: true,
				PrivateXID: true,
				PublicMID:  true,
				PublicXID:  true,
			},
		},
		Specification: "GE",
		Code:          "936",
		Region:        "JAA",
		CartID:        cartID,
		SystemID:      systemID,
	}
}

func TestParseCartHeaderScenarioA(t *testing.T) {
	dump := &cartridge.CartDump{
		Chip: cartridge.ChipX76F041,
		Data: make([]byte, 512),
	}
	copy(dump.Data, []byte{
		'G', 'N', '8', '4', '5', 0x00, 0x00, 0x00,
		0x98, 0x19, 'U', 'A', 'A', 0x00, 0x1d, 0x22,
	})

	result, err := parser.ParseCartHeader(dump, formats.CartPCBNone)
	if err != nil {
		t.Fatalf("ParseCartHeader() error = %v", err)
	}

	info := result.Info
	if info.PCB != formats.CartUnknownX76F041 {
		t.Errorf("PCB = %s, want %s", info.PCB, formats.CartUnknownX76F041)
	}
	if info.HeaderFlags.Format != formats.FormatExtended {
		t.Errorf("Format = %s, want %s", info.HeaderFlags.Format, formats.FormatExtended)
	}
	if want := (formats.ChecksumFlags{Width: formats.ChecksumWidth16, Inverted: true}); info.ChecksumFlags != want {
		t.Errorf("ChecksumFlags = %s, want %s", info.ChecksumFlags, want)
	}
	if info.IDFlags != (formats.IdentifierFlags{}) {
		t.Errorf("IDFlags = %s, want none", info.IDFlags)
	}
	if result.Header.GameCode() != "GN845" || result.Header.Region != "UAA" {
		t.Errorf("game = %s %s, want GN845 UAA", result.Header.GameCode(), result.Header.Region)
	}
	if got := parser.DescribeCart(info); got != "extended (no IDs)" {
		t.Errorf("DescribeCart() = %q, want %q", got, "extended (no IDs)")
	}
}

func TestParseCartHeaderAllIDs(t *testing.T) {
	for _, chip := range []cartridge.ChipType{cartridge.ChipX76F041, cartridge.ChipZS01} {
		t.Run(chip.String(), func(t *testing.T) {
			cart := allIDsCart(chip)
			dump, err := cart.Dump()
			if err != nil {
				t.Fatalf("Dump() error = %v", err)
			}

			result, err := parser.ParseCartHeader(dump, formats.CartPCBNone)
			if err != nil {
				t.Fatalf("ParseCartHeader() error = %v", err)
			}

			got := result.Info
			got.PCB = formats.CartPCBNone
			if got != cart.Info {
				t.Errorf("Info = %+v, want %+v", got, cart.Info)
			}
		})
	}
}

func TestParseCartHeaderDummyArea(t *testing.T) {
	cart := allIDsCart(cartridge.ChipX76F041)
	cart.Info.IDFlags.DummyPublicArea = true

	dump, err := cart.Dump()
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	result, err := parser.ParseCartHeader(dump, formats.CartPCBNone)
	if err != nil {
		t.Fatalf("ParseCartHeader() error = %v", err)
	}
	if !result.Info.IDFlags.DummyPublicArea {
		t.Errorf("IDFlags = %s, want dummy public area", result.Info.IDFlags)
	}
	if got := parser.DescribeCart(result.Info); got != "extended + all IDs" {
		t.Errorf("DescribeCart() = %q, want %q", got, "extended + all IDs")
	}
}

func TestParseCartHeaderInstallIDMismatch(t *testing.T) {
	dump, err := allIDsCart(cartridge.ChipZS01).Dump()
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	// The public install ID follows the header at the start of the public area.
	mid := synth.CustomID(0x33)
	copy(dump.Data[16:24], mid[:])

	if _, err := parser.ParseCartHeader(dump, formats.CartPCBNone); !errors.Is(err, parser.ErrInstallIDMismatch) {
		t.Errorf("ParseCartHeader() error = %v, want ErrInstallIDMismatch", err)
	}
}

func TestParseCartHeaderExplicitPCB(t *testing.T) {
	dump, err := allIDsCart(cartridge.ChipZS01).Dump()
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	result, err := parser.ParseCartHeader(dump, formats.CartGE949PWBDA)
	if err != nil {
		t.Fatalf("ParseCartHeader() error = %v", err)
	}
	if result.Info.PCB != formats.CartGE949PWBDA {
		t.Errorf("PCB = %s, want %s", result.Info.PCB, formats.CartGE949PWBDA)
	}
}

func TestInferPCB(t *testing.T) {
	tests := []struct {
		name    string
		dump    *cartridge.CartDump
		want    formats.CartPCBType
		wantErr error
	}{
		{
			name: "X76F041",
			dump: &cartridge.CartDump{Chip: cartridge.ChipX76F041},
			want: formats.CartUnknownX76F041,
		},
		{
			name: "X76F041 with DS2401",
			dump: &cartridge.CartDump{Chip: cartridge.ChipX76F041, Flags: cartridge.DumpHasCartID},
			want: formats.CartUnknownX76F041DS2401,
		},
		{
			name: "ZS01",
			dump: &cartridge.CartDump{Chip: cartridge.ChipZS01},
			want: formats.CartUnknownZS01,
		},
		{
			name:    "X76F100",
			dump:    &cartridge.CartDump{Chip: cartridge.ChipX76F100},
			wantErr: cartridge.ErrUnsupportedChip,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.InferPCB(tt.dump)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("InferPCB() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("InferPCB() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseCartHeaderBlank(t *testing.T) {
	dump := &cartridge.CartDump{Chip: cartridge.ChipZS01, Data: make([]byte, 112)}

	result, err := parser.ParseCartHeader(dump, formats.CartPCBNone)
	if err != nil {
		t.Fatalf("ParseCartHeader() error = %v", err)
	}
	if result.Info.HeaderFlags.Format != formats.FormatNone {
		t.Errorf("Format = %s, want %s", result.Info.HeaderFlags.Format, formats.FormatNone)
	}
}

func TestParseROMHeaderMD5(t *testing.T) {
	rom := &synth.ROMHeader{
		Info: formats.ROMHeaderInfo{
			YearField: formats.YearField{0x00, 0x20},
			HeaderFlags: formats.HeaderFlags{
				Format:       formats.FormatExtended,
				SpecType:     formats.SpecTypeActual,
				InPublicArea: true,
			},
			ChecksumFlags:  formats.ChecksumFlags{Width: formats.ChecksumWidth16, Inverted: true},
			SignatureFlags: formats.SignatureFlags{Type: formats.SignatureMD5},
		},
		Specification: "GE",
		Code:          "A03",
		Region:        "JAA",
		SystemID:      systemID,
	}

	dump, err := rom.Dump()
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	result, err := parser.ParseROMHeader(dump)
	if err != nil {
		t.Fatalf("ParseROMHeader() error = %v", err)
	}
	if result.Info != rom.Info {
		t.Errorf("Info = %+v, want %+v", result.Info, rom.Info)
	}
	if !result.SignatureVerified {
		t.Error("SignatureVerified = false, want true")
	}

	// A different system ID no longer matches the signature.
	dump.SystemID[1] ^= 0xff
	result, err = parser.ParseROMHeader(dump)
	if err != nil {
		t.Fatalf("ParseROMHeader() error = %v", err)
	}
	if result.SignatureVerified {
		t.Error("SignatureVerified = true for a foreign system ID")
	}

	result, err = parser.ParseROMHeader(dump, parser.WithoutSignature())
	if err != nil {
		t.Fatalf("ParseROMHeader() error = %v", err)
	}
	if result.Info.SignatureFlags.Type != formats.SignatureNone {
		t.Errorf("SignatureFlags = %s, want none", result.Info.SignatureFlags)
	}
}

func TestParseROMHeaderSystemIDLock(t *testing.T) {
	rom := &synth.ROMHeader{
		Info: formats.ROMHeaderInfo{
			SignatureField: formats.SignatureField{0xde, 0xad, 0xbe, 0xef},
			HeaderFlags: formats.HeaderFlags{
				Format:       formats.FormatExtended,
				SpecType:     formats.SpecTypeActual,
				InPublicArea: true,
			},
			ChecksumFlags:  formats.ChecksumFlags{Width: formats.ChecksumWidth16, Inverted: true},
			SignatureFlags: formats.SignatureFlags{Type: formats.SignatureStatic, PadWithFF: true},
		},
		Specification: "GC",
		Code:          "845",
		Region:        "EAA",
	}

	dump, err := rom.Dump()
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	result, err := parser.ParseROMHeader(dump)
	if err != nil {
		t.Fatalf("ParseROMHeader() error = %v", err)
	}
	if result.Info != rom.Info {
		t.Errorf("Info = %+v, want %+v", result.Info, rom.Info)
	}

	result, err = parser.ParseROMHeader(dump, parser.WithSystemIDLock(true))
	if err != nil {
		t.Fatalf("ParseROMHeader() error = %v", err)
	}
	if want := (formats.SignatureFlags{Type: formats.SignatureChecksum, PadWithFF: true}); result.Info.SignatureFlags != want {
		t.Errorf("SignatureFlags = %s, want %s", result.Info.SignatureFlags, want)
	}
}

func TestParseROMHeaderScrambled(t *testing.T) {
	rom := &synth.ROMHeader{
		Info: formats.ROMHeaderInfo{
			YearField: formats.YearField{0x98, 0x19},
			HeaderFlags: formats.HeaderFlags{
				Format:       formats.FormatExtended,
				SpecType:     formats.SpecTypeActual,
				InPublicArea: true,
				Scrambled:    true,
			},
			ChecksumFlags: formats.ChecksumFlags{Width: formats.ChecksumWidth16, Inverted: true},
		},
		Specification: "GQ",
		Code:          "886",
		Region:        "EAA",
	}

	dump, err := rom.Dump()
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	result, err := parser.ParseROMHeader(dump)
	if err != nil {
		t.Fatalf("ParseROMHeader() error = %v", err)
	}
	if result.Info != rom.Info {
		t.Errorf("Info = %+v, want %+v", result.Info, rom.Info)
	}
	if result.Header.GameCode() != "GQ886" {
		t.Errorf("GameCode() = %q, want %q", result.Header.GameCode(), "GQ886")
	}
}
