package parser_test

import (
	"errors"
	"testing"

	"github.com/richardwooding/cartsleuth/internal/cartridge"
	"github.com/richardwooding/cartsleuth/internal/formats"
	"github.com/richardwooding/cartsleuth/internal/parser"
	"github.com/richardwooding/cartsleuth/internal/synth"
)

func TestDetectCacheCart(t *testing.T) {
	cache, err := parser.NewDetectCache(4)
	if err != nil {
		t.Fatalf("NewDetectCache() error = %v", err)
	}

	dump, err := allIDsCart(cartridge.ChipZS01).Dump()
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	first, err := cache.ParseCartHeader(dump, formats.CartPCBNone)
	if err != nil {
		t.Fatalf("ParseCartHeader() error = %v", err)
	}
	second, err := cache.ParseCartHeader(dump, formats.CartPCBNone)
	if err != nil {
		t.Fatalf("ParseCartHeader() error = %v", err)
	}
	if first != second {
		t.Error("second ParseCartHeader() was not served from the cache")
	}

	// A different board type is a different result.
	third, err := cache.ParseCartHeader(dump, formats.CartGE949PWBDA)
	if err != nil {
		t.Fatalf("ParseCartHeader() error = %v", err)
	}
	if third.Info.PCB != formats.CartGE949PWBDA {
		t.Errorf("PCB = %s, want %s", third.Info.PCB, formats.CartGE949PWBDA)
	}
	if cache.Len() != 2 {
		t.Errorf("Len() = %d, want 2", cache.Len())
	}
}

func TestDetectCacheErrors(t *testing.T) {
	cache, err := parser.NewDetectCache(4)
	if err != nil {
		t.Fatalf("NewDetectCache() error = %v", err)
	}

	dump := &cartridge.CartDump{Chip: cartridge.ChipX76F100, Data: make([]byte, 112)}
	for range 2 {
		if _, err := cache.ParseCartHeader(dump, formats.CartPCBNone); !errors.Is(err, cartridge.ErrUnsupportedChip) {
			t.Errorf("ParseCartHeader() error = %v, want ErrUnsupportedChip", err)
		}
	}
	if cache.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cache.Len())
	}

	if _, err := parser.NewDetectCache(0); err == nil {
		t.Error("NewDetectCache(0) succeeded")
	}
}

func TestDetectCacheROMHeaderOptions(t *testing.T) {
	cache, err := parser.NewDetectCache(4)
	if err != nil {
		t.Fatalf("NewDetectCache() error = %v", err)
	}

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

	unlocked, err := cache.ParseROMHeader(dump)
	if err != nil {
		t.Fatalf("ParseROMHeader() error = %v", err)
	}
	locked, err := cache.ParseROMHeader(dump, parser.WithSystemIDLock(true))
	if err != nil {
		t.Fatalf("ParseROMHeader() error = %v", err)
	}

	if unlocked.Info.SignatureFlags.Type != formats.SignatureStatic {
		t.Errorf("unlocked signature = %s, want static", unlocked.Info.SignatureFlags.Type)
	}
	if locked.Info.SignatureFlags.Type != formats.SignatureChecksum {
		t.Errorf("locked signature = %s, want checksum", locked.Info.SignatureFlags.Type)
	}
}
