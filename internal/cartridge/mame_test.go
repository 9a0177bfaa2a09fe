package cartridge

import (
	"encoding/binary"
	"errors"
	"testing"
)

func mameImage(magic uint32, size int) []byte {
	data := make([]byte, size)
	binary.BigEndian.PutUint32(data, magic)
	for i := 4; i < size; i++ {
		data[i] = byte(i)
	}
	return data
}

func TestParseMAMECartDump(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		wantChip  ChipType
		wantFlags DumpFlag
		keyOffset int
		dataStart int
	}{
		{
			name:      "X76F041",
			data:      mameImage(mameX76F041Magic, MAMEX76F041Size),
			wantChip:  ChipX76F041,
			wantFlags: DumpPublicDataOK | DumpPrivateDataOK | DumpConfigOK,
			keyOffset: 4 + 2*IDLength,
			dataStart: 4 + 4*IDLength,
		},
		{
			name:      "ZS01",
			data:      mameImage(mameZS01Magic, MAMEZS01Size),
			wantChip:  ChipZS01,
			wantFlags: DumpPublicDataOK | DumpPrivateDataOK | DumpConfigOK | DumpZSIDOK,
			keyOffset: 4 + IDLength,
			dataStart: 4 + 3*IDLength,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseMAMECartDump(tt.data)
			if err != nil {
				t.Fatalf("ParseMAMECartDump() error = %v", err)
			}
			if d.Chip != tt.wantChip {
				t.Errorf("Chip = %s, want %s", d.Chip, tt.wantChip)
			}
			if d.Flags != tt.wantFlags {
				t.Errorf("Flags = %s, want %s", d.Flags, tt.wantFlags)
			}
			if d.DataKey[0] != byte(tt.keyOffset) {
				t.Errorf("DataKey[0] = 0x%02X, want 0x%02X", d.DataKey[0], byte(tt.keyOffset))
			}
			if d.Data[0] != byte(tt.dataStart) {
				t.Errorf("Data[0] = 0x%02X, want 0x%02X", d.Data[0], byte(tt.dataStart))
			}
			if d.Flags.Has(DumpHasCartID) {
				t.Error("MAME dumps must not carry a cart ID")
			}
		})
	}
}

func TestParseMAMEX76F100(t *testing.T) {
	data := make([]byte, MAMEX76F100Size)
	binary.BigEndian.PutUint32(data, mameX76F100Magic)
	copy(data[4:], "KEYKEYKEKEYKEYKE")

	d, err := ParseMAMECartDump(data)
	if err != nil {
		t.Fatalf("ParseMAMECartDump() error = %v", err)
	}
	if d.Chip != ChipX76F100 || string(d.DataKey[:]) != "KEYKEYKE" {
		t.Errorf("got chip %s key %q", d.Chip, d.DataKey[:])
	}
	if len(d.Data) != 112 {
		t.Errorf("len(Data) = %d, want 112", len(d.Data))
	}

	data[4] = 'X'
	if _, err := ParseMAMECartDump(data); !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("mismatched keys error = %v, want ErrKeyMismatch", err)
	}
}

func TestParseMAMECartDumpErrors(t *testing.T) {
	if _, err := ParseMAMECartDump(mameImage(0xdeadbeef, MAMEZS01Size)); !errors.Is(err, ErrUnsupportedChip) {
		t.Errorf("unknown magic error = %v, want ErrUnsupportedChip", err)
	}
	if _, err := ParseMAMECartDump(mameImage(mameX76F041Magic, 100)); !errors.Is(err, ErrDumpTooShort) {
		t.Errorf("truncated image error = %v, want ErrDumpTooShort", err)
	}
	if !IsMAMEDumpSize(MAMEX76F100Size) || IsMAMEDumpSize(1000) {
		t.Error("IsMAMEDumpSize() returned wrong result")
	}
}
