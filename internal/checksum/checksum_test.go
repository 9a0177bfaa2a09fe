package checksum

import (
	"encoding/hex"
	"testing"
)

func TestSum8(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		invert bool
		want   uint8
	}{
		{"empty", []byte{}, false, 0x00},
		{"empty inverted", []byte{}, true, 0xff},
		{"sequence", []byte{1, 2, 3, 4, 5, 6, 7}, false, 0x1c},
		{"sequence inverted", []byte{1, 2, 3, 4, 5, 6, 7}, true, 0xe3},
		{"wraps", []byte{0xff, 0x02}, false, 0x01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sum8(tt.data, tt.invert); got != tt.want {
				t.Errorf("Sum8() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}
}

func TestSum8To16(t *testing.T) {
	data := []byte{0xff, 0xff, 0x02}

	if got := Sum8To16(data, false); got != 0x0200 {
		t.Errorf("Sum8To16() = 0x%04X, want 0x0200", got)
	}
	if got := Sum8To16(data, true); got != 0xfdff {
		t.Errorf("Sum8To16(inverted) = 0x%04X, want 0xFDFF", got)
	}
}

func TestSum16(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		bigEndian bool
		invert    bool
		want      uint16
	}{
		{"little endian", []byte{1, 2, 3, 4}, false, false, 0x0604},
		{"big endian", []byte{1, 2, 3, 4}, true, false, 0x0406},
		{"inverted", []byte{1, 2, 3, 4}, false, true, 0xf9fb},
		{"odd trailing byte ignored", []byte{1, 2, 3}, false, false, 0x0201},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sum16(tt.data, tt.bigEndian, tt.invert); got != tt.want {
				t.Errorf("Sum16() = 0x%04X, want 0x%04X", got, tt.want)
			}
		})
	}
}

func TestSwap16(t *testing.T) {
	if got := Swap16(0x1234); got != 0x3412 {
		t.Errorf("Swap16(0x1234) = 0x%04X, want 0x3412", got)
	}
}

func TestDSCRC8(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint8
	}{
		{"empty", []byte{}, 0x00},
		{"reference sequence", []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}, 0x0f},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSCRC8(tt.data); got != tt.want {
				t.Errorf("DSCRC8() = 0x%02X, want 0x%02X", got, tt.want)
			}
		})
	}

	// Appending the CRC to a valid serial must yield a zero remainder.
	id := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	id = append(id, DSCRC8(id))
	if got := DSCRC8(id); got != 0 {
		t.Errorf("DSCRC8(id+crc) = 0x%02X, want 0x00", got)
	}
}

func TestSIDCRC16(t *testing.T) {
	key := []byte{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc}

	tests := []struct {
		width int
		want  uint16
	}{
		{16, 0xf0de},
		{14, 0x1cc2},
		{0, 0x0000},
	}

	for _, tt := range tests {
		if got := SIDCRC16(key, tt.width); got != tt.want {
			t.Errorf("SIDCRC16(width %d) = 0x%04X, want 0x%04X", tt.width, got, tt.want)
		}
	}
}

func TestSignatureMD5(t *testing.T) {
	systemID, _ := hex.DecodeString("0112345678" + "9abc3d")
	header := make([]byte, 16)

	got := SignatureMD5(systemID, header)
	if hex.EncodeToString(got[:]) != "31c6d110a8322950" {
		t.Errorf("SignatureMD5() = %x, want 31c6d110a8322950", got)
	}
}
