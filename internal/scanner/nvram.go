package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/richardwooding/cartsleuth/internal/cartridge"
)

// Files MAME stores in a System 573 NVRAM directory.
const (
	nvramRTC         = "m48t58"
	nvramFlashEven   = "29f016a" + evenSuffix
	nvramFlashOdd    = "29f016a" + oddSuffix
	nvramInstallCart = "cassette_install_eeprom"
	nvramGameCart    = "cassette_game_eeprom"
)

// RTCHeaderOffset is the offset of the header within the RTC RAM.
const RTCHeaderOffset = 0

// NVRAMDump holds the dumps found in a MAME NVRAM directory. Fields are nil
// for files that are not present.
type NVRAMDump struct {
	RTCHeader   *cartridge.ROMHeaderDump
	FlashHeader *cartridge.ROMHeaderDump
	InstallCart *cartridge.CartDump
	GameCart    *cartridge.CartDump
}

// IsEmpty reports whether no dumps were found.
func (d *NVRAMDump) IsEmpty() bool {
	return d.RTCHeader == nil && d.FlashHeader == nil && d.InstallCart == nil && d.GameCart == nil
}

// ReadNVRAM loads the headers and cartridges from a MAME NVRAM directory.
// MAME does not emulate the I/O board's DS2401, so the ROM headers carry no
// system ID.
func (s *Scanner) ReadNVRAM(dir string) (*NVRAMDump, error) {
	dump := &NVRAMDump{}

	rtc, err := s.readOptional(path.Join(dir, nvramRTC))
	if err != nil {
		return nil, err
	}
	if rtc != nil {
		if dump.RTCHeader, err = headerAt(rtc, RTCHeaderOffset); err != nil {
			return nil, fmt.Errorf("%s: %w", nvramRTC, err)
		}
	}

	even, odd := path.Join(dir, nvramFlashEven), path.Join(dir, nvramFlashOdd)
	if s.exists(even) && s.exists(odd) {
		flash, err := s.readInterleaved(even, odd)
		if err != nil {
			return nil, fmt.Errorf("reading flash: %w", err)
		}
		if dump.FlashHeader, err = headerAt(flash, 0); err != nil {
			return nil, fmt.Errorf("flash: %w", err)
		}
	}

	if dump.InstallCart, err = s.readMAMECart(path.Join(dir, nvramInstallCart)); err != nil {
		return nil, err
	}
	if dump.GameCart, err = s.readMAMECart(path.Join(dir, nvramGameCart)); err != nil {
		return nil, err
	}
	return dump, nil
}

func (s *Scanner) readMAMECart(name string) (*cartridge.CartDump, error) {
	data, err := s.readOptional(name)
	if err != nil || data == nil {
		return nil, err
	}

	dump, err := cartridge.ParseMAMECartDump(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path.Base(name), err)
	}
	return dump, nil
}

// readOptional reads a file, returning nil data if it does not exist.
func (s *Scanner) readOptional(name string) ([]byte, error) {
	data, err := s.readFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path.Base(name), err)
	}
	return data, nil
}

func (s *Scanner) exists(name string) bool {
	info, err := s.fs.Stat(name)
	return err == nil && !info.IsDir()
}

func headerAt(data []byte, offset int) (*cartridge.ROMHeaderDump, error) {
	if len(data) < offset+cartridge.ROMHeaderLength {
		return nil, fmt.Errorf("%w: got %d bytes, need %d",
			cartridge.ErrDumpTooShort, len(data), offset+cartridge.ROMHeaderLength)
	}

	dump := &cartridge.ROMHeaderDump{Flags: cartridge.DumpPublicDataOK}
	copy(dump.Data[:], data[offset:])
	return dump, nil
}
