// Package cartdb builds the cartridge and flash header databases: sorted
// files of fixed-width records that pair the parameters recovered from a
// dump with the game it belongs to.
package cartdb

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/richardwooding/cartsleuth/internal/cartridge"
	"github.com/richardwooding/cartsleuth/internal/formats"
	"github.com/richardwooding/cartsleuth/internal/games"
)

// Record layout.
const (
	EntrySize = 128

	codeFieldSize   = 8
	regionFieldSize = 8
	nameFieldSize   = 96
)

// ErrInvalidEntry indicates a record of the wrong size or with invalid
// fields.
var ErrInvalidEntry = errors.New("invalid database entry")

// CartEntry is a cartridge database record.
type CartEntry struct {
	Chip   cartridge.ChipType
	Code   string
	Region string
	Name   string

	// Info.PCB is not stored
	Info formats.CartInfo
}

// Compare orders entries the way games.Entry.Compare does.
func (e *CartEntry) Compare(other *CartEntry) int {
	return games.CompareKeys(e.Code, e.Region, e.Name, other.Code, other.Region, other.Name)
}

// MarshalBinary encodes the entry into its 128-byte record.
func (e *CartEntry) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, EntrySize)
	out = append(out,
		byte(e.Chip),
		e.Info.HeaderFlags.Bits(),
		e.Info.IDFlags.Bits(),
		e.Info.ChecksumFlags.Bits(),
		e.Info.TIDWidth,
		e.Info.MIDValue,
	)
	out = append(out, e.Info.YearField[:]...)
	out = append(out, e.Info.DataKey[:]...)
	out = appendField(out, e.Code, codeFieldSize)
	out = appendField(out, e.Region, regionFieldSize)
	out = appendField(out, asciiName(e.Name), nameFieldSize)
	return out, nil
}

// UnmarshalBinary decodes a 128-byte record.
func (e *CartEntry) UnmarshalBinary(data []byte) error {
	if len(data) != EntrySize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidEntry, len(data))
	}

	header, err := formats.HeaderFlagsFromBits(data[1])
	if err != nil {
		return err
	}
	ids, err := formats.IdentifierFlagsFromBits(data[2])
	if err != nil {
		return err
	}
	sum, err := formats.ChecksumFlagsFromBits(data[3])
	if err != nil {
		return err
	}

	*e = CartEntry{
		Chip: cartridge.ChipType(data[0]),
		Info: formats.CartInfo{
			TIDWidth:      data[4],
			MIDValue:      data[5],
			HeaderFlags:   header,
			ChecksumFlags: sum,
			IDFlags:       ids,
		},
	}
	copy(e.Info.YearField[:], data[6:8])
	copy(e.Info.DataKey[:], data[8:16])
	e.Code = readField(data[16:24])
	e.Region = readField(data[24:32])
	e.Name = readField(data[32:128])
	return nil
}

// ROMHeaderEntry is a flash database record.
type ROMHeaderEntry struct {
	Code   string
	Region string
	Name   string
	Info   formats.ROMHeaderInfo
}

// Compare orders entries the way games.Entry.Compare does.
func (e *ROMHeaderEntry) Compare(other *ROMHeaderEntry) int {
	return games.CompareKeys(e.Code, e.Region, e.Name, other.Code, other.Region, other.Name)
}

// MarshalBinary encodes the entry into its 128-byte record.
func (e *ROMHeaderEntry) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, EntrySize)
	out = append(out,
		e.Info.HeaderFlags.Bits(),
		e.Info.ChecksumFlags.Bits(),
		e.Info.SignatureFlags.Bits(),
		0,
	)
	out = append(out, e.Info.YearField[:]...)
	out = append(out, e.Info.SignatureField[:]...)
	out = appendField(out, e.Code, codeFieldSize)
	out = appendField(out, e.Region, regionFieldSize)
	out = appendField(out, asciiName(e.Name), nameFieldSize)
	out = append(out, make([]byte, EntrySize-len(out))...)
	return out, nil
}

// UnmarshalBinary decodes a 128-byte record.
func (e *ROMHeaderEntry) UnmarshalBinary(data []byte) error {
	if len(data) != EntrySize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidEntry, len(data))
	}

	header, err := formats.HeaderFlagsFromBits(data[0])
	if err != nil {
		return err
	}
	sum, err := formats.ChecksumFlagsFromBits(data[1])
	if err != nil {
		return err
	}
	sig, err := formats.SignatureFlagsFromBits(data[2])
	if err != nil {
		return err
	}

	*e = ROMHeaderEntry{
		Info: formats.ROMHeaderInfo{
			HeaderFlags:    header,
			ChecksumFlags:  sum,
			SignatureFlags: sig,
		},
	}
	copy(e.Info.YearField[:], data[4:6])
	copy(e.Info.SignatureField[:], data[6:10])
	e.Code = readField(data[10:18])
	e.Region = readField(data[18:26])
	e.Name = readField(data[26:122])
	return nil
}

// ReadCartDB decodes every record of a cartridge database.
func ReadCartDB(r io.Reader) ([]CartEntry, error) {
	var entries []CartEntry
	err := readRecords(r, func(record []byte) error {
		var e CartEntry
		if err := e.UnmarshalBinary(record); err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

// ReadROMHeaderDB decodes every record of a flash database.
func ReadROMHeaderDB(r io.Reader) ([]ROMHeaderEntry, error) {
	var entries []ROMHeaderEntry
	err := readRecords(r, func(record []byte) error {
		var e ROMHeaderEntry
		if err := e.UnmarshalBinary(record); err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	return entries, err
}

func readRecords(r io.Reader, fn func([]byte) error) error {
	br := bufio.NewReader(r)
	record := make([]byte, EntrySize)

	for index := 0; ; index++ {
		_, err := io.ReadFull(br, record)
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, io.ErrUnexpectedEOF):
			return fmt.Errorf("%w: record %d is truncated", ErrInvalidEntry, index)
		case err != nil:
			return err
		}

		if err := fn(record); err != nil {
			return fmt.Errorf("record %d: %w", index, err)
		}
	}
}

// appendField appends s as a NUL padded field. The last byte is always NUL.
func appendField(out []byte, s string, size int) []byte {
	field := make([]byte, size)
	copy(field[:size-1], s)
	return append(out, field...)
}

func readField(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return string(field)
}

// asciiName transliterates a game name to printable ASCII: accents are
// stripped and anything else outside the range becomes '?'.
func asciiName(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), runes.Map(printable))

	ascii, _, err := transform.String(t, name)
	if err != nil {
		return strings.Map(printable, name)
	}
	return ascii
}

func printable(r rune) rune {
	if r < 0x20 || r > 0x7e {
		return '?'
	}
	return r
}
