package cartdb

import (
	"encoding"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/richardwooding/cartsleuth/internal/cartridge"
	"github.com/richardwooding/cartsleuth/internal/formats"
	"github.com/richardwooding/cartsleuth/internal/games"
	"github.com/richardwooding/cartsleuth/internal/parser"
)

// Output file names.
const FlashDBName = "flash.db"

var cartDBNames = map[cartridge.ChipType]string{
	cartridge.ChipX76F041: "x76f041.cartdb",
	cartridge.ChipX76F100: "x76f100.cartdb",
	cartridge.ChipZS01:    "zs01.cartdb",
}

var (
	ErrNoRegion = errors.New("can't parse game region from dump")
	ErrNoCode   = errors.New("can't parse game code from dump nor from hints")

	// ErrGameNotFound indicates a dump whose code and region are not in the
	// game list.
	ErrGameNotFound = errors.New("game not found in game list")

	// ErrCartIDMismatch indicates a cartridge whose identifiers contradict
	// the cartridge type declared in the game list.
	ErrCartIDMismatch = errors.New("cartridge ID presence does not match game list")

	// ErrSystemIDMismatch indicates a cartridge or flash header that
	// contradicts the game's I/O board lock.
	ErrSystemIDMismatch = errors.New("dump does not match game's system ID lock")
)

// CartDBName returns the database file name for a chip type.
func CartDBName(chip cartridge.ChipType) (string, error) {
	name, ok := cartDBNames[chip]
	if !ok {
		return "", fmt.Errorf("%w: %s", cartridge.ErrUnsupportedChip, chip)
	}
	return name, nil
}

// exportRecord is a processed flash dump, kept for ExportCSV.
type exportRecord struct {
	hints   string
	code    string
	region  string
	matches string
	format  formats.FormatType
	flags   string
}

// Builder accumulates database entries. It is safe for concurrent use.
type Builder struct {
	games  *games.List
	logger *slog.Logger
	cache  *parser.DetectCache

	mu      sync.Mutex
	carts   map[cartridge.ChipType][]CartEntry
	flash   []ROMHeaderEntry
	exports []exportRecord
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger imported entries are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// WithDetectCache makes the builder reuse parser results for identical dumps.
func WithDetectCache(cache *parser.DetectCache) Option {
	return func(b *Builder) {
		b.cache = cache
	}
}

// NewBuilder returns a builder matching dumps against list.
func NewBuilder(list *games.List, opts ...Option) *Builder {
	b := &Builder{
		games:  list,
		logger: slog.Default(),
		carts:  make(map[cartridge.ChipType][]CartEntry),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddCart parses a cartridge dump and records an entry for each distinct game
// it matches. Hints (file or directory names) supply the game code when the
// header does not store one.
func (b *Builder) AddCart(dump *cartridge.CartDump, hints ...string) ([]CartEntry, error) {
	if _, err := CartDBName(dump.Chip); err != nil {
		return nil, err
	}

	result, err := b.parseCart(dump)
	if err != nil {
		return nil, err
	}
	code, region, err := resolveGame(result.Header, hints)
	if err != nil {
		return nil, err
	}

	matches := b.games.LookupByCode(code, region)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrGameNotFound, code, region)
	}

	hasCartID := result.Info.IDFlags.HasCartID()
	hasSystemID := result.Info.IDFlags.PrivateXID || result.Info.IDFlags.PublicXID
	seen := make(map[string]bool)
	var entries []CartEntry

	for _, game := range matches {
		if seen[game.Name] {
			continue
		}
		seen[game.Name] = true

		// Only games whose cartridge type is known can contradict the dump.
		if game.GameCart != "" && game.HasCartID() != hasCartID {
			return nil, fmt.Errorf("%w: %s expects %s, dump has cart ID: %v",
				ErrCartIDMismatch, game.FullName(), game.GameCart, hasCartID)
		}
		if game.CartLockedToIOBoard && !hasSystemID {
			return nil, fmt.Errorf("%w: %s is locked to its I/O board, dump has no system ID",
				ErrSystemIDMismatch, game.FullName())
		}

		entries = append(entries, CartEntry{
			Chip:   dump.Chip,
			Code:   code,
			Region: region,
			Name:   game.Name,
			Info:   result.Info,
		})
	}

	b.mu.Lock()
	b.carts[dump.Chip] = append(b.carts[dump.Chip], entries...)
	b.mu.Unlock()

	for _, e := range entries {
		b.logger.Info("imported cartridge", "chip", dump.Chip, "game", e.Name, "format", parser.DescribeCart(e.Info))
	}
	return entries, nil
}

// AddROMHeader parses a flash or RTC header dump and records an entry for
// the first game it matches. Every processed dump is kept for ExportCSV,
// including those that match no game.
func (b *Builder) AddROMHeader(dump *cartridge.ROMHeaderDump, hints ...string) (*ROMHeaderEntry, error) {
	result, err := b.parseROMHeader(dump)
	if err != nil {
		return nil, err
	}
	code, region, err := resolveGame(result.Header, hints)
	if err != nil {
		return nil, err
	}

	matches := b.games.LookupByCode(code, region)

	b.mu.Lock()
	b.exports = append(b.exports, newExportRecord(hints, code, region, matches, result.Info))
	b.mu.Unlock()

	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %s %s", ErrGameNotFound, code, region)
	}
	game := matches[0]

	locked := game.HasSystemID() && game.FlashLockedToIOBoard
	if locked && result.Info.SignatureFlags.Type == formats.SignatureStatic {
		if result, err = b.parseROMHeader(dump, parser.WithSystemIDLock(true)); err != nil {
			return nil, err
		}
	}

	sigType := result.Info.SignatureFlags.Type
	signed := sigType == formats.SignatureMD5 || sigType == formats.SignatureChecksum
	switch {
	case locked && !signed:
		return nil, fmt.Errorf("%w: game has a system ID but dump has no signature", ErrSystemIDMismatch)
	case !locked && signed:
		return nil, fmt.Errorf("%w: dump has a signature but game has no system ID", ErrSystemIDMismatch)
	}
	if sigType == formats.SignatureMD5 && dump.HasSystemID() && !result.SignatureVerified {
		b.logger.Warn("MD5 signature does not match system ID", "game", game.FullName())
	}

	entry := ROMHeaderEntry{
		Code:   code,
		Region: region,
		Name:   game.Name,
		Info:   result.Info,
	}

	b.mu.Lock()
	b.flash = append(b.flash, entry)
	b.mu.Unlock()

	b.logger.Info("imported flash header", "game", game.FullName(), "format", parser.DescribeROMHeader(entry.Info))
	return &entry, nil
}

func (b *Builder) parseCart(dump *cartridge.CartDump) (*parser.CartResult, error) {
	if b.cache != nil {
		return b.cache.ParseCartHeader(dump, formats.CartPCBNone)
	}
	return parser.ParseCartHeader(dump, formats.CartPCBNone)
}

func (b *Builder) parseROMHeader(dump *cartridge.ROMHeaderDump, opts ...parser.ROMHeaderOption) (*parser.ROMHeaderResult, error) {
	if b.cache != nil {
		return b.cache.ParseROMHeader(dump, opts...)
	}
	return parser.ParseROMHeader(dump, opts...)
}

// resolveGame returns the code and region stored in a header, falling back
// to the first hint containing a game code.
func resolveGame(header *parser.Header, hints []string) (code, region string, err error) {
	region = strings.ToUpper(header.Region)
	if region == "" {
		return "", "", ErrNoRegion
	}

	code = header.GameCode()
	if code != "" {
		return code, region, nil
	}
	for _, hint := range hints {
		if found, ok := games.FindCode(hint); ok {
			return found, region, nil
		}
	}
	return "", "", ErrNoCode
}

func newExportRecord(
	hints []string,
	code, region string,
	matches []*games.Entry,
	info formats.ROMHeaderInfo,
) exportRecord {
	names := make([]string, len(matches))
	for i, game := range matches {
		if game.MAMEID != "" {
			names[i] = game.MAMEID
		} else {
			names[i] = "[" + game.String() + "]"
		}
	}

	var flags []string
	for _, group := range []fmt.Stringer{info.HeaderFlags, info.ChecksumFlags, info.SignatureFlags} {
		if s := group.String(); s != "0" {
			flags = append(flags, s)
		}
	}

	return exportRecord{
		hints:   strings.Join(hints, " "),
		code:    code,
		region:  region,
		matches: strings.Join(names, " "),
		format:  info.HeaderFlags.Format,
		flags:   strings.Join(flags, "|"),
	}
}

// CartEntries returns the sorted entries recorded for a chip type.
func (b *Builder) CartEntries(chip cartridge.ChipType) []CartEntry {
	b.mu.Lock()
	entries := slices.Clone(b.carts[chip])
	b.mu.Unlock()

	slices.SortFunc(entries, func(x, y CartEntry) int { return x.Compare(&y) })
	return entries
}

// ROMHeaderEntries returns the sorted flash header entries.
func (b *Builder) ROMHeaderEntries() []ROMHeaderEntry {
	b.mu.Lock()
	entries := slices.Clone(b.flash)
	b.mu.Unlock()

	slices.SortFunc(entries, func(x, y ROMHeaderEntry) int { return x.Compare(&y) })
	return entries
}

// WriteCartDBs writes one database per chip type to dir. Chip types with no
// entries are skipped. It returns the number of entries written per chip.
func (b *Builder) WriteCartDBs(fs afero.Fs, dir string) (map[cartridge.ChipType]int, error) {
	written := make(map[cartridge.ChipType]int)

	for _, chip := range []cartridge.ChipType{cartridge.ChipX76F041, cartridge.ChipX76F100, cartridge.ChipZS01} {
		entries := b.CartEntries(chip)
		if len(entries) == 0 {
			b.logger.Warn("database is empty", "chip", chip)
			continue
		}

		name, err := CartDBName(chip)
		if err != nil {
			return written, err
		}
		records := make([]encoding.BinaryMarshaler, len(entries))
		for i := range entries {
			records[i] = &entries[i]
		}
		if err := writeRecords(fs, filepath.Join(dir, name), records); err != nil {
			return written, err
		}

		written[chip] = len(entries)
	}
	return written, nil
}

// WriteFlashDB writes the flash header database to dir and returns the
// number of entries written.
func (b *Builder) WriteFlashDB(fs afero.Fs, dir string) (int, error) {
	entries := b.ROMHeaderEntries()
	if len(entries) == 0 {
		b.logger.Warn("no flash header entries generated")
		return 0, nil
	}

	records := make([]encoding.BinaryMarshaler, len(entries))
	for i := range entries {
		records[i] = &entries[i]
	}
	if err := writeRecords(fs, filepath.Join(dir, FlashDBName), records); err != nil {
		return 0, err
	}
	return len(entries), nil
}

func writeRecords(fs afero.Fs, path string, records []encoding.BinaryMarshaler) (err error) {
	file, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	for _, record := range records {
		data, err := record.MarshalBinary()
		if err != nil {
			return err
		}
		if _, err := file.Write(data); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

// ExportCSV writes a table of every flash dump passed to AddROMHeader,
// ordered by hints.
func (b *Builder) ExportCSV(w io.Writer) error {
	b.mu.Lock()
	records := slices.Clone(b.exports)
	b.mu.Unlock()

	slices.SortFunc(records, func(x, y exportRecord) int {
		return strings.Compare(x.hints, y.hints)
	})

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"# nameHints", "code", "region", "matchList", "formatType", "flags"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{r.hints, r.code, r.region, r.matches, r.format.String(), r.flags}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
