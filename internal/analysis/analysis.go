// Package analysis annotates game information files with the header and
// cartridge formats found in MAME NVRAM dumps.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"runtime"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/richardwooding/cartsleuth/internal/cartridge"
	"github.com/richardwooding/cartsleuth/internal/formats"
	"github.com/richardwooding/cartsleuth/internal/parser"
	"github.com/richardwooding/cartsleuth/internal/scanner"
)

// Section names, as used in game information files.
const (
	SectionRTCHeader   = "rtcHeader"
	SectionFlashHeader = "flashHeader"
	SectionInstallCart = "installCart"
	SectionGameCart    = "gameCart"
)

// ErrInvalidFile indicates a game information file without a game list.
var ErrInvalidFile = errors.New("invalid game information file")

// File is a game information file.
type File struct {
	Schema string              `json:"$schema,omitempty"`
	Games  []*formats.GameInfo `json:"games"`
}

// Load reads a game information file.
func Load(r io.Reader) (*File, error) {
	var f File
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding game information: %w", err)
	}
	if f.Games == nil {
		return nil, fmt.Errorf("%w: no games array", ErrInvalidFile)
	}
	for i, game := range f.Games {
		if game == nil {
			return nil, fmt.Errorf("%w: game %d is null", ErrInvalidFile, i)
		}
	}
	return &f, nil
}

// Write encodes the file, indented with tabs unless minify is set.
func (f *File) Write(w io.Writer, minify bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if !minify {
		enc.SetIndent("", "\t")
	}
	return enc.Encode(f)
}

// Result represents the result of analyzing a game.
type Result struct {
	Game *formats.GameInfo

	// Identifier is the NVRAM directory that was analyzed, empty if none of
	// the game's identifiers had one
	Identifier string

	// Updated lists the sections that were filled in
	Updated []string
	Error   error
}

// Analyzed reports whether a dump was found for the game.
func (r *Result) Analyzed() bool {
	return r.Identifier != ""
}

// String returns a human-readable representation of the result.
func (r *Result) String() string {
	if r.Error != nil {
		return fmt.Sprintf("ERROR: %v", r.Error)
	}

	if !r.Analyzed() {
		return "NO DUMP"
	}

	if len(r.Updated) == 0 {
		return "UNCHANGED"
	}

	return "UPDATED " + strings.Join(r.Updated, ", ")
}

// IsSuccess returns true if a dump was found and fully parsed.
func (r *Result) IsSuccess() bool {
	return r.Analyzed() && r.Error == nil
}

func (r *Result) record(section string, err error) {
	if err != nil {
		r.Error = errors.Join(r.Error, fmt.Errorf("%s: %w", section, err))
		return
	}
	r.Updated = append(r.Updated, section)
}

// Analyzer reads the NVRAM directories MAME creates for each game.
type Analyzer struct {
	fs        afero.Fs
	root      string
	scanner   *scanner.Scanner
	cache     *parser.DetectCache
	reanalyze bool
	workers   int
	logger    *slog.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithReanalyze replaces sections that are already present.
func WithReanalyze(reanalyze bool) Option {
	return func(a *Analyzer) {
		a.reanalyze = reanalyze
	}
}

// WithWorkers sets the number of games analyzed concurrently.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithDetectCache shares parse results with other users of cache.
func WithDetectCache(cache *parser.DetectCache) Option {
	return func(a *Analyzer) {
		a.cache = cache
	}
}

// WithLogger sets the logger progress is reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// New returns an analyzer for the NVRAM directories under root.
func New(fsys afero.Fs, root string, opts ...Option) *Analyzer {
	a := &Analyzer{
		fs:      fsys,
		root:    root,
		workers: runtime.GOMAXPROCS(0),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.scanner = scanner.New(fsys, scanner.WithLogger(a.logger))
	return a
}

// AnalyzeGame fills in the sections of game for which a dump exists. Only
// the first identifier with an NVRAM directory is analyzed; all of a game's
// dumps are assumed to differ only in their region.
func (a *Analyzer) AnalyzeGame(game *formats.GameInfo) *Result {
	result := &Result{Game: game}

	dir, id, ok := a.findDump(game)
	if !ok {
		return result
	}
	result.Identifier = id

	dump, err := a.scanner.ReadNVRAM(dir)
	if err != nil {
		result.Error = err
		return result
	}

	var sectionErr error
	if dump.RTCHeader != nil && (a.reanalyze || game.RTCHeader == nil) {
		game.RTCHeader, sectionErr = a.romHeader(dump.RTCHeader, game.RTCHeader)
		result.record(SectionRTCHeader, sectionErr)
	}
	if dump.FlashHeader != nil && (a.reanalyze || game.FlashHeader == nil) {
		game.FlashHeader, sectionErr = a.romHeader(dump.FlashHeader, game.FlashHeader)
		result.record(SectionFlashHeader, sectionErr)
	}
	if dump.InstallCart != nil && (a.reanalyze || game.InstallCart == nil) {
		game.InstallCart, sectionErr = a.cart(dump.InstallCart, game.InstallCart)
		result.record(SectionInstallCart, sectionErr)
	}
	if dump.GameCart != nil && (a.reanalyze || game.GameCart == nil) {
		game.GameCart, sectionErr = a.cart(dump.GameCart, game.GameCart)
		result.record(SectionGameCart, sectionErr)
	}

	return result
}

// Analyze analyzes every game in f and returns a new file holding the
// analyzed games, plus the unanalyzed ones if keepUnanalyzed is set. Games
// are modified in place.
func (a *Analyzer) Analyze(ctx context.Context, f *File, keepUnanalyzed bool) (*File, []*Result, error) {
	results := make([]*Result, len(f.Games))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, game := range f.Games {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = a.AnalyzeGame(game)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := &File{Schema: f.Schema, Games: []*formats.GameInfo{}}
	for _, r := range results {
		code := r.Game.Code + " " + strings.Join(r.Game.Regions, "/")

		switch {
		case !r.Analyzed():
			a.logger.Error("no dump found", "name", r.Game.Name, "code", code)
		case r.Error != nil:
			a.logger.Error("analysis failed", "id", r.Identifier, "code", code, "error", r.Error)
		default:
			a.logger.Info("analyzed", "id", r.Identifier, "code", code, "result", r.String())
		}

		if r.Analyzed() || keepUnanalyzed {
			out.Games = append(out.Games, r.Game)
		}
	}

	a.logger.Info("saving entries", "saved", len(out.Games), "total", len(f.Games))
	return out, results, nil
}

func (a *Analyzer) findDump(game *formats.GameInfo) (dir, id string, ok bool) {
	for _, identifier := range game.Identifiers {
		if identifier == nil || *identifier == "" {
			continue
		}

		candidate := path.Join(a.root, *identifier)
		if exists, _ := afero.DirExists(a.fs, candidate); exists {
			return candidate, *identifier, true
		}
	}
	return "", "", false
}

// romHeader parses a header, returning prev if it cannot be parsed.
func (a *Analyzer) romHeader(dump *cartridge.ROMHeaderDump, prev *formats.ROMHeaderInfo) (*formats.ROMHeaderInfo, error) {
	var (
		result *parser.ROMHeaderResult
		err    error
	)
	if a.cache != nil {
		result, err = a.cache.ParseROMHeader(dump)
	} else {
		result, err = parser.ParseROMHeader(dump)
	}
	if err != nil {
		return prev, err
	}

	info := result.Info
	return &info, nil
}

// cart parses a cartridge, returning prev if it cannot be parsed.
func (a *Analyzer) cart(dump *cartridge.CartDump, prev *formats.CartInfo) (*formats.CartInfo, error) {
	var (
		result *parser.CartResult
		err    error
	)
	if a.cache != nil {
		result, err = a.cache.ParseCartHeader(dump, formats.CartPCBNone)
	} else {
		result, err = parser.ParseCartHeader(dump, formats.CartPCBNone)
	}
	if err != nil {
		return prev, err
	}

	info := result.Info
	return &info, nil
}
