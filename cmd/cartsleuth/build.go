package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/richardwooding/cartsleuth/internal/cartdb"
	"github.com/richardwooding/cartsleuth/internal/games"
	"github.com/richardwooding/cartsleuth/internal/scanner"
)

// CartDBCmd builds the cartridge databases.
type CartDBCmd struct {
	GameList string   `arg:"" help:"Path to JSON file containing game list."`
	Inputs   []string `arg:"" help:"Cartridge dumps, directories or archives to scan."`
	Output   string   `short:"o" default:"." help:"Directory to write databases to."`
}

// Run executes the cartdb command.
func (c *CartDBCmd) Run(e *env) error {
	builder, err := newBuilder(e, c.GameList)
	if err != nil {
		return err
	}

	stats := newImportStats()
	err = e.scanner().Walk(e.ctx, c.Inputs, func(_ context.Context, item *scanner.Item) error {
		dump, err := scanner.LoadCartDump(item)
		if errors.Is(err, scanner.ErrUnknownDump) {
			e.logger.Debug("skipping file", "path", item.Path)
			return nil
		}
		if err != nil {
			stats.fail(e.logger, "unknown", item, err)
			return nil
		}

		entries, err := builder.AddCart(dump, item.Hints()...)
		if err != nil {
			stats.fail(e.logger, dump.Chip.String(), item, err)
			return nil
		}
		for _, entry := range entries {
			e.logger.Info("imported", "path", item.Path, "code", entry.Code, "region", entry.Region, "name", entry.Name)
		}
		stats.succeed()
		return nil
	})
	if err != nil {
		return err
	}

	if err := e.fs.MkdirAll(c.Output, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	written, err := builder.WriteCartDBs(e.fs, c.Output)
	if err != nil {
		return err
	}
	for chip, n := range written {
		e.logger.Info("saved database", "chip", chip, "entries", n)
	}

	stats.report(e.logger)
	return nil
}

// FlashDBCmd builds the flash header database.
type FlashDBCmd struct {
	GameList string   `arg:"" help:"Path to JSON file containing game list."`
	Inputs   []string `arg:"" help:"Flash dumps, MAME flash chip pairs, directories or archives to scan."`
	Output   string   `short:"o" default:"." help:"Directory to write the database to."`
	Export   string   `short:"e" help:"Export a CSV table of every processed dump to this path."`
}

// Run executes the flashdb command.
func (c *FlashDBCmd) Run(e *env) error {
	builder, err := newBuilder(e, c.GameList)
	if err != nil {
		return err
	}

	stats := newImportStats()
	err = e.scanner().Walk(e.ctx, c.Inputs, func(_ context.Context, item *scanner.Item) error {
		dump, err := scanner.LoadROMHeaderDump(item)
		if errors.Is(err, scanner.ErrUnknownDump) {
			e.logger.Debug("skipping file", "path", item.Path)
			return nil
		}
		if err != nil {
			stats.fail(e.logger, "flash", item, err)
			return nil
		}

		entry, err := builder.AddROMHeader(dump, item.Hints()...)
		if err != nil {
			stats.fail(e.logger, "flash", item, err)
			return nil
		}
		e.logger.Info("imported", "path", item.Path, "code", entry.Code, "region", entry.Region, "name", entry.Name)
		stats.succeed()
		return nil
	})
	if err != nil {
		return err
	}

	if err := e.fs.MkdirAll(c.Output, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	n, err := builder.WriteFlashDB(e.fs, c.Output)
	if err != nil {
		return err
	}
	e.logger.Info("saved database", "entries", n)

	if c.Export != "" {
		if err := createFile(e, c.Export, builder.ExportCSV); err != nil {
			return err
		}
	}

	stats.report(e.logger)
	return nil
}

func newBuilder(e *env, gameList string) (*cartdb.Builder, error) {
	file, err := e.fs.Open(gameList)
	if err != nil {
		return nil, fmt.Errorf("failed to read game list: %w", err)
	}
	defer func() { _ = file.Close() }()

	list, err := games.Load(file)
	if err != nil {
		return nil, err
	}
	return cartdb.NewBuilder(list, cartdb.WithLogger(e.logger), cartdb.WithDetectCache(e.cache)), nil
}

// importStats counts imported dumps and failures per chip. Failed dumps are
// logged and skipped.
type importStats struct {
	mu       sync.Mutex
	imported int
	failures map[string]int
}

func newImportStats() *importStats {
	return &importStats{failures: make(map[string]int)}
}

func (s *importStats) succeed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imported++
}

func (s *importStats) fail(logger *slog.Logger, kind string, item *scanner.Item, err error) {
	logger.Error("failed to import", "path", item.Path, "error", err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[kind]++
}

func (s *importStats) report(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logger.Info("import finished", "imported", s.imported)

	kinds := make([]string, 0, len(s.failures))
	for kind := range s.failures {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		logger.Warn("dumps failed to import", "kind", kind, "count", s.failures[kind])
	}
}
