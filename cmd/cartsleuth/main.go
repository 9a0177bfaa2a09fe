// Package main provides the cartsleuth CLI application.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"

	"github.com/richardwooding/cartsleuth/internal/cartridge"
	"github.com/richardwooding/cartsleuth/internal/formats"
	"github.com/richardwooding/cartsleuth/internal/parser"
	"github.com/richardwooding/cartsleuth/internal/scanner"
)

// CLI represents the command-line interface structure.
type CLI struct {
	Verbose   int `short:"v" type:"counter" help:"Enable additional logging levels (repeat for debug output)."`
	Workers   int `short:"j" help:"Number of dumps processed concurrently (default: number of CPUs)."`
	CacheSize int `default:"1024" help:"Number of parse results to keep in memory."`

	Info    InfoCmd    `cmd:"" help:"Detect the format of cartridge and ROM header dumps."`
	CartDB  CartDBCmd  `cmd:"" name:"cartdb" help:"Build security cartridge databases from dumps."`
	FlashDB FlashDBCmd `cmd:"" name:"flashdb" help:"Build the flash header database from dumps."`
	Analyze AnalyzeCmd `cmd:"" help:"Annotate a game information file with data from MAME NVRAM dumps."`
	Synth   SynthCmd   `cmd:"" help:"Generate a dump from a JSON description."`
	Formats FormatsCmd `cmd:"" help:"List the known cartridge and ROM header formats."`
}

// env carries the state shared by all commands.
type env struct {
	ctx     context.Context
	fs      afero.Fs
	stdout  io.Writer
	logger  *slog.Logger
	cache   *parser.DetectCache
	workers int
}

func (e *env) scanner() *scanner.Scanner {
	return scanner.New(e.fs, scanner.WithWorkers(e.workers), scanner.WithLogger(e.logger))
}

// newLogger maps the -v count to a level: warnings by default, then info,
// then debug.
func newLogger(w io.Writer, verbose int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbose >= 2:
		level = slog.LevelDebug
	case verbose == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// run parses args and executes the selected command.
func run(ctx context.Context, args []string, fsys afero.Fs, stdout, stderr io.Writer) error {
	cli := &CLI{}
	k, err := kong.New(cli,
		kong.Name("cartsleuth"),
		kong.Description("Identifies and catalogs Konami System 573 security cartridge and flash header dumps."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		return err
	}

	kctx, err := k.Parse(args)
	if err != nil {
		var perr *kong.ParseError
		if errors.As(err, &perr) {
			_ = perr.Context.PrintUsage(true)
		}
		return err
	}

	logger := newLogger(stderr, cli.Verbose)
	slog.SetDefault(logger)

	cache, err := parser.NewDetectCache(cli.CacheSize)
	if err != nil {
		return err
	}

	return kctx.Run(&env{
		ctx:     ctx,
		fs:      fsys,
		stdout:  stdout,
		logger:  logger,
		cache:   cache,
		workers: cli.Workers,
	})
}

// InfoCmd displays the detected format of dumps.
type InfoCmd struct {
	Inputs []string `arg:"" help:"Dumps, directories or archives to inspect."`
}

// infoReport is printed for every dump found.
type infoReport struct {
	Path string `json:"path"`
	Chip string `json:"chip,omitempty"`

	Code        string `json:"code,omitempty"`
	Region      string `json:"region,omitempty"`
	KnownFormat string `json:"knownFormat,omitempty"`

	Cart              *formats.CartInfo      `json:"cart,omitempty"`
	ROMHeader         *formats.ROMHeaderInfo `json:"romHeader,omitempty"`
	SignatureVerified bool                   `json:"signatureVerified,omitempty"`

	Error string `json:"error,omitempty"`
}

// Run executes the info command.
func (c *InfoCmd) Run(e *env) error {
	var mu sync.Mutex
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "\t")

	return e.scanner().Walk(e.ctx, c.Inputs, func(_ context.Context, item *scanner.Item) error {
		report, ok := c.inspect(e, item)
		if !ok {
			e.logger.Debug("not a dump", "path", item.Path)
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(report)
	})
}

func (c *InfoCmd) inspect(e *env, item *scanner.Item) (*infoReport, bool) {
	report := &infoReport{Path: item.Path}

	cart, err := scanner.LoadCartDump(item)
	if err == nil {
		report.Chip = cart.Chip.String()
		result, err := e.cache.ParseCartHeader(cart, formats.CartPCBNone)
		if err != nil {
			report.Error = err.Error()
			return report, true
		}
		report.Code, report.Region = result.Header.GameCode(), result.Header.Region
		report.KnownFormat = parser.DescribeCart(result.Info)
		report.Cart = &result.Info
		return report, true
	}
	if !errors.Is(err, scanner.ErrUnknownDump) {
		report.Error = err.Error()
		return report, true
	}

	header, err := scanner.LoadROMHeaderDump(item)
	if errors.Is(err, scanner.ErrUnknownDump) {
		return nil, false
	}
	if err != nil {
		report.Error = err.Error()
		return report, true
	}

	result, err := e.cache.ParseROMHeader(header)
	if err != nil {
		report.Error = err.Error()
		return report, true
	}
	report.Code, report.Region = result.Header.GameCode(), result.Header.Region
	report.KnownFormat = parser.DescribeROMHeader(result.Info)
	report.ROMHeader = &result.Info
	report.SignatureVerified = result.SignatureVerified
	return report, true
}

// FormatsCmd lists the known formats.
type FormatsCmd struct{}

// Run executes the formats command.
func (c *FormatsCmd) Run(e *env) error {
	fmt.Fprintf(e.stdout, "Cartridge formats:\n")
	for _, f := range parser.KnownCartFormats {
		fmt.Fprintf(e.stdout, "  %-40s %s %s %s\n", f.Name, f.Header, f.Checksum, f.IDs)
	}

	fmt.Fprintf(e.stdout, "\nROM header formats:\n")
	for _, f := range parser.KnownROMHeaderFormats {
		fmt.Fprintf(e.stdout, "  %-40s %s %s %s\n", f.Name, f.Header, f.Checksum, f.Signature)
	}

	fmt.Fprintf(e.stdout, "\nCartridge databases:\n")
	for _, chip := range []cartridge.ChipType{cartridge.ChipX76F041, cartridge.ChipX76F100, cartridge.ChipZS01} {
		size, err := chip.Size()
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "  %-8s %3d bytes, MAME image %d bytes\n", chip, size.DataLength, mameSize(chip))
	}
	return nil
}

func mameSize(chip cartridge.ChipType) int {
	switch chip {
	case cartridge.ChipX76F041:
		return cartridge.MAMEX76F041Size
	case cartridge.ChipX76F100:
		return cartridge.MAMEX76F100Size
	default:
		return cartridge.MAMEZS01Size
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], afero.NewOsFs(), os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
