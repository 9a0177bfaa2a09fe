package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/richardwooding/cartsleuth/internal/analysis"
	"github.com/richardwooding/cartsleuth/internal/synth"
)

// ErrInvalidDescription indicates a synth description that does not describe
// exactly one dump.
var ErrInvalidDescription = errors.New("description must contain exactly one of cart or romHeader")

// AnalyzeCmd annotates a game information file.
type AnalyzeCmd struct {
	DumpDir  string `arg:"" help:"Path to MAME NVRAM directory."`
	GameInfo string `arg:"" help:"Path to JSON file containing initial game list."`
	Output   string `arg:"" help:"Path to JSON file to generate."`

	Reanalyze      bool `short:"r" help:"Discard existing analysis information and reanalyze every game with a dump."`
	KeepUnanalyzed bool `short:"k" help:"Do not remove games that have not been analyzed from the output file."`
	Minify         bool `short:"m" help:"Do not pretty print the output file."`
}

// Run executes the analyze command.
func (c *AnalyzeCmd) Run(e *env) error {
	in, err := e.fs.Open(c.GameInfo)
	if err != nil {
		return fmt.Errorf("failed to read game information: %w", err)
	}
	file, err := analysis.Load(in)
	_ = in.Close()
	if err != nil {
		return err
	}

	analyzer := analysis.New(e.fs, c.DumpDir,
		analysis.WithReanalyze(c.Reanalyze),
		analysis.WithWorkers(e.workers),
		analysis.WithDetectCache(e.cache),
		analysis.WithLogger(e.logger),
	)
	out, _, err := analyzer.Analyze(e.ctx, file, c.KeepUnanalyzed)
	if err != nil {
		return err
	}

	return createFile(e, c.Output, func(w io.Writer) error {
		return out.Write(w, c.Minify)
	})
}

// SynthCmd generates a dump container from a description.
type SynthCmd struct {
	Description string `arg:"" help:"Path to JSON description of the dump."`
	Output      string `arg:"" help:"Path to dump file to generate."`

	QR bool `help:"Write cartridges as QR dump strings instead of containers."`
}

// synthDescription holds either a cartridge or a ROM header.
type synthDescription struct {
	Cart      *synth.Cart      `json:"cart,omitempty"`
	ROMHeader *synth.ROMHeader `json:"romHeader,omitempty"`
}

// Run executes the synth command.
func (c *SynthCmd) Run(e *env) error {
	in, err := e.fs.Open(c.Description)
	if err != nil {
		return fmt.Errorf("failed to read description: %w", err)
	}
	var desc synthDescription
	err = json.NewDecoder(in).Decode(&desc)
	_ = in.Close()
	if err != nil {
		return fmt.Errorf("decoding description: %w", err)
	}

	var data []byte
	switch {
	case desc.Cart != nil && desc.ROMHeader == nil:
		data, err = c.cart(desc.Cart)
	case desc.ROMHeader != nil && desc.Cart == nil:
		data, err = c.romHeader(desc.ROMHeader)
	default:
		return ErrInvalidDescription
	}
	if err != nil {
		return err
	}

	return createFile(e, c.Output, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func (c *SynthCmd) cart(desc *synth.Cart) ([]byte, error) {
	dump, err := desc.Dump()
	if err != nil {
		return nil, fmt.Errorf("failed to generate cartridge: %w", err)
	}
	if c.QR {
		qr, err := dump.QRString()
		if err != nil {
			return nil, err
		}
		return []byte(qr + "\n"), nil
	}
	return dump.MarshalBinary()
}

func (c *SynthCmd) romHeader(desc *synth.ROMHeader) ([]byte, error) {
	dump, err := desc.Dump()
	if err != nil {
		return nil, fmt.Errorf("failed to generate ROM header: %w", err)
	}
	return dump.MarshalBinary()
}

func createFile(e *env, path string, write func(io.Writer) error) (err error) {
	file, err := e.fs.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return write(file)
}
