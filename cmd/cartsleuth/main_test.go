package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/richardwooding/cartsleuth/internal/analysis"
	"github.com/richardwooding/cartsleuth/internal/cartdb"
	"github.com/richardwooding/cartsleuth/internal/formats"
)

const testGameList = `[
	{"code": "GC845", "region": "EBA", "name": "Dance Dance Revolution", "id": "ddrex"},
	{"code": "GE936", "region": "JAA", "name": "Dance Dance Revolution 3rdMIX", "id": "ddr3mk", "gameCart": "ZS01+DS2401", "ioBoard": "GX894-PWB(B)", "flashLockedToIOBoard": true}
]`

const testCartDescription = `{
	"cart": {
		"chip": "ZS01",
		"info": {
			"yearField": "99-19",
			"tidWidth": 16,
			"headerFlags": {"format": "extended", "specType": "actual"},
			"checksumFlags": {"width": "16", "inverted": true},
			"idFlags": {"privateTID": "bigEndianSIDHash", "privateSID": true}
		},
		"specification": "GE",
		"code": "936",
		"region": "JAA",
		"cartID": "01-12-34-56-78-9a-bc-3d"
	}
}`

const testROMHeaderDescription = `{
	"romHeader": {
		"info": {
			"signatureField": "de-ad-be-ef",
			"yearField": "00-20",
			"headerFlags": {"format": "extended", "specType": "actual", "usesPublicArea": true},
			"checksumFlags": {"width": "16", "inverted": true},
			"signatureFlags": {"type": "static", "padWithFF": true}
		},
		"specification": "GC",
		"code": "845",
		"region": "EBA"
	}
}`

func writeFile(t *testing.T, fsys afero.Fs, name, content string) {
	t.Helper()
	if err := afero.WriteFile(fsys, name, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
}

// runCLI runs the command line and returns its standard output.
func runCLI(t *testing.T, fsys afero.Fs, args ...string) (string, error) {
	t.Helper()

	var stdout bytes.Buffer
	err := run(context.Background(), args, fsys, &stdout, io.Discard)
	return stdout.String(), err
}

func mustRun(t *testing.T, fsys afero.Fs, args ...string) string {
	t.Helper()

	out, err := runCLI(t, fsys, args...)
	if err != nil {
		t.Fatalf("run(%v) error = %v", args, err)
	}
	return out
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		verbose int
		want    slog.Level
	}{
		{0, slog.LevelWarn},
		{1, slog.LevelInfo},
		{2, slog.LevelDebug},
		{5, slog.LevelDebug},
	}

	for _, tt := range tests {
		logger := newLogger(io.Discard, tt.verbose)
		if !logger.Enabled(context.Background(), tt.want) {
			t.Errorf("newLogger(%d) does not log at %v", tt.verbose, tt.want)
		}
		if logger.Enabled(context.Background(), tt.want-1) {
			t.Errorf("newLogger(%d) logs below %v", tt.verbose, tt.want)
		}
	}
}

func TestFormatsCmd(t *testing.T) {
	out := mustRun(t, afero.NewMemMapFs(), "formats")

	for _, want := range []string{"Cartridge formats:", "ROM header formats:", "region only", "ZS01"} {
		if !strings.Contains(out, want) {
			t.Errorf("formats output does not contain %q:\n%s", want, out)
		}
	}
}

func TestSynthInfoCartDB(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/work/games.json", testGameList)
	writeFile(t, fsys, "/work/cart.json", testCartDescription)
	writeFile(t, fsys, "/work/carts/readme.txt", "not a dump")

	mustRun(t, fsys, "synth", "/work/cart.json", "/work/carts/ge936.573d")

	dec := json.NewDecoder(strings.NewReader(mustRun(t, fsys, "info", "/work/carts")))
	var reports []infoReport
	for {
		var r infoReport
		if err := dec.Decode(&r); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			t.Fatalf("decoding info output: %v", err)
		}
		reports = append(reports, r)
	}
	if len(reports) != 1 {
		t.Fatalf("info printed %d reports, want 1", len(reports))
	}
	r := reports[0]
	if r.Error != "" || r.Chip != "ZS01" || r.Code != "GE936" || r.Region != "JAA" || r.Cart == nil {
		t.Errorf("info = %+v", r)
	}

	mustRun(t, fsys, "cartdb", "/work/games.json", "/work/carts", "-o", "/work/out")

	data, err := afero.ReadFile(fsys, "/work/out/zs01.cartdb")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	entries, err := cartdb.ReadCartDB(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadCartDB() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Code != "GE936" || entries[0].Region != "JAA" {
		t.Errorf("zs01.cartdb = %+v", entries)
	}
}

func TestSynthQR(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/work/cart.json", testCartDescription)

	mustRun(t, fsys, "synth", "--qr", "/work/cart.json", "/work/cart.txt")

	data, err := afero.ReadFile(fsys, "/work/cart.txt")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "573::") {
		t.Errorf("QR output = %q", data)
	}
}

func TestFlashDB(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/work/games.json", testGameList)
	writeFile(t, fsys, "/work/rom.json", testROMHeaderDescription)

	mustRun(t, fsys, "synth", "/work/rom.json", "/work/flash/gc845.573e")
	mustRun(t, fsys, "-v", "flashdb", "/work/games.json", "/work/flash", "-o", "/work/out", "-e", "/work/out/flash.csv")

	data, err := afero.ReadFile(fsys, "/work/out/flash.db")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	entries, err := cartdb.ReadROMHeaderDB(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadROMHeaderDB() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Code != "GC845" {
		t.Errorf("flash.db = %+v", entries)
	}
	if entries[0].Info.SignatureFlags.Type != formats.SignatureStatic {
		t.Errorf("signature = %v, want %v", entries[0].Info.SignatureFlags.Type, formats.SignatureStatic)
	}

	csv, err := afero.ReadFile(fsys, "/work/out/flash.csv")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(csv), "# nameHints,") || !strings.Contains(string(csv), "GC845") {
		t.Errorf("flash.csv = %s", csv)
	}
}

func TestAnalyzeCmd(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/nvram/ddrex/m48t58", strings.Repeat("\x00", 0x2000))
	writeFile(t, fsys, "/work/gameinfo.json", `{
		"$schema": "./schema.json",
		"games": [
			{"code": "GC845", "regions": ["EBA"], "identifiers": ["ddrex"], "name": "Dance Dance Revolution"},
			{"code": "GN845", "regions": ["UAA"], "identifiers": ["ddru"], "name": "Dance Dance Revolution"}
		]
	}`)

	mustRun(t, fsys, "analyze", "-m", "/nvram", "/work/gameinfo.json", "/work/out.json")

	out, err := fsys.Open("/work/out.json")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = out.Close() }()

	file, err := analysis.Load(out)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if file.Schema != "./schema.json" {
		t.Errorf("Schema = %q", file.Schema)
	}
	if len(file.Games) != 1 || file.Games[0].Code != "GC845" {
		t.Fatalf("games = %+v, want only GC845", file.Games)
	}
	if file.Games[0].RTCHeader == nil {
		t.Error("RTCHeader was not analyzed")
	}
}

func TestRunErrors(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "/work/both.json", `{"cart": {"chip": "ZS01"}, "romHeader": {}}`)

	tests := []struct {
		name    string
		args    []string
		wantErr error
	}{
		{"unknown command", []string{"frobnicate"}, nil},
		{"missing game list", []string{"cartdb", "/missing.json", "/work"}, nil},
		{"ambiguous description", []string{"synth", "/work/both.json", "/work/out"}, ErrInvalidDescription},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, fsys, tt.args...)
			if err == nil {
				t.Fatal("run() succeeded")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("run() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
