// Package scanner finds dumps in directory trees and archives and hands them
// to a pool of workers.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxFileSize bounds the size of any file or archive member read.
// Full flash images are 16 MiB.
const DefaultMaxFileSize = 64 << 20

// ErrFileTooLarge is returned when a file or archive member exceeds the size
// limit.
var ErrFileTooLarge = errors.New("file exceeds maximum size limit")

// Item is a file found by Walk. Archive members and interleaved flash pairs
// are items of their own.
type Item struct {
	// Path is the file's path; archive members are appended to their
	// archive's path with a slash
	Path string
	Data []byte

	// Interleaved is set for items assembled from an even/odd flash pair
	Interleaved bool
}

// Name returns the last element of the item's path.
func (it *Item) Name() string {
	return filepath.Base(it.Path)
}

// Hints returns the elements of the item's path, innermost first, with file
// extensions removed. They are used to guess a game code for dumps that do
// not store one.
func (it *Item) Hints() []string {
	parts := strings.FieldsFunc(filepath.ToSlash(it.Path), func(r rune) bool { return r == '/' })

	hints := make([]string, 0, len(parts))
	for i := len(parts) - 1; i >= 0; i-- {
		hints = append(hints, strings.TrimSuffix(parts[i], filepath.Ext(parts[i])))
	}
	return hints
}

// Scanner walks a filesystem. It is safe to call Walk concurrently.
type Scanner struct {
	fs          afero.Fs
	workers     int
	maxFileSize int64
	logger      *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithWorkers sets the number of items processed concurrently.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMaxFileSize sets the largest file or archive member that is read.
func WithMaxFileSize(size int64) Option {
	return func(s *Scanner) {
		if size > 0 {
			s.maxFileSize = size
		}
	}
}

// WithLogger sets the logger skipped files are reported to.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// New returns a scanner over fsys.
func New(fsys afero.Fs, opts ...Option) *Scanner {
	s := &Scanner{
		fs:          fsys,
		workers:     runtime.GOMAXPROCS(0),
		maxFileSize: DefaultMaxFileSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandlerFunc processes an item. Returning an error stops the walk.
type HandlerFunc func(ctx context.Context, item *Item) error

// Walk visits every file under roots (which may also be plain files). Files
// are read and archives expanded on worker goroutines, which then call fn.
//
// Files that cannot be read or expanded are logged and skipped. The first
// error from walking the tree or from fn cancels the remaining work and is
// returned.
func (s *Scanner) Walk(ctx context.Context, roots []string, fn HandlerFunc) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, root := range roots {
		err := afero.Walk(s.fs, root, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}

			job, ok := s.newJob(path, info)
			if !ok {
				return nil
			}
			g.Go(func() error {
				return s.run(ctx, job, fn)
			})
			return nil
		})
		if err != nil {
			// A handler error cancels the walk; report it rather than the
			// cancellation.
			if herr := g.Wait(); herr != nil {
				return herr
			}
			return fmt.Errorf("walking %s: %w", root, err)
		}
	}

	return g.Wait()
}

type job struct {
	path string

	// pair is the odd half of an interleaved flash pair whose even half is
	// path
	pair string
}

// newJob decides how a file is read. The odd half of a flash pair is read
// along with the even half, so it yields no job of its own.
func (s *Scanner) newJob(path string, info fs.FileInfo) (job, bool) {
	if info.Size() > s.maxFileSize {
		s.logger.Warn("skipping file", "path", path, "size", info.Size(), "error", ErrFileTooLarge)
		return job{}, false
	}

	if odd, ok := pairedPath(path, evenSuffix, oddSuffix); ok {
		if exists, _ := afero.Exists(s.fs, odd); exists {
			return job{path: path, pair: odd}, true
		}
	}
	if even, ok := pairedPath(path, oddSuffix, evenSuffix); ok {
		if exists, _ := afero.Exists(s.fs, even); exists {
			return job{}, false
		}
	}
	return job{path: path}, true
}

func (s *Scanner) run(ctx context.Context, j job, fn HandlerFunc) error {
	if j.pair != "" {
		data, err := s.readInterleaved(j.path, j.pair)
		if err != nil {
			s.logger.Warn("skipping flash pair", "path", j.path, "error", err)
			return nil
		}
		return fn(ctx, &Item{Path: j.path, Data: data, Interleaved: true})
	}

	data, err := s.readFile(j.path)
	if err != nil {
		s.logger.Warn("skipping file", "path", j.path, "error", err)
		return nil
	}

	items, err := s.expand(j.path, data, 0)
	if err != nil {
		s.logger.Warn("skipping archive", "path", j.path, "error", err)
		return nil
	}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scanner) readFile(path string) ([]byte, error) {
	file, err := s.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	return s.limitedRead(file)
}

// limitedRead reads r up to the size limit, returning an error if exceeded.
func (s *Scanner) limitedRead(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxFileSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}
