package scanner

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/gabriel-vasile/mimetype"
	"github.com/nwaples/rardecode/v2"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// maxArchiveDepth bounds the nesting of archives within archives.
const maxArchiveDepth = 4

// ErrArchiveDepth is returned for archives nested too deeply.
var ErrArchiveDepth = errors.New("archives nested too deeply")

// archiveKind identifies the container formats Walk expands.
type archiveKind int

const (
	notArchive archiveKind = iota
	archiveZIP
	archive7z
	archiveRAR
	streamGzip
	streamXZ
	streamLZ4
)

var archiveKinds = map[string]archiveKind{
	".zip": archiveZIP,
	".7z":  archive7z,
	".rar": archiveRAR,
	".gz":  streamGzip,
	".xz":  streamXZ,
	".lz4": streamLZ4,
}

// lz4FrameMagic starts every LZ4 frame; mimetype does not know the format.
var lz4FrameMagic = []byte{0x04, 0x22, 0x4d, 0x18}

// detectArchive sniffs data. Formats built on zip (such as .jar) report
// their own extension, so parents are checked as well.
func detectArchive(data []byte) archiveKind {
	for mime := mimetype.Detect(data); mime != nil; mime = mime.Parent() {
		if kind, ok := archiveKinds[mime.Extension()]; ok {
			return kind
		}
	}
	if bytes.HasPrefix(data, lz4FrameMagic) {
		return streamLZ4
	}
	return notArchive
}

// expand returns the items contained in data: its members if it is an
// archive, or data itself otherwise.
func (s *Scanner) expand(name string, data []byte, depth int) ([]*Item, error) {
	kind := detectArchive(data)
	if kind == notArchive {
		return []*Item{{Path: name, Data: data}}, nil
	}
	if depth >= maxArchiveDepth {
		return nil, fmt.Errorf("%w: %s", ErrArchiveDepth, name)
	}

	var (
		members []*Item
		err     error
	)
	switch kind {
	case archiveZIP:
		members, err = s.zipMembers(name, data)
	case archive7z:
		members, err = s.sevenZipMembers(name, data)
	case archiveRAR:
		members, err = s.rarMembers(name, data)
	default:
		members, err = s.streamMember(kind, name, data)
	}
	if err != nil {
		return nil, err
	}

	var items []*Item
	for _, member := range members {
		expanded, err := s.expand(member.Path, member.Data, depth+1)
		if err != nil {
			return nil, err
		}
		items = append(items, expanded...)
	}
	return items, nil
}

func (s *Scanner) zipMembers(name string, data []byte) ([]*Item, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}

	var items []*Item
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		member, err := s.readMember(f.Open)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		items = append(items, &Item{Path: path.Join(name, f.Name), Data: member})
	}
	return items, nil
}

func (s *Scanner) sevenZipMembers(name string, data []byte) ([]*Item, error) {
	zr, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening 7z: %w", err)
	}

	var items []*Item
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		member, err := s.readMember(f.Open)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		items = append(items, &Item{Path: path.Join(name, f.Name), Data: member})
	}
	return items, nil
}

func (s *Scanner) rarMembers(name string, data []byte) ([]*Item, error) {
	rr, err := rardecode.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening rar: %w", err)
	}

	var items []*Item
	for {
		header, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading rar: %w", err)
		}
		if header.IsDir {
			continue
		}

		member, err := s.limitedRead(rr)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", header.Name, err)
		}
		items = append(items, &Item{Path: path.Join(name, header.Name), Data: member})
	}
}

// streamMember decompresses a single-file stream. The member is named after
// the stream with its extension removed, unless gzip recorded a name.
func (s *Scanner) streamMember(kind archiveKind, name string, data []byte) ([]*Item, error) {
	memberName := strings.TrimSuffix(name, path.Ext(name))

	var r io.Reader
	switch kind {
	case streamGzip:
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("opening gzip: %w", err)
		}
		defer func() { _ = zr.Close() }()
		if zr.Name != "" {
			memberName = path.Join(path.Dir(name), path.Base(zr.Name))
		}
		r = zr
	case streamXZ:
		xr, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("opening xz: %w", err)
		}
		r = xr
	case streamLZ4:
		r = lz4.NewReader(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("unknown stream kind %d", kind)
	}

	member, err := s.limitedRead(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing %s: %w", name, err)
	}
	return []*Item{{Path: memberName, Data: member}}, nil
}

func (s *Scanner) readMember(open func() (io.ReadCloser, error)) ([]byte, error) {
	rc, err := open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	return s.limitedRead(rc)
}
