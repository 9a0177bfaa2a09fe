// Package games implements the game list: the catalogue of released titles
// that dumps are matched against.
package games

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"
)

var (
	codeRegex   = regexp.MustCompile(`(?i)^G[A-Z*][0-9A-D][0-9]{2}$`)
	regionRegex = regexp.MustCompile(`(?i)^[AEJKSU][A-FR-WX-Z]([A-D]|Z[0-9]{2})?$`)

	// codeSearchRegex finds a game code anywhere in a file name.
	codeSearchRegex = regexp.MustCompile(`G[A-Z*][0-9A-D][0-9]{2}`)
)

var (
	ErrInvalidCode   = errors.New("invalid game code")
	ErrInvalidRegion = errors.New("invalid game region")

	// ErrNotFound indicates a MAME ID that is not in the list.
	ErrNotFound = errors.New("game not found")
)

// Cartridge types that carry a DS2401 cartridge ID.
var cartsWithID = []string{
	"X76F041+DS2401",
	"ZS01+DS2401",
}

// I/O boards that carry a DS2401 system ID.
var ioBoardsWithID = []string{
	"GX700-PWB(K)",  // Kick & Kick expansion board
	"GX894-PWB(B)",  // Digital I/O board
	"GX921-PWB(B)",  // DDR Karaoke Mix expansion board
	"PWB0000073070", // GunMania expansion board
}

// IsValidCode reports whether code is a game code such as GN845 or G*845.
func IsValidCode(code string) bool {
	return codeRegex.MatchString(code)
}

// IsValidRegion reports whether region is a region code such as JAA, UA or
// JAZ01.
func IsValidRegion(region string) bool {
	return regionRegex.MatchString(region)
}

// FindCode returns the first game code found in hint (usually a file or
// directory name).
func FindCode(hint string) (string, bool) {
	code := codeSearchRegex.FindString(strings.ToUpper(hint))
	return code, code != ""
}

// Entry is a game in the list.
type Entry struct {
	Code   string `json:"code"`
	Region string `json:"region"`
	Name   string `json:"name"`

	MAMEID      string `json:"id,omitempty"`
	InstallCart string `json:"installCart,omitempty"`
	GameCart    string `json:"gameCart,omitempty"`
	IOBoard     string `json:"ioBoard,omitempty"`

	CartLockedToIOBoard  bool `json:"cartLockedToIOBoard,omitempty"`
	FlashLockedToIOBoard bool `json:"flashLockedToIOBoard,omitempty"`
}

func (e *Entry) String() string {
	return e.Code + " " + e.Region
}

// FullName returns the game's name followed by its code and region.
func (e *Entry) FullName() string {
	return fmt.Sprintf("%s [%s %s]", e.Name, e.Code, e.Region)
}

// HasCartID reports whether the game's cartridge carries a DS2401.
func (e *Entry) HasCartID() bool {
	return slices.Contains(cartsWithID, e.GameCart)
}

// HasSystemID reports whether the game's I/O board carries a DS2401.
func (e *Entry) HasSystemID() bool {
	return slices.Contains(ioBoardsWithID, e.IOBoard)
}

// Compare orders entries by the numeric part of their code, then by code
// prefix, region and name. The numeric part is shared by all regional
// releases of a title, while the prefix is not.
func (e *Entry) Compare(other *Entry) int {
	return CompareKeys(e.Code, e.Region, e.Name, other.Code, other.Region, other.Name)
}

// CompareKeys compares two (code, region, name) tuples the way Compare does.
func CompareKeys(codeA, regionA, nameA, codeB, regionB, nameB string) int {
	numberA, prefixA := splitCode(codeA)
	numberB, prefixB := splitCode(codeB)

	return cmp.Or(
		strings.Compare(numberA, numberB),
		strings.Compare(prefixA, prefixB),
		strings.Compare(regionA, regionB),
		strings.Compare(nameA, nameB),
	)
}

func splitCode(code string) (number, prefix string) {
	if len(code) < 2 {
		return "", code
	}
	return code[2:], code[0:2]
}

// List is a game list indexed by game code and MAME ID. The zero value is
// not usable; use NewList or Load.
type List struct {
	entries []*Entry
	byID    map[string]*Entry
	byCode  map[string][]*Entry
}

// NewList returns an empty list.
func NewList() *List {
	return &List{
		byID:   make(map[string]*Entry),
		byCode: make(map[string][]*Entry),
	}
}

// Load reads a JSON array of entries.
func Load(r io.Reader) (*List, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding game list: %w", err)
	}

	list := NewList()
	for i := range entries {
		if err := list.Add(entries[i]); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return list, nil
}

// Add validates and indexes an entry. The code and region are normalized to
// upper case.
func (l *List) Add(e Entry) error {
	e.Code = strings.ToUpper(strings.TrimSpace(e.Code))
	e.Region = strings.ToUpper(strings.TrimSpace(e.Region))

	if !IsValidCode(e.Code) {
		return fmt.Errorf("%w: %q", ErrInvalidCode, e.Code)
	}
	if !IsValidRegion(e.Region) {
		return fmt.Errorf("%w: %q", ErrInvalidRegion, e.Region)
	}

	entry := &e
	l.entries = append(l.entries, entry)
	if e.MAMEID != "" {
		l.byID[strings.ToLower(e.MAMEID)] = entry
	}

	// All revisions of a game share the first two characters of the region.
	// Headers may also use a wildcard in place of the code's second letter.
	l.byCode[e.Code+e.Region[0:2]] = append(l.byCode[e.Code+e.Region[0:2]], entry)
	wildcard := e.Code[0:1] + "*" + e.Code[2:] + e.Region[0:2]
	if wildcard != e.Code+e.Region[0:2] {
		l.byCode[wildcard] = append(l.byCode[wildcard], entry)
	}
	return nil
}

// Len returns the number of entries.
func (l *List) Len() int {
	return len(l.entries)
}

// Entries returns every entry in the order it was added.
func (l *List) Entries() []*Entry {
	return slices.Clone(l.entries)
}

// LookupByCode returns the entries matching a code and region, sorted. A
// region shorter than the entries' (such as "JA") matches every revision.
func (l *List) LookupByCode(code, region string) []*Entry {
	code = strings.ToUpper(strings.TrimSpace(code))
	region = strings.ToUpper(strings.TrimSpace(region))
	if len(region) < 2 {
		return nil
	}

	var matches []*Entry
	for _, e := range l.byCode[code+region[0:2]] {
		if strings.HasPrefix(e.Region, region) {
			matches = append(matches, e)
		}
	}
	slices.SortFunc(matches, (*Entry).Compare)
	return matches
}

// LookupByID returns the entry with the given MAME ID.
func (l *List) LookupByID(id string) (*Entry, error) {
	e, ok := l.byID[strings.ToLower(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e, nil
}
