package parser

import (
	"crypto/sha1" //nolint:gosec // content addressing only
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/richardwooding/cartsleuth/internal/cartridge"
	"github.com/richardwooding/cartsleuth/internal/formats"
)

// DefaultCacheSize is the number of results a DetectCache keeps by default.
const DefaultCacheSize = 1024

type cacheKey struct {
	digest [sha1.Size]byte
	extra  uint8
}

type cachedResult struct {
	cart *CartResult
	rom  *ROMHeaderResult
	err  error
}

// DetectCache memoizes parser results by dump contents. Dump collections
// tend to hold many copies of the same cartridge, and every copy would
// otherwise go through the full candidate search. Failures are cached too.
//
// Cached results are shared between callers and must not be modified.
type DetectCache struct {
	lru *lru.Cache[cacheKey, cachedResult]
}

// NewDetectCache returns a cache holding up to size results.
func NewDetectCache(size int) (*DetectCache, error) {
	c, err := lru.New[cacheKey, cachedResult](size)
	if err != nil {
		return nil, fmt.Errorf("creating detect cache: %w", err)
	}
	return &DetectCache{lru: c}, nil
}

// ParseCartHeader is a cached ParseCartHeader.
func (c *DetectCache) ParseCartHeader(dump *cartridge.CartDump, pcb formats.CartPCBType) (*CartResult, error) {
	data, err := dump.MarshalBinary()
	if err != nil {
		return ParseCartHeader(dump, pcb)
	}

	key := cacheKey{digest: sha1.Sum(data), extra: uint8(pcb)} //nolint:gosec
	if cached, ok := c.lru.Get(key); ok {
		return cached.cart, cached.err
	}

	result, err := ParseCartHeader(dump, pcb)
	c.lru.Add(key, cachedResult{cart: result, err: err})
	return result, err
}

// ParseROMHeader is a cached ParseROMHeader.
func (c *DetectCache) ParseROMHeader(dump *cartridge.ROMHeaderDump, opts ...ROMHeaderOption) (*ROMHeaderResult, error) {
	var cfg romHeaderConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	// The data is fixed size, so marshaling cannot fail.
	data, _ := dump.MarshalBinary()
	key := cacheKey{digest: sha1.Sum(data), extra: cfg.bits()} //nolint:gosec
	if cached, ok := c.lru.Get(key); ok {
		return cached.rom, cached.err
	}

	result, err := ParseROMHeader(dump, opts...)
	c.lru.Add(key, cachedResult{rom: result, err: err})
	return result, err
}

// Len returns the number of cached results.
func (c *DetectCache) Len() int {
	return c.lru.Len()
}

func (c romHeaderConfig) bits() uint8 {
	var bits uint8
	if c.ignoreSignature {
		bits |= 1 << 0
	}
	if c.systemIDLocked {
		bits |= 1 << 1
	}
	return bits
}
