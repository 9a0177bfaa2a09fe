package parser

import (
	"github.com/richardwooding/cartsleuth/internal/formats"
)

// KnownCartFormat is a combination of flags observed on real cartridges.
type KnownCartFormat struct {
	Name     string
	Header   formats.HeaderFlags
	Checksum formats.ChecksumFlags
	IDs      formats.IdentifierFlags
}

// KnownROMHeaderFormat is a combination of flags observed in real flash and
// RTC RAM headers.
type KnownROMHeaderFormat struct {
	Name      string
	Header    formats.HeaderFlags
	Checksum  formats.ChecksumFlags
	Signature formats.SignatureFlags
}

var (
	basicChecksum    = formats.ChecksumFlags{Width: formats.ChecksumWidth8, Inverted: true}
	extendedChecksum = formats.ChecksumFlags{Width: formats.ChecksumWidth16, Inverted: true}
)

// KnownCartFormats lists the cartridge formats used by released games,
// oldest first.
var KnownCartFormats = []KnownCartFormat{
	{
		// GCB48
		Name:   "region only",
		Header: formats.HeaderFlags{Format: formats.FormatRegionOnly, InPublicArea: true},
	},
	{
		Name:     "basic (no IDs)",
		Header:   formats.HeaderFlags{Format: formats.FormatBasic},
		Checksum: basicChecksum,
	},
	{
		Name:     "basic + TID",
		Header:   formats.HeaderFlags{Format: formats.FormatBasic},
		Checksum: basicChecksum,
		IDs:      formats.IdentifierFlags{PrivateTID: formats.TraceIDStatic},
	},
	{
		Name:     "basic + SID",
		Header:   formats.HeaderFlags{Format: formats.FormatBasic},
		Checksum: basicChecksum,
		IDs:      formats.IdentifierFlags{PrivateSID: true},
	},
	{
		Name:     "basic + TID, SID",
		Header:   formats.HeaderFlags{Format: formats.FormatBasic},
		Checksum: basicChecksum,
		IDs:      formats.IdentifierFlags{PrivateTID: formats.TraceIDSIDHashBig, PrivateSID: true},
	},
	{
		Name:     "basic + prefix, TID, SID",
		Header:   formats.HeaderFlags{Format: formats.FormatBasic, SpecType: formats.SpecTypeActual},
		Checksum: basicChecksum,
		IDs:      formats.IdentifierFlags{PrivateTID: formats.TraceIDSIDHashBig, PrivateSID: true},
	},
	{
		// Most pre-ZS01 Bemani games
		Name:     "basic + prefix, all IDs",
		Header:   formats.HeaderFlags{Format: formats.FormatBasic, SpecType: formats.SpecTypeActual},
		Checksum: basicChecksum,
		IDs: formats.IdentifierFlags{
			PrivateTID: formats.TraceIDSIDHashBig,
			PrivateSID: true,
			PrivateMID: true,
			PrivateXID: true,
		},
	},
	{
		// DDR JAB
		Name:   "early extended (no IDs)",
		Header: formats.HeaderFlags{Format: formats.FormatEarlyExtended, SpecType: formats.SpecTypeActual},
	},
	{
		Name:     "extended (no IDs)",
		Header:   formats.HeaderFlags{Format: formats.FormatExtended, SpecType: formats.SpecTypeActual},
		Checksum: extendedChecksum,
	},
	{
		Name:     "extended (no IDs, alt)",
		Header:   formats.HeaderFlags{Format: formats.FormatExtended, SpecType: formats.SpecTypeActual},
		Checksum: formats.ChecksumFlags{Width: formats.ChecksumWidth16},
	},
	{
		// GX706
		Name:     "extended (no IDs, GX706)",
		Header:   formats.HeaderFlags{Format: formats.FormatExtended, SpecType: formats.SpecTypeActual},
		Checksum: formats.ChecksumFlags{Width: formats.ChecksumWidth16, ForceGXSpec: true},
	},
	{
		// GE936/GK936 and all ZS01 Bemani games
		Name: "extended + all IDs",
		Header: formats.HeaderFlags{
			Format:       formats.FormatExtended,
			SpecType:     formats.SpecTypeActual,
			InPublicArea: true,
		},
		Checksum: extendedChecksum,
		IDs: formats.IdentifierFlags{
			PrivateTID: formats.TraceIDSIDHashBig,
			PrivateSID: true,
			PrivateMID: true,
			PrivateXID: true,
			PublicMID:  true,
			PublicXID:  true,
		},
	},
}

// KnownROMHeaderFormats lists the flash and RTC RAM header formats used by
// released games, oldest first.
var KnownROMHeaderFormats = []KnownROMHeaderFormat{
	{
		Name:     "extended (no MD5)",
		Header:   formats.HeaderFlags{Format: formats.FormatExtended, SpecType: formats.SpecTypeActual, InPublicArea: true},
		Checksum: extendedChecksum,
	},
	{
		Name:     "extended (no MD5, alt)",
		Header:   formats.HeaderFlags{Format: formats.FormatExtended, SpecType: formats.SpecTypeActual, InPublicArea: true},
		Checksum: formats.ChecksumFlags{Width: formats.ChecksumWidth16},
	},
	{
		// GX706
		Name:     "extended (no MD5, GX706)",
		Header:   formats.HeaderFlags{Format: formats.FormatExtended, SpecType: formats.SpecTypeActual, InPublicArea: true},
		Checksum: formats.ChecksumFlags{Width: formats.ChecksumWidth16, ForceGXSpec: true},
	},
	{
		Name:      "extended + MD5",
		Header:    formats.HeaderFlags{Format: formats.FormatExtended, SpecType: formats.SpecTypeActual, InPublicArea: true},
		Checksum:  extendedChecksum,
		Signature: formats.SignatureFlags{Type: formats.SignatureMD5},
	},
}

// DescribeCart returns the name of the known format matching info, ignoring
// flags that only record how the data was stored (scrambling, region case,
// relocated public area), or an empty string.
func DescribeCart(info formats.CartInfo) string {
	header := normalizeHeader(info.HeaderFlags)
	ids := info.IDFlags
	ids.DummyPublicArea = false

	for _, f := range KnownCartFormats {
		if f.Header == header && f.Checksum == info.ChecksumFlags && sameIDs(f.IDs, ids) {
			return f.Name
		}
	}
	return ""
}

// DescribeROMHeader returns the name of the known format matching info, or an
// empty string.
func DescribeROMHeader(info formats.ROMHeaderInfo) string {
	header := normalizeHeader(info.HeaderFlags)
	sig := info.SignatureFlags
	sig.PadWithFF = false

	for _, f := range KnownROMHeaderFormats {
		if f.Header == header && f.Checksum == info.ChecksumFlags && f.Signature == sig {
			return f.Name
		}
	}
	return ""
}

func normalizeHeader(h formats.HeaderFlags) formats.HeaderFlags {
	h.Scrambled = false
	h.LowercaseRegion = false
	return h
}

// sameIDs compares identifier flags, treating both trace ID hash byte orders
// as the same format.
func sameIDs(a, b formats.IdentifierFlags) bool {
	if a.PrivateTID == formats.TraceIDSIDHashLittle {
		a.PrivateTID = formats.TraceIDSIDHashBig
	}
	if b.PrivateTID == formats.TraceIDSIDHashLittle {
		b.PrivateTID = formats.TraceIDSIDHashBig
	}
	return a == b
}
