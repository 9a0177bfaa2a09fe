// Package synth generates cartridge and ROM header dumps from a description
// of their format. It is the inverse of the parser and is used to produce
// test fixtures and blank images for new cartridges.
package synth

import (
	"github.com/richardwooding/cartsleuth/internal/checksum"
	"github.com/richardwooding/cartsleuth/internal/formats"
)

// Trace ID prefixes.
const (
	traceIDStaticPrefix  = 0x81
	traceIDSIDHashPrefix = 0x82
)

// CustomID returns an install ID with the given prefix, protected by an
// inverted 8-bit sum.
func CustomID(prefix byte) formats.Identifier {
	var id formats.Identifier
	id[0] = prefix
	id[7] = checksum.Sum8(id[0:7], true)
	return id
}

// DS2401ID returns a 1-Wire serial number with the given family code.
func DS2401ID(family byte, serial [6]byte) formats.Identifier {
	var id formats.Identifier
	id[0] = family
	copy(id[1:7], serial[:])
	id[7] = checksum.DSCRC8(id[0:7])
	return id
}

// TraceID returns the trace ID of the given type. Hashed trace IDs are
// derived from bytes 1-6 of cartID using a hash of the given bit width.
func TraceID(t formats.TraceIDType, width int, cartID formats.Identifier) formats.Identifier {
	var id formats.Identifier

	switch t {
	case formats.TraceIDStatic:
		id[0] = traceIDStaticPrefix
		id[2] = 5
		id[5] = 7
		id[6] = 3

	case formats.TraceIDSIDHashLittle, formats.TraceIDSIDHashBig:
		hash := checksum.SIDCRC16(cartID[1:7], width)

		id[0] = traceIDSIDHashPrefix
		if t == formats.TraceIDSIDHashBig {
			id[1], id[2] = byte(hash>>8), byte(hash)
		} else {
			id[1], id[2] = byte(hash), byte(hash>>8)
		}

	default:
		return formats.Identifier{}
	}

	id[7] = checksum.Sum8(id[0:7], true)
	return id
}
