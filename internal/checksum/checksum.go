// Package checksum implements the sums, CRCs and hashes used by security
// cartridge and ROM header data.
package checksum

import "crypto/md5" //nolint:gosec // MD5 is what the signature format uses

// Checksum algorithm constants.
const (
	// DSCRC8Polynomial is the reflected Dallas/Maxim 1-Wire CRC-8 polynomial
	DSCRC8Polynomial = 0x8c

	md5SaltLength = 8
)

// MD5Salt is the fixed salt appended to signature input before hashing.
var MD5Salt = [md5SaltLength]byte{0xc1, 0xa2, 0x03, 0xd6, 0xab, 0x70, 0x85, 0x5e}

// Sum8 returns the 8-bit sum of all bytes, optionally inverted.
func Sum8(data []byte, invert bool) uint8 {
	var sum uint8
	for _, b := range data {
		sum += b
	}
	if invert {
		return ^sum
	}
	return sum
}

// Sum8To16 returns the sum of all bytes truncated to 16 bits, optionally
// inverted.
func Sum8To16(data []byte, invert bool) uint16 {
	var sum uint16
	for _, b := range data {
		sum += uint16(b)
	}
	if invert {
		return ^sum
	}
	return sum
}

// Sum16 returns the 16-bit sum of all 16-bit words in data. A trailing odd
// byte is ignored.
func Sum16(data []byte, bigEndian, invert bool) uint16 {
	var sum uint16
	for i := 0; i+1 < len(data); i += 2 {
		if bigEndian {
			sum += uint16(data[i])<<8 | uint16(data[i+1])
		} else {
			sum += uint16(data[i]) | uint16(data[i+1])<<8
		}
	}
	if invert {
		return ^sum
	}
	return sum
}

// Swap16 swaps the two bytes of a 16-bit value.
func Swap16(v uint16) uint16 {
	return v<<8 | v>>8
}

// DSCRC8 computes the CRC-8 used by DS2401 serial numbers and other 1-Wire
// devices (polynomial 0x8C, LSB first, initial value 0).
func DSCRC8(data []byte) uint8 {
	var crc uint8
	for _, b := range data {
		for range 8 {
			mix := (crc ^ b) & 1
			crc >>= 1
			b >>= 1
			if mix != 0 {
				crc ^= DSCRC8Polynomial
			}
		}
	}
	return crc
}

// SIDCRC16 computes the hash used to derive trace IDs from a cartridge ID.
// Bit j of the input stream toggles bit (j mod width) of the result.
func SIDCRC16(data []byte, width int) uint16 {
	if width <= 0 {
		return 0
	}

	var crc uint32
	for i, b := range data {
		for j := i * 8; j < (i+1)*8; j++ {
			if b&1 != 0 {
				crc ^= 1 << (j % width)
			}
			b >>= 1
		}
	}
	return uint16(crc)
}

// ShortenedMD5 folds an MD5 digest of data into 8 bytes by XORing its two
// halves together.
func ShortenedMD5(data []byte) [8]byte {
	digest := md5.Sum(data) //nolint:gosec // not used for security

	var out [8]byte
	for i := range out {
		out[i] = digest[i] ^ digest[i+8]
	}
	return out
}

// SignatureMD5 returns the installation signature expected for a flash or RTC
// header bound to the given system ID.
func SignatureMD5(systemID, header []byte) [8]byte {
	buf := make([]byte, 0, len(systemID)+len(header)+md5SaltLength)
	buf = append(buf, systemID...)
	buf = append(buf, header...)
	buf = append(buf, MD5Salt[:]...)
	return ShortenedMD5(buf)
}
