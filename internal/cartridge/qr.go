package cartridge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// QR dump strings wrap a zlib compressed cart dump container, encoded in
// base41, between these markers.
const (
	QRStringPrefix = "573::"
	QRStringSuffix = "::"
)

// base41Charset is similar to base45 with ' ', '$', '%' and '*' removed.
const base41Charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ+-./:"

// ErrInvalidQRString indicates a malformed QR dump string.
var ErrInvalidQRString = errors.New("invalid QR dump string")

// maxQRPayload bounds the decompressed size of a QR string.
const maxQRPayload = 4096

// ParseCartQRString decodes a dump string as produced by the on-screen QR code
// dumper. Surrounding whitespace and letter case are ignored.
func ParseCartQRString(s string) (*CartDump, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	if !strings.HasPrefix(s, QRStringPrefix) {
		return nil, fmt.Errorf("%w: does not begin with %q", ErrInvalidQRString, QRStringPrefix)
	}
	if !strings.HasSuffix(s, QRStringSuffix) || len(s) < len(QRStringPrefix)+len(QRStringSuffix) {
		return nil, fmt.Errorf("%w: does not end with %q", ErrInvalidQRString, QRStringSuffix)
	}

	compressed, err := DecodeBase41(s[len(QRStringPrefix) : len(s)-len(QRStringSuffix)])
	if err != nil {
		return nil, err
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQRString, err)
	}
	defer func() { _ = zr.Close() }()

	data, err := io.ReadAll(io.LimitReader(zr, maxQRPayload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQRString, err)
	}

	return ParseCartDump(data)
}

// QRString encodes the dump the same way the QR code dumper does.
func (d *CartDump) QRString() (string, error) {
	data, err := d.MarshalBinary()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := zw.Write(data); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}

	return QRStringPrefix + EncodeBase41(buf.Bytes()) + QRStringSuffix, nil
}

// DecodeBase41 decodes groups of three base41 characters into two bytes each.
func DecodeBase41(s string) ([]byte, error) {
	if len(s)%3 != 0 {
		return nil, fmt.Errorf("%w: base41 length %d is not a multiple of 3", ErrInvalidQRString, len(s))
	}

	out := make([]byte, 0, len(s)/3*2)
	for i := 0; i < len(s); i += 3 {
		value := 0
		for j, weight := range [3]int{1, 41, 41 * 41} {
			digit := strings.IndexByte(base41Charset, s[i+j])
			if digit < 0 {
				return nil, fmt.Errorf("%w: invalid character %q", ErrInvalidQRString, s[i+j])
			}
			value += digit * weight
		}
		if value > 0xffff {
			return nil, fmt.Errorf("%w: group %q out of range", ErrInvalidQRString, s[i:i+3])
		}
		out = append(out, byte(value>>8), byte(value))
	}

	return out, nil
}

// EncodeBase41 encodes data two bytes at a time, padding an odd trailing byte
// with zero.
func EncodeBase41(data []byte) string {
	var sb strings.Builder
	sb.Grow((len(data) + 1) / 2 * 3)

	for i := 0; i < len(data); i += 2 {
		value := int(data[i]) << 8
		if i+1 < len(data) {
			value |= int(data[i+1])
		}
		sb.WriteByte(base41Charset[value%41])
		sb.WriteByte(base41Charset[(value/41)%41])
		sb.WriteByte(base41Charset[value/(41*41)])
	}

	return sb.String()
}
