// Package der provides the minimal ASN.1 DER primitives needed to build a
// self-signed X.509 certificate. Encoders are pure functions over byte
// slices; the only failure mode is a content length beyond the supported
// two-byte length form.
package der

import (
	"errors"
	"fmt"
	"time"
)

const (
	TagInteger     byte = 0x02
	TagBitString   byte = 0x03
	TagOctetString byte = 0x04
	TagOID         byte = 0x06
	TagUTF8String  byte = 0x0C
	TagUTCTime     byte = 0x17
	TagSequence    byte = 0x30
	TagSet         byte = 0x31
)

// maxLength caps the supported DER length at the two-byte form. Certificates
// produced here stay well under it.
const maxLength = 65535

var ErrTooLong = errors.New("der: content exceeds two-byte length form")

func encodeLength(n int) ([]byte, error) {
	switch {
	case n < 0:
		return nil, fmt.Errorf("der: negative length %d", n)
	case n < 128:
		return []byte{byte(n)}, nil
	case n < 256:
		return []byte{0x81, byte(n)}, nil
	case n <= maxLength:
		return []byte{0x82, byte(n >> 8), byte(n)}, nil
	default:
		return nil, ErrTooLong
	}
}

// TLV assembles tag, length, value.
func TLV(tag byte, content []byte) ([]byte, error) {
	length, err := encodeLength(len(content))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, 1+len(length)+len(content))
	out = append(out, tag)
	out = append(out, length...)
	out = append(out, content...)
	return out, nil
}

func Sequence(parts ...[]byte) ([]byte, error) {
	return TLV(TagSequence, concat(parts))
}

func Set(parts ...[]byte) ([]byte, error) {
	return TLV(TagSet, concat(parts))
}

// Integer encodes a positive INTEGER, prepending 0x00 when the first content
// byte has its high bit set so the value cannot be read as negative.
func Integer(content []byte) ([]byte, error) {
	if len(content) == 0 {
		content = []byte{0}
	}
	if content[0]&0x80 != 0 {
		padded := make([]byte, 0, len(content)+1)
		padded = append(padded, 0x00)
		padded = append(padded, content...)
		content = padded
	}
	return TLV(TagInteger, content)
}

// BitString wraps content with a single zero unused-bits byte. All bit
// strings in this system (keys, signatures, key-usage flags) are produced
// whole-byte; partial-byte bit strings are composed by the caller passing
// the unused-bits byte inside content via RawBitString.
func BitString(content []byte) ([]byte, error) {
	wrapped := make([]byte, 0, len(content)+1)
	wrapped = append(wrapped, 0x00)
	wrapped = append(wrapped, content...)
	return TLV(TagBitString, wrapped)
}

// RawBitString encodes a BIT STRING whose first content byte is the caller's
// unused-bits count (KeyUsage needs 7 unused bits).
func RawBitString(content []byte) ([]byte, error) {
	return TLV(TagBitString, content)
}

func OctetString(content []byte) ([]byte, error) {
	return TLV(TagOctetString, content)
}

func UTF8String(s string) ([]byte, error) {
	return TLV(TagUTF8String, []byte(s))
}

// UTCTime formats t in UTC as yyMMddHHmmssZ.
func UTCTime(t time.Time) ([]byte, error) {
	return TLV(TagUTCTime, []byte(t.UTC().Format("060102150405Z")))
}

func Boolean(v bool) ([]byte, error) {
	b := byte(0x00)
	if v {
		b = 0xFF
	}
	return TLV(0x01, []byte{b})
}

// ObjectIdentifier encodes an OID from its integer arcs using base-128
// continuation bytes, with the usual 40*arc1+arc2 first octet.
func ObjectIdentifier(arcs ...int) ([]byte, error) {
	if len(arcs) < 2 {
		return nil, errors.New("der: oid needs at least two arcs")
	}
	content := []byte{byte(arcs[0]*40 + arcs[1])}
	for _, arc := range arcs[2:] {
		content = append(content, base128(arc)...)
	}
	return TLV(TagOID, content)
}

func base128(v int) []byte {
	if v < 0x80 {
		return []byte{byte(v)}
	}
	var rev []byte
	for v > 0 {
		rev = append(rev, byte(v&0x7F))
		v >>= 7
	}
	out := make([]byte, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		b := rev[i]
		if i != 0 {
			b |= 0x80
		}
		out = append(out, b)
	}
	return out
}

// Explicit wraps content under the constructed context-specific tag
// 0xA0|n.
func Explicit(n int, content []byte) ([]byte, error) {
	if n < 0 || n > 0x1E {
		return nil, fmt.Errorf("der: context tag %d out of range", n)
	}
	return TLV(0xA0|byte(n), content)
}

// ImplicitPrimitive retags content under the primitive context-specific tag
// 0x80|n (AuthorityKeyIdentifier's keyIdentifier field).
func ImplicitPrimitive(n int, content []byte) ([]byte, error) {
	if n < 0 || n > 0x1E {
		return nil, fmt.Errorf("der: context tag %d out of range", n)
	}
	return TLV(0x80|byte(n), content)
}

func concat(parts [][]byte) []byte {
	size := 0
	for _, p := range parts {
		size += len(p)
	}
	out := make([]byte, 0, size)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
