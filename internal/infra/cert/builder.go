// Package cert builds the self-signed X.509 v3 certificate that binds the
// hardware public key to an app identity. One shared builder serves every
// platform; platform code only supplies the signing callback.
package cert

import (
	"crypto/rand"
	"crypto/sha1"
	"fmt"
	"time"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/der"
)

// SignFunc produces an ECDSA P-256/SHA-256 signature in ASN.1 DER form over
// the exact bytes given. The private key stays behind the callback.
type SignFunc func(data []byte) ([]byte, error)

const validityDays = 365

// uncompressed P-256 point: 0x04 || X(32) || Y(32)
const publicKeyPointLen = 65

// Build assembles a self-signed certificate for the given 65-byte public key
// point. Issuer equals subject; the Organization attribute is always present
// because downstream manifest verifiers reject certificates without it.
func Build(appName string, publicKeyPoint []byte, sign SignFunc, now time.Time) ([]byte, error) {
	if len(publicKeyPoint) != publicKeyPointLen || publicKeyPoint[0] != 0x04 {
		return nil, fmt.Errorf("%w: invalid public key point (%d bytes)", domain.ErrCertificate, len(publicKeyPoint))
	}
	if sign == nil {
		return nil, fmt.Errorf("%w: signer is required", domain.ErrCertificate)
	}

	e := &encoder{}

	spki := e.seq(
		e.seq(
			e.oid(1, 2, 840, 10045, 2, 1),    // ecPublicKey
			e.oid(1, 2, 840, 10045, 3, 1, 7), // prime256v1
		),
		e.bitString(publicKeyPoint),
	)

	serial, err := newSerial()
	if err != nil {
		return nil, fmt.Errorf("%w: serial: %v", domain.ErrCertificate, err)
	}

	sigAlg := e.seq(e.oid(1, 2, 840, 10045, 4, 3, 2)) // ecdsaWithSHA256

	name := e.seq(
		e.rdn(e.oid(2, 5, 4, 10), appName),               // O
		e.rdn(e.oid(2, 5, 4, 3), appName+" Self-Signed"), // CN
	)

	validity := e.seq(
		e.utcTime(now),
		e.utcTime(now.AddDate(0, 0, validityDays)),
	)

	keyID := sha1.Sum(publicKeyPoint)

	extensions := e.explicit(3, e.seq(
		// KeyUsage, critical, digitalSignature only (7 unused bits).
		e.seq(
			e.oid(2, 5, 29, 15),
			e.boolean(true),
			e.octetString(e.rawBitString([]byte{0x07, 0x80})),
		),
		// ExtendedKeyUsage: emailProtection.
		e.seq(
			e.oid(2, 5, 29, 37),
			e.octetString(e.seq(e.oid(1, 3, 6, 1, 5, 5, 7, 3, 4))),
		),
		// AuthorityKeyIdentifier: SHA-1 of the raw public key point.
		e.seq(
			e.oid(2, 5, 29, 35),
			e.octetString(e.seq(e.implicitPrimitive(0, keyID[:]))),
		),
	))

	tbs := e.seq(
		e.explicit(0, e.integer([]byte{0x02})), // version v3
		e.integer(serial),
		sigAlg,
		name, // issuer == subject
		validity,
		name,
		spki,
		extensions,
	)
	if e.err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCertificate, e.err)
	}

	signature, err := sign(tbs)
	if err != nil {
		return nil, fmt.Errorf("%w: sign tbs: %v", domain.ErrSigningFailed, err)
	}

	certificate := e.seq(tbs, sigAlg, e.bitString(signature))
	if e.err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCertificate, e.err)
	}
	return certificate, nil
}

// newSerial returns 8 random bytes with the top bit cleared so the INTEGER
// encoding is always positive without padding.
func newSerial() ([]byte, error) {
	serial := make([]byte, 8)
	if _, err := rand.Read(serial); err != nil {
		return nil, err
	}
	serial[0] &= 0x7F
	return serial, nil
}

// encoder threads the first DER error through a chain of builder calls.
type encoder struct {
	err error
}

func (e *encoder) keep(b []byte, err error) []byte {
	if e.err == nil && err != nil {
		e.err = err
	}
	return b
}

func (e *encoder) seq(parts ...[]byte) []byte   { return e.keep(der.Sequence(parts...)) }
func (e *encoder) oid(arcs ...int) []byte       { return e.keep(der.ObjectIdentifier(arcs...)) }
func (e *encoder) integer(v []byte) []byte      { return e.keep(der.Integer(v)) }
func (e *encoder) bitString(v []byte) []byte    { return e.keep(der.BitString(v)) }
func (e *encoder) rawBitString(v []byte) []byte { return e.keep(der.RawBitString(v)) }
func (e *encoder) octetString(v []byte) []byte  { return e.keep(der.OctetString(v)) }
func (e *encoder) boolean(v bool) []byte        { return e.keep(der.Boolean(v)) }
func (e *encoder) utcTime(t time.Time) []byte   { return e.keep(der.UTCTime(t)) }
func (e *encoder) explicit(n int, v []byte) []byte {
	return e.keep(der.Explicit(n, v))
}
func (e *encoder) implicitPrimitive(n int, v []byte) []byte {
	return e.keep(der.ImplicitPrimitive(n, v))
}

// rdn builds one RelativeDistinguishedName: SET { SEQUENCE { oid, value } }.
func (e *encoder) rdn(oid []byte, value string) []byte {
	return e.keep(der.Set(e.seq(oid, e.keep(der.UTF8String(value)))))
}
