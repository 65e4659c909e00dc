package crypto

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyP256 checks an ASN.1 DER (r,s) ECDSA signature over SHA-256 of data.
func VerifyP256(pub *ecdsa.PublicKey, data, sigDER []byte) error {
	if pub == nil {
		return errors.New("public key is required")
	}
	digest := sha256.Sum256(data)
	if !ecdsa.VerifyASN1(pub, digest[:], sigDER) {
		return errors.New("signature verification failed")
	}
	return nil
}

// ECDSASignatureToP1363 converts an ASN.1 DER ECDSA signature to the fixed
// 64-byte r||s form COSE expects for ES256.
func ECDSASignatureToP1363(sigDER []byte) ([]byte, error) {
	var r, s big.Int
	input := cryptobyte.String(sigDER)
	var inner cryptobyte.String
	if !input.ReadASN1(&inner, cbasn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(&r) ||
		!inner.ReadASN1Integer(&s) ||
		!inner.Empty() {
		return nil, errors.New("malformed ECDSA DER signature")
	}
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return nil, errors.New("ECDSA signature components must be positive")
	}
	if r.BitLen() > 256 || s.BitLen() > 256 {
		return nil, fmt.Errorf("ECDSA signature component too large: r=%d s=%d bits", r.BitLen(), s.BitLen())
	}
	out := make([]byte, 64)
	r.FillBytes(out[:32])
	s.FillBytes(out[32:])
	return out, nil
}
