package capture

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/json"
	"fmt"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
	cryptoinfra "github.com/RoloBits/attestation-photo-mobile/internal/infra/crypto"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/jumbf"
)

// VerifyResult reports the structural checks on a signed image. Because the
// embedded certificate is self-signed, SignerTrusted is always false: the
// signature can be valid while the signer identity stays unverified. That is
// a declared limitation, not an error.
type VerifyResult struct {
	SignatureValid bool
	HashValid      bool
	AssetHashHex   string
	Claim          Claim
	Certificate    *x509.Certificate
	SignerTrusted  bool
}

// Verify extracts the embedded manifest, checks the claim signature against
// the embedded certificate's key, and recomputes the bound asset hash over
// the image with the manifest stripped.
func Verify(signedJPEG []byte) (VerifyResult, error) {
	superbox, err := jumbf.Extract(signedJPEG)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: %v", domain.ErrManifestInvalid, err)
	}
	manifest, err := jumbf.Decode(superbox)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: %v", domain.ErrManifestInvalid, err)
	}

	parsedCert, err := x509.ParseCertificate(manifest.Certificate)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: parse certificate: %v", domain.ErrManifestInvalid, err)
	}
	pub, ok := parsedCert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return VerifyResult{}, fmt.Errorf("%w: certificate key is %T, want ECDSA", domain.ErrManifestInvalid, parsedCert.PublicKey)
	}

	var claim Claim
	if err := json.Unmarshal(manifest.Claim, &claim); err != nil {
		return VerifyResult{}, fmt.Errorf("%w: decode claim: %v", domain.ErrManifestInvalid, err)
	}

	canonical, err := cryptoinfra.CanonicalizeJSON(manifest.Claim)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: canonicalize claim: %v", domain.ErrManifestInvalid, err)
	}
	if err := cryptoinfra.VerifyP256(pub, canonical, manifest.Signature); err != nil {
		return VerifyResult{}, fmt.Errorf("%w: claim signature: %v", domain.ErrManifestInvalid, err)
	}

	original, err := jumbf.Strip(signedJPEG)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: %v", domain.ErrManifestInvalid, err)
	}
	assetHashHex := cryptoinfra.SHA256Hex(original)
	hashValid := claim.AssetHash.Alg == "sha256" &&
		bytes.Equal([]byte(claim.AssetHash.Hash), []byte(assetHashHex))

	return VerifyResult{
		SignatureValid: true,
		HashValid:      hashValid,
		AssetHashHex:   assetHashHex,
		Claim:          claim,
		Certificate:    parsedCert,
		SignerTrusted:  false,
	}, nil
}
