// Package capture implements the attested-capture signing pipeline: it
// hashes a JPEG, builds a provenance claim, obtains a hardware signature
// through the Signer capability, and embeds claim, signature, and
// certificate as a JUMBF manifest without touching any pixel data.
package capture

import (
	"errors"
	"fmt"
	"time"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/cert"
	cryptoinfra "github.com/RoloBits/attestation-photo-mobile/internal/infra/crypto"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/jumbf"
)

// SignedResult is returned by a successful CaptureAndSign. AssetHashHex is
// the SHA-256 of the input bytes, computed before any mutation.
type SignedResult struct {
	SignedJPEG   []byte
	ManifestJSON []byte
	AssetHashHex string
}

// Pipeline sequences one capture: hash, certificate, claim, signature,
// embed. It holds no state across calls except the certificate cache, which
// is keyed by appName and signer key and safe for concurrent use.
type Pipeline struct {
	certs cert.Cache
	now   func() time.Time
}

func NewPipeline() *Pipeline {
	return &Pipeline{now: time.Now}
}

// CaptureAndSign signs imageBytes under the capture context. Failures
// surface as the specific domain error kinds; no unsigned image is ever
// returned as if it were signed.
func (p *Pipeline) CaptureAndSign(imageBytes []byte, ctx CaptureContext, signer Signer) (SignedResult, error) {
	if len(imageBytes) == 0 {
		return SignedResult{}, fmt.Errorf("%w: source image is empty", domain.ErrCaptureFailed)
	}
	if len(imageBytes) < 2 || imageBytes[0] != 0xFF || imageBytes[1] != 0xD8 {
		return SignedResult{}, fmt.Errorf("%w: not a valid JPEG", domain.ErrCaptureFailed)
	}
	if signer == nil {
		return SignedResult{}, fmt.Errorf("%w: signer is required", domain.ErrSigningFailed)
	}

	// fixed for the remainder of the call regardless of later failures
	sourceHashHex := cryptoinfra.SHA256Hex(imageBytes)

	certDER, err := p.certificate(ctx.AppName, signer)
	if err != nil {
		return SignedResult{}, err
	}

	claim := BuildClaim(ctx, sourceHashHex)
	claimBytes, err := ClaimBytesToSign(claim)
	if err != nil {
		return SignedResult{}, fmt.Errorf("%w: serialize claim: %v", domain.ErrManifestEmbedFailed, err)
	}

	signature, err := signer.Sign(claimBytes)
	if err != nil {
		return SignedResult{}, fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
	}

	superbox, err := jumbf.Manifest{
		Claim:       claimBytes,
		Signature:   signature,
		Certificate: certDER,
	}.Encode()
	if err != nil {
		return SignedResult{}, fmt.Errorf("%w: %v", domain.ErrManifestEmbedFailed, err)
	}
	signed, err := jumbf.Embed(imageBytes, superbox)
	if err != nil {
		return SignedResult{}, fmt.Errorf("%w: %v", domain.ErrManifestEmbedFailed, err)
	}

	return SignedResult{
		SignedJPEG:   signed,
		ManifestJSON: claimBytes,
		AssetHashHex: sourceHashHex,
	}, nil
}

// certificate prefers the keystore-supplied certificate and falls back to
// the internal self-signed builder. The cache key binds appName to the
// signer's public key point, so the embedded certificate always carries the
// key that produced the claim signature even when signers rotate under one
// appName.
func (p *Pipeline) certificate(appName string, signer Signer) ([]byte, error) {
	certDER, err := signer.CertificateDER()
	if err == nil && len(certDER) > 0 {
		return certDER, nil
	}
	if err != nil && !errors.Is(err, ErrNoEmbeddedCertificate) {
		return nil, fmt.Errorf("%w: export certificate: %v", domain.ErrCertificate, err)
	}

	pks, ok := signer.(PublicKeySigner)
	if !ok {
		return nil, fmt.Errorf("%w: public key unavailable from signer", domain.ErrCertificate)
	}
	point, err := pks.PublicKeyPoint()
	if err != nil {
		return nil, fmt.Errorf("%w: public key: %v", domain.ErrCertificate, err)
	}
	cacheKey := appName + "|" + cryptoinfra.SHA256Hex(point)
	return p.certs.Certificate(cacheKey, func() ([]byte, error) {
		return cert.Build(appName, point, signer.Sign, p.now())
	})
}

var defaultPipeline = NewPipeline()

// CaptureAndSign runs the package-level pipeline; the sole entry point the
// surrounding application calls.
func CaptureAndSign(imageBytes []byte, ctx CaptureContext, signer Signer) (SignedResult, error) {
	return defaultPipeline.CaptureAndSign(imageBytes, ctx, signer)
}
