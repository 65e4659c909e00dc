package capture

import "errors"

// Signer is the hardware signing capability injected into the pipeline. The
// private key never crosses this boundary; implementations typically wrap a
// platform secure-hardware keystore. Sign produces an ECDSA P-256/SHA-256
// signature in ASN.1 DER (r,s) form over the exact bytes given.
type Signer interface {
	Sign(data []byte) ([]byte, error)
	CertificateDER() ([]byte, error)
}

// ErrNoEmbeddedCertificate is returned from CertificateDER by signers whose
// keystore cannot export a certificate; the pipeline then builds a
// self-signed one from the public key.
var ErrNoEmbeddedCertificate = errors.New("capture: signer has no embedded certificate")

// PublicKeySigner is implemented by signers that can expose their public key
// as an uncompressed P-256 point (0x04 || X || Y, 65 bytes). It is required
// when the signer does not supply its own certificate.
type PublicKeySigner interface {
	Signer
	PublicKeyPoint() ([]byte, error)
}
