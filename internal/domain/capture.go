package domain

import "time"

// TrustLevel classifies how strongly the device signing key is
// hardware-protected. Platform-specific labels (StrongBox, Secure Enclave,
// TEE keymaster) map onto this ordering.
type TrustLevel string

const (
	TrustHardwareSecure   TrustLevel = "hardware_secure"
	TrustHardwareTEE      TrustLevel = "hardware_tee"
	TrustSoftwareFallback TrustLevel = "software_fallback"
)

// Rank orders trust levels by assurance, highest first. Unknown levels rank
// below software_fallback.
func (t TrustLevel) Rank() int {
	switch t {
	case TrustHardwareSecure:
		return 3
	case TrustHardwareTEE:
		return 2
	case TrustSoftwareFallback:
		return 1
	default:
		return 0
	}
}

const (
	SigningAlg     = "ECDSA_P256_SHA256"
	ManifestFormat = "jumbf/c2pa"
)

// CaptureRecord is the output record surfaced to the application layer after
// a capture has been signed and committed.
type CaptureRecord struct {
	ID               string
	Path             string
	AssetHashHex     string
	SigningAlg       string
	ManifestFormat   string
	TrustLevel       TrustLevel
	EmbeddedManifest bool
	DeviceModel      string
	OSVersion        string
	CapturedAt       string
	Nonce            string
	Latitude         *float64
	Longitude        *float64
	CreatedAt        time.Time
}
