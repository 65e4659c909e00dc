// Package bundles exports a signed capture as a single canonical JSON
// evidence document. The bundle carries everything a reviewer needs to
// re-check the image offline: the signed claim, its signature, the
// embedded certificate, and a verification receipt with its own digest.
package bundles

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
	cryptoinfra "github.com/RoloBits/attestation-photo-mobile/internal/infra/crypto"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/jumbf"
	"github.com/RoloBits/attestation-photo-mobile/pkg/capture"
)

const EvidenceBundleVersion = "v0"

type BundleInput struct {
	BundleID   string
	SignedJPEG []byte
	Record     *domain.CaptureRecord
	Policy     *domain.PolicyEvaluation
	Now        func() time.Time
}

type EvidenceBundle struct {
	BundleID      string                   `json:"bundle_id"`
	Version       string                   `json:"version"`
	ExportedAt    string                   `json:"exported_at"`
	AssetHash     AssetHashEntry           `json:"asset_hash"`
	Claim         json.RawMessage          `json:"claim"`
	Signature     string                   `json:"signature"`
	Certificate   CertificateEntry         `json:"certificate"`
	Receipt       Receipt                  `json:"receipt"`
	ReceiptDigest string                   `json:"receipt_digest"`
	Policy        *domain.PolicyEvaluation `json:"policy,omitempty"`
	Record        *RecordEntry             `json:"record,omitempty"`
}

type AssetHashEntry struct {
	Alg string `json:"alg"`
	Hex string `json:"hex"`
}

type CertificateEntry struct {
	DERBase64 string `json:"der_base64"`
	Subject   string `json:"subject"`
	Issuer    string `json:"issuer"`
	NotBefore string `json:"not_before"`
	NotAfter  string `json:"not_after"`
}

// Receipt is the reviewer-facing summary of the checks the exporter ran
// while building the bundle. Its digest is computed over the canonical
// JSON form so two exports of the same image agree byte for byte.
type Receipt struct {
	SignatureValid bool   `json:"signature_valid"`
	HashValid      bool   `json:"hash_valid"`
	SignerTrusted  bool   `json:"signer_trusted"`
	AssetHashHex   string `json:"asset_hash_hex"`
	SigningAlg     string `json:"signing_alg"`
	ManifestFormat string `json:"manifest_format"`
	TrustLevel     string `json:"trust_level,omitempty"`
	CapturedAt     string `json:"captured_at,omitempty"`
}

type RecordEntry struct {
	ID          string   `json:"id"`
	Path        string   `json:"path"`
	DeviceModel string   `json:"device_model"`
	OSVersion   string   `json:"os_version"`
	CapturedAt  string   `json:"captured_at"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// BuildEvidenceBundle verifies the signed image and assembles the bundle.
// The image must carry an embedded manifest with a valid claim signature;
// a failed asset-hash check is recorded in the receipt rather than
// rejected, since a reviewer may want the evidence of the mismatch.
func BuildEvidenceBundle(input BundleInput) (EvidenceBundle, error) {
	if len(input.SignedJPEG) == 0 {
		return EvidenceBundle{}, errors.New("signed image is required")
	}
	bundleID := input.BundleID
	if bundleID == "" {
		bundleID = uuid.NewString()
	}
	now := input.Now
	if now == nil {
		now = time.Now
	}

	result, err := capture.Verify(input.SignedJPEG)
	if err != nil {
		return EvidenceBundle{}, err
	}

	superbox, err := jumbf.Extract(input.SignedJPEG)
	if err != nil {
		return EvidenceBundle{}, err
	}
	manifest, err := jumbf.Decode(superbox)
	if err != nil {
		return EvidenceBundle{}, err
	}

	claimCanonical, err := cryptoinfra.CanonicalizeJSON(manifest.Claim)
	if err != nil {
		return EvidenceBundle{}, err
	}

	receipt := Receipt{
		SignatureValid: result.SignatureValid,
		HashValid:      result.HashValid,
		SignerTrusted:  result.SignerTrusted,
		AssetHashHex:   result.AssetHashHex,
		SigningAlg:     domain.SigningAlg,
		ManifestFormat: domain.ManifestFormat,
	}
	if device, ok := result.Claim.Assertion("attestation.device"); ok {
		if level, ok := device["trustLevel"].(string); ok {
			receipt.TrustLevel = level
		}
	}
	if captureTime, ok := result.Claim.Assertion("attestation.capture_time"); ok {
		if ts, ok := captureTime["timestamp"].(string); ok {
			receipt.CapturedAt = ts
		}
	}

	receiptDigest, err := computeReceiptDigest(receipt)
	if err != nil {
		return EvidenceBundle{}, err
	}

	bundle := EvidenceBundle{
		BundleID:   bundleID,
		Version:    EvidenceBundleVersion,
		ExportedAt: now().UTC().Format(time.RFC3339),
		AssetHash: AssetHashEntry{
			Alg: "sha256",
			Hex: result.AssetHashHex,
		},
		Claim:     json.RawMessage(claimCanonical),
		Signature: base64.StdEncoding.EncodeToString(manifest.Signature),
		Certificate: CertificateEntry{
			DERBase64: base64.StdEncoding.EncodeToString(manifest.Certificate),
			Subject:   result.Certificate.Subject.String(),
			Issuer:    result.Certificate.Issuer.String(),
			NotBefore: result.Certificate.NotBefore.UTC().Format(time.RFC3339),
			NotAfter:  result.Certificate.NotAfter.UTC().Format(time.RFC3339),
		},
		Receipt:       receipt,
		ReceiptDigest: receiptDigest,
		Policy:        input.Policy,
	}
	if input.Record != nil {
		bundle.Record = &RecordEntry{
			ID:          input.Record.ID,
			Path:        input.Record.Path,
			DeviceModel: input.Record.DeviceModel,
			OSVersion:   input.Record.OSVersion,
			CapturedAt:  input.Record.CapturedAt,
			Latitude:    input.Record.Latitude,
			Longitude:   input.Record.Longitude,
		}
	}
	return bundle, nil
}

// MarshalEvidenceBundle renders the bundle as JCS canonical JSON.
func MarshalEvidenceBundle(bundle EvidenceBundle) ([]byte, error) {
	return cryptoinfra.Canonicalize(bundle)
}

func ExportJSON(input BundleInput) ([]byte, error) {
	bundle, err := BuildEvidenceBundle(input)
	if err != nil {
		return nil, err
	}
	return MarshalEvidenceBundle(bundle)
}

func computeReceiptDigest(receipt Receipt) (string, error) {
	canonical, err := cryptoinfra.Canonicalize(receipt)
	if err != nil {
		return "", err
	}
	return cryptoinfra.SHA256Hex(canonical), nil
}
