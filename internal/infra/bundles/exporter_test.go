package bundles

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
	cryptoinfra "github.com/RoloBits/attestation-photo-mobile/internal/infra/crypto"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/keys"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/keys/soft"
	"github.com/RoloBits/attestation-photo-mobile/pkg/capture"
)

func testJPEG() []byte {
	return []byte{
		0xFF, 0xD8,
		0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00,
		0x01, 0x02, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00,
		0xFF, 0xD9,
	}
}

func signedTestImage(t *testing.T) capture.SignedResult {
	t.Helper()
	provisioner := keys.NewProvisioner("bundle_test_key", soft.NewManager(t.TempDir()))
	if _, err := provisioner.EnsureKey(context.Background()); err != nil {
		t.Fatalf("EnsureKey: %v", err)
	}
	signer, err := provisioner.Signer(context.Background())
	if err != nil {
		t.Fatalf("Signer: %v", err)
	}
	result, err := capture.CaptureAndSign(testJPEG(), capture.CaptureContext{
		AppName:           "Attested Photo",
		DeviceModel:       "Test Rig",
		OSVersion:         "1.0",
		CapturedAtISO8601: "2026-03-01T09:00:00Z",
		TrustLevel:        domain.TrustSoftwareFallback,
	}, signer)
	if err != nil {
		t.Fatalf("CaptureAndSign: %v", err)
	}
	return result
}

func TestBuildEvidenceBundle(t *testing.T) {
	signed := signedTestImage(t)
	lat, lon := 39.3517, -120.1882
	record := &domain.CaptureRecord{
		ID:           "record-1",
		Path:         "/gallery/" + signed.AssetHashHex + ".jpg",
		AssetHashHex: signed.AssetHashHex,
		DeviceModel:  "Test Rig",
		OSVersion:    "1.0",
		CapturedAt:   "2026-03-01T09:00:00Z",
		Latitude:     &lat,
		Longitude:    &lon,
	}

	bundle, err := BuildEvidenceBundle(BundleInput{
		BundleID:   "bundle-1",
		SignedJPEG: signed.SignedJPEG,
		Record:     record,
		Now:        func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("BuildEvidenceBundle: %v", err)
	}

	if bundle.Version != EvidenceBundleVersion {
		t.Fatalf("version = %q", bundle.Version)
	}
	if !bundle.Receipt.SignatureValid || !bundle.Receipt.HashValid {
		t.Fatalf("receipt = %+v", bundle.Receipt)
	}
	if bundle.Receipt.SignerTrusted {
		t.Fatal("self-signed certificate must not be reported as trusted")
	}
	if bundle.Receipt.TrustLevel != string(domain.TrustSoftwareFallback) {
		t.Fatalf("trust level = %q", bundle.Receipt.TrustLevel)
	}
	if bundle.Receipt.CapturedAt != "2026-03-01T09:00:00Z" {
		t.Fatalf("captured at = %q", bundle.Receipt.CapturedAt)
	}
	if bundle.AssetHash.Hex != signed.AssetHashHex {
		t.Fatalf("asset hash = %q, want %q", bundle.AssetHash.Hex, signed.AssetHashHex)
	}
	if bundle.ReceiptDigest == "" {
		t.Fatal("receipt digest missing")
	}
	if bundle.Record == nil || bundle.Record.ID != "record-1" {
		t.Fatalf("record = %+v", bundle.Record)
	}
	if bundle.Record.Latitude == nil || *bundle.Record.Latitude != lat {
		t.Fatalf("latitude = %v", bundle.Record.Latitude)
	}

	// the embedded claim stays in canonical form
	canonical, err := cryptoinfra.CanonicalizeJSON(bundle.Claim)
	if err != nil {
		t.Fatalf("canonicalize claim: %v", err)
	}
	if !bytes.Equal(canonical, bundle.Claim) {
		t.Fatal("claim is not canonical JSON")
	}

	var claim capture.Claim
	if err := json.Unmarshal(bundle.Claim, &claim); err != nil {
		t.Fatalf("decode claim: %v", err)
	}
	if claim.AssetHash.Hash != signed.AssetHashHex {
		t.Fatalf("claim asset hash = %q", claim.AssetHash.Hash)
	}

	if bundle.Certificate.Subject == "" || bundle.Certificate.DERBase64 == "" {
		t.Fatalf("certificate entry = %+v", bundle.Certificate)
	}
}

func TestExportJSONDeterministic(t *testing.T) {
	signed := signedTestImage(t)
	input := BundleInput{
		BundleID:   "bundle-1",
		SignedJPEG: signed.SignedJPEG,
		Now:        func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) },
	}

	first, err := ExportJSON(input)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	second, err := ExportJSON(input)
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("exports of the same image differ")
	}
}

func TestBuildEvidenceBundleGeneratesID(t *testing.T) {
	signed := signedTestImage(t)
	bundle, err := BuildEvidenceBundle(BundleInput{SignedJPEG: signed.SignedJPEG})
	if err != nil {
		t.Fatalf("BuildEvidenceBundle: %v", err)
	}
	if bundle.BundleID == "" {
		t.Fatal("bundle id not generated")
	}
}

func TestBuildEvidenceBundleRejectsUnsigned(t *testing.T) {
	if _, err := BuildEvidenceBundle(BundleInput{SignedJPEG: testJPEG()}); err == nil {
		t.Fatal("expected error for unsigned image")
	}
	if _, err := BuildEvidenceBundle(BundleInput{}); err == nil {
		t.Fatal("expected error for empty input")
	}
}
