package capture

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"strings"
	"testing"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/jumbf"
)

// testSigner signs with an in-memory P-256 key and counts Sign calls.
type testSigner struct {
	key       *ecdsa.PrivateKey
	signCalls int
	signErr   error
	certDER   []byte
	certErr   error
}

func newTestSigner(t *testing.T) *testSigner {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &testSigner{key: key, certErr: ErrNoEmbeddedCertificate}
}

func (s *testSigner) Sign(data []byte) ([]byte, error) {
	s.signCalls++
	if s.signErr != nil {
		return nil, s.signErr
	}
	digest := sha256.Sum256(data)
	return ecdsa.SignASN1(rand.Reader, s.key, digest[:])
}

func (s *testSigner) CertificateDER() ([]byte, error) {
	if s.certErr != nil {
		return nil, s.certErr
	}
	return s.certDER, nil
}

func (s *testSigner) PublicKeyPoint() ([]byte, error) {
	return elliptic.Marshal(elliptic.P256(), s.key.PublicKey.X, s.key.PublicKey.Y), nil
}

// testJPEG is a fixed 512-byte JPEG-shaped asset: SOI, an APP0 JFIF segment,
// a COM segment of deterministic filler, EOI.
func testJPEG() []byte {
	var b bytes.Buffer
	b.Write([]byte{0xFF, 0xD8})
	app0 := []byte{'J', 'F', 'I', 'F', 0x00, 0x01, 0x02, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00}
	b.Write([]byte{0xFF, 0xE0, 0x00, byte(2 + len(app0))})
	b.Write(app0)
	fill := 512 - b.Len() - 4 - 2
	b.Write([]byte{0xFF, 0xFE, byte((fill + 2) >> 8), byte(fill + 2)})
	for i := 0; i < fill; i++ {
		b.WriteByte(byte(i % 251))
	}
	b.Write([]byte{0xFF, 0xD9})
	return b.Bytes()
}

// SHA-256 of the testJPEG bytes, computed independently.
const testJPEGHash = "c77c7f4211e8f6192560eefd040d6d2a95750e6fc4a22188b434feb9c23aacfd"

func testContext() CaptureContext {
	return CaptureContext{
		AppName:           "Attest",
		DeviceModel:       "Pixel 8 Pro",
		OSVersion:         "14",
		CapturedAtISO8601: "2024-05-11T09:30:00Z",
		TrustLevel:        domain.TrustHardwareTEE,
	}
}

func TestCaptureAndSignHashesOriginalBytes(t *testing.T) {
	signer := newTestSigner(t)
	res, err := NewPipeline().CaptureAndSign(testJPEG(), testContext(), signer)
	if err != nil {
		t.Fatalf("CaptureAndSign: %v", err)
	}
	if res.AssetHashHex != testJPEGHash {
		t.Fatalf("asset hash = %s, want %s", res.AssetHashHex, testJPEGHash)
	}
	if signer.signCalls < 1 {
		t.Fatalf("signer never invoked")
	}
}

func TestCaptureAndSignEmptyInputFailsBeforeSigning(t *testing.T) {
	signer := newTestSigner(t)
	for _, img := range [][]byte{nil, {}} {
		_, err := NewPipeline().CaptureAndSign(img, testContext(), signer)
		if !errors.Is(err, domain.ErrCaptureFailed) {
			t.Fatalf("err = %v, want ErrCaptureFailed", err)
		}
	}
	if signer.signCalls != 0 {
		t.Fatalf("signer invoked %d times on invalid input", signer.signCalls)
	}
}

func TestCaptureAndSignRejectsNonJPEG(t *testing.T) {
	signer := newTestSigner(t)
	_, err := NewPipeline().CaptureAndSign([]byte("PNG-ish"), testContext(), signer)
	if !errors.Is(err, domain.ErrCaptureFailed) {
		t.Fatalf("err = %v, want ErrCaptureFailed", err)
	}
	if signer.signCalls != 0 {
		t.Fatalf("signer invoked on non-JPEG input")
	}
}

func TestCaptureAndSignSignerRotationUnderOneAppName(t *testing.T) {
	p := NewPipeline()
	first := newTestSigner(t)
	second := newTestSigner(t)

	for i, signer := range []*testSigner{first, second, first} {
		res, err := p.CaptureAndSign(testJPEG(), testContext(), signer)
		if err != nil {
			t.Fatalf("CaptureAndSign #%d: %v", i, err)
		}
		verified, err := Verify(res.SignedJPEG)
		if err != nil {
			t.Fatalf("Verify #%d: %v", i, err)
		}
		if !verified.SignatureValid || !verified.HashValid {
			t.Fatalf("result #%d = %+v", i, verified)
		}
	}
}

func TestCaptureAndSignSignerFailure(t *testing.T) {
	signer := newTestSigner(t)
	signer.signErr = errors.New("keystore gone")
	_, err := NewPipeline().CaptureAndSign(testJPEG(), testContext(), signer)
	if !errors.Is(err, domain.ErrSigningFailed) {
		t.Fatalf("err = %v, want ErrSigningFailed", err)
	}
}

func TestCaptureAndSignPreservesPixelData(t *testing.T) {
	original := testJPEG()
	res, err := NewPipeline().CaptureAndSign(original, testContext(), newTestSigner(t))
	if err != nil {
		t.Fatalf("CaptureAndSign: %v", err)
	}
	stripped, err := jumbf.Strip(res.SignedJPEG)
	if err != nil {
		t.Fatalf("Strip: %v", err)
	}
	if !bytes.Equal(stripped, original) {
		t.Fatalf("stripping the manifest did not reproduce the original bytes")
	}
}

func TestCaptureAndSignVerifyRoundTrip(t *testing.T) {
	original := testJPEG()
	res, err := NewPipeline().CaptureAndSign(original, testContext(), newTestSigner(t))
	if err != nil {
		t.Fatalf("CaptureAndSign: %v", err)
	}
	vr, err := Verify(res.SignedJPEG)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !vr.SignatureValid {
		t.Fatalf("signature did not verify")
	}
	if !vr.HashValid {
		t.Fatalf("recomputed hash mismatch")
	}
	if vr.AssetHashHex != testJPEGHash {
		t.Fatalf("asset hash = %s, want %s", vr.AssetHashHex, testJPEGHash)
	}
	if vr.SignerTrusted {
		t.Fatalf("self-signed certificate reported as trusted")
	}
	if vr.Certificate == nil || len(vr.Certificate.Subject.Organization) == 0 ||
		vr.Certificate.Subject.Organization[0] != "Attest" {
		t.Fatalf("certificate subject = %+v", vr.Certificate.Subject)
	}
}

func TestVerifyDetectsClaimTampering(t *testing.T) {
	res, err := NewPipeline().CaptureAndSign(testJPEG(), testContext(), newTestSigner(t))
	if err != nil {
		t.Fatalf("CaptureAndSign: %v", err)
	}
	tampered := bytes.Replace(res.SignedJPEG, []byte("Pixel 8 Pro"), []byte("Pixel 9 Pro"), 1)
	if bytes.Equal(tampered, res.SignedJPEG) {
		t.Fatalf("tampering had no effect")
	}
	vr, err := Verify(tampered)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if vr.SignatureValid {
		t.Fatalf("tampered claim still verified")
	}
}

func TestVerifyUnsignedImage(t *testing.T) {
	_, err := Verify(testJPEG())
	if !errors.Is(err, domain.ErrManifestInvalid) {
		t.Fatalf("err = %v, want ErrManifestInvalid", err)
	}
}

func TestCaptureAndSignPrefersEmbeddedCertificate(t *testing.T) {
	signer := newTestSigner(t)
	signer.certErr = nil
	signer.certDER = []byte{0x30, 0x03, 0x02, 0x01, 0x01}
	res, err := NewPipeline().CaptureAndSign(testJPEG(), testContext(), signer)
	if err != nil {
		t.Fatalf("CaptureAndSign: %v", err)
	}
	manifest, err := jumbf.Decode(mustExtract(t, res.SignedJPEG))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(manifest.Certificate, signer.certDER) {
		t.Fatalf("embedded certificate was rebuilt despite keystore export")
	}
}

func mustExtract(t *testing.T, signed []byte) []byte {
	t.Helper()
	superbox, err := jumbf.Extract(signed)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	return superbox
}

func TestBuildClaimAssertionSet(t *testing.T) {
	ctx := testContext()
	claim := BuildClaim(ctx, testJPEGHash)

	if claim.Title != "Attested Photo 2024-05-11T09:30:00Z" {
		t.Fatalf("title = %q", claim.Title)
	}
	if claim.Format != "image/jpeg" {
		t.Fatalf("format = %q", claim.Format)
	}
	if claim.AssetHash.Alg != "sha256" || claim.AssetHash.Hash != testJPEGHash {
		t.Fatalf("asset_hash = %+v", claim.AssetHash)
	}

	for _, label := range []string{
		"c2pa.actions",
		"stds.schema-org.CreativeWork",
		"stds.exif",
		"attestation.device",
		"attestation.capture_time",
	} {
		if _, ok := claim.Assertion(label); !ok {
			t.Fatalf("assertion %q missing", label)
		}
	}
	if _, ok := claim.Assertion("attestation.trust"); ok {
		t.Fatalf("trust assertion present without a nonce")
	}
	if _, ok := claim.Assertion("attestation.location"); ok {
		t.Fatalf("location assertion present without coordinates")
	}

	exif, _ := claim.Assertion("stds.exif")
	if exif["exif:Make"] != "Pixel" {
		t.Fatalf("exif:Make = %v, want first word of model", exif["exif:Make"])
	}
	if exif["exif:Model"] != "Pixel 8 Pro" {
		t.Fatalf("exif:Model = %v", exif["exif:Model"])
	}
	if _, present := exif["exif:GPSLatitude"]; present {
		t.Fatalf("GPS tags present without coordinates")
	}
}

func TestBuildClaimTrustAssertionWithNonce(t *testing.T) {
	ctx := testContext()
	ctx.Nonce = "abc123"
	claim := BuildClaim(ctx, testJPEGHash)
	trust, ok := claim.Assertion("attestation.trust")
	if !ok {
		t.Fatalf("trust assertion missing with nonce set")
	}
	if trust["nonce"] != "abc123" || trust["trustLevel"] != string(domain.TrustHardwareTEE) {
		t.Fatalf("trust assertion = %v", trust)
	}
}

func TestBuildClaimLocationAssertion(t *testing.T) {
	lat, lon := 39.3517, -120.1882
	ctx := testContext()
	ctx.Latitude = &lat
	ctx.Longitude = &lon
	claim := BuildClaim(ctx, testJPEGHash)

	loc, ok := claim.Assertion("attestation.location")
	if !ok {
		t.Fatalf("location assertion missing")
	}
	if loc["latitude"] != lat || loc["longitude"] != lon {
		t.Fatalf("location = %v", loc)
	}

	exif, _ := claim.Assertion("stds.exif")
	if exif["exif:GPSLatitude"] != "39,21.102N" {
		t.Fatalf("GPSLatitude = %v", exif["exif:GPSLatitude"])
	}
	if exif["exif:GPSLongitude"] != "120,11.292W" {
		t.Fatalf("GPSLongitude = %v", exif["exif:GPSLongitude"])
	}
	if exif["exif:GPSVersionID"] != "2.2.0.0" {
		t.Fatalf("GPSVersionID = %v", exif["exif:GPSVersionID"])
	}
}

func TestBuildClaimOmitsLocationWithOneCoordinate(t *testing.T) {
	lat := 39.3517
	ctx := testContext()
	ctx.Latitude = &lat
	claim := BuildClaim(ctx, testJPEGHash)
	if _, ok := claim.Assertion("attestation.location"); ok {
		t.Fatalf("location assertion present with latitude only")
	}
	exif, _ := claim.Assertion("stds.exif")
	if _, present := exif["exif:GPSLatitude"]; present {
		t.Fatalf("GPS tags present with latitude only")
	}
}

func TestDecimalToDMS(t *testing.T) {
	cases := []struct {
		degrees    float64
		isLatitude bool
		want       string
	}{
		{39.3517, true, "39,21.102N"},
		{-39.3517, true, "39,21.102S"},
		{120.1882, false, "120,11.292E"},
		{-120.1882, false, "120,11.292W"},
		{0, true, "0,0.000N"},
	}
	for _, c := range cases {
		if got := decimalToDMS(c.degrees, c.isLatitude); got != c.want {
			t.Fatalf("decimalToDMS(%v, %v) = %q, want %q", c.degrees, c.isLatitude, got, c.want)
		}
	}
}

func TestClaimBytesToSignAreCanonical(t *testing.T) {
	claim := BuildClaim(testContext(), testJPEGHash)
	a, err := ClaimBytesToSign(claim)
	if err != nil {
		t.Fatalf("ClaimBytesToSign: %v", err)
	}
	b, err := ClaimBytesToSign(claim)
	if err != nil {
		t.Fatalf("ClaimBytesToSign: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("canonical claim bytes are not deterministic")
	}
	if !strings.HasPrefix(string(a), `{"assertions":`) {
		t.Fatalf("claim bytes not key-sorted: %.40s", a)
	}
}
