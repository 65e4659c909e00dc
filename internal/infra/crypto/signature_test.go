package crypto

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"math/big"
	"testing"
)

func TestVerifyP256_RoundTrip(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	data := []byte("claim bytes")
	digest := sha256.Sum256(data)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := VerifyP256(&key.PublicKey, data, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyP256(&key.PublicKey, []byte("other bytes"), sig); err == nil {
		t.Fatal("expected verification failure for altered data")
	}
}

func TestECDSASignatureToP1363(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	digest := sha256.Sum256([]byte("payload"))
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	flat, err := ECDSASignatureToP1363(sig)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if len(flat) != 64 {
		t.Fatalf("expected 64 bytes, got %d", len(flat))
	}
	r := new(big.Int).SetBytes(flat[:32])
	s := new(big.Int).SetBytes(flat[32:])
	if !ecdsa.Verify(&key.PublicKey, digest[:], r, s) {
		t.Fatal("converted signature does not verify")
	}
}

func TestECDSASignatureToP1363_RejectsGarbage(t *testing.T) {
	if _, err := ECDSASignatureToP1363([]byte{0x30, 0x03, 0x02, 0x01}); err == nil {
		t.Fatal("expected error for truncated signature")
	}
	if _, err := ECDSASignatureToP1363(nil); err == nil {
		t.Fatal("expected error for empty signature")
	}
}

func TestCanonicalize_SortsKeysAndFormatsNumbers(t *testing.T) {
	got, err := CanonicalizeJSON([]byte(`{"b": 2.50, "a": "x", "c": [true, null, 1e2]}`))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"a":"x","b":2.5,"c":[true,null,100]}`
	if !bytes.Equal(got, []byte(want)) {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCanonicalize_RejectsTrailingData(t *testing.T) {
	if _, err := CanonicalizeJSON([]byte(`{} {}`)); err == nil {
		t.Fatal("expected error for trailing data")
	}
}
