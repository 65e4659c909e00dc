package domain

import "errors"

var (
	// Raised by the caller-side capture policy, never by the signing core.
	ErrCompromisedDevice = errors.New("compromised device")
	ErrNoTrustedHardware = errors.New("no trusted hardware")

	ErrAttestationFailed   = errors.New("attestation failed")
	ErrCaptureFailed       = errors.New("capture failed")
	ErrSigningFailed       = errors.New("signing failed")
	ErrManifestEmbedFailed = errors.New("manifest embed failed")

	ErrCertificate     = errors.New("certificate error")
	ErrManifestInvalid = errors.New("manifest invalid")
	ErrKeyNotFound     = errors.New("key not found")
	ErrNotFound        = errors.New("not found")
)
