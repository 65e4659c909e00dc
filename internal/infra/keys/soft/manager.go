// Package soft is the software_fallback key backing: P-256 keys in PKCS#8
// files under a directory, used when no hardware keystore is available.
package soft

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
	"github.com/RoloBits/attestation-photo-mobile/internal/infra/keys"
	"github.com/RoloBits/attestation-photo-mobile/pkg/capture"
)

type Manager struct {
	dir string
}

func NewManager(dir string) *Manager {
	return &Manager{dir: dir}
}

func (m *Manager) Tier() domain.TrustLevel {
	return domain.TrustSoftwareFallback
}

func (m *Manager) Load(_ context.Context, alias string) (keys.Handle, error) {
	path, err := m.keyPath(alias)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	parsed, err := x509.ParsePKCS8PrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse key %s: %w", path, err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok || key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("key %s is not ECDSA P-256", path)
	}
	return &handle{key: key}, nil
}

func (m *Manager) Create(ctx context.Context, alias string) (keys.Handle, error) {
	path, err := m.keyPath(alias)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(m.dir, 0o700); err != nil {
		return nil, err
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	raw, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	// O_EXCL keeps a concurrent creator from clobbering the alias; losers
	// fall back to the winner's key
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, os.ErrExist) {
		return m.Load(ctx, alias)
	}
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(raw); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, err
	}
	return &handle{key: key}, nil
}

func (m *Manager) keyPath(alias string) (string, error) {
	if alias == "" || alias != filepath.Base(alias) {
		return "", fmt.Errorf("invalid key alias %q", alias)
	}
	return filepath.Join(m.dir, alias+".p8"), nil
}

type handle struct {
	key *ecdsa.PrivateKey
}

func (h *handle) Sign(data []byte) ([]byte, error) {
	digest := sha256.Sum256(data)
	return ecdsa.SignASN1(rand.Reader, h.key, digest[:])
}

func (h *handle) CertificateDER() ([]byte, error) {
	return nil, capture.ErrNoEmbeddedCertificate
}

func (h *handle) PublicKeyPoint() ([]byte, error) {
	return elliptic.Marshal(elliptic.P256(), h.key.PublicKey.X, h.key.PublicKey.Y), nil
}
