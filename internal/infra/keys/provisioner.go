// Package keys manages the device signing key: idempotent provisioning
// under a fixed alias, an ordered fallback chain over hardware backings, and
// the trust classification derived from the backing actually achieved.
package keys

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
	"github.com/RoloBits/attestation-photo-mobile/pkg/capture"
)

// Handle is a provisioned key usable by the capture pipeline.
type Handle interface {
	capture.PublicKeySigner
}

// Backend is one key backing tier. Load returns domain.ErrKeyNotFound when
// no key exists under the alias; Create generates one. A backend's own
// atomicity covers racing creates against the same alias within it.
type Backend interface {
	Tier() domain.TrustLevel
	Load(ctx context.Context, alias string) (Handle, error)
	Create(ctx context.Context, alias string) (Handle, error)
}

// Provisioner runs the check-then-create sequence as a single critical
// section. Backends are tried highest assurance first.
type Provisioner struct {
	alias    string
	backends []Backend

	mu     sync.Mutex
	handle Handle
	level  domain.TrustLevel
}

func NewProvisioner(alias string, backends ...Backend) *Provisioner {
	return &Provisioner{alias: alias, backends: backends}
}

// EnsureKey provisions the device key if absent and returns the trust level
// of its backing. Calling it again returns the same level without creating
// anything.
func (p *Provisioner) EnsureKey(ctx context.Context) (domain.TrustLevel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.handle != nil {
		return p.level, nil
	}
	if len(p.backends) == 0 {
		return "", fmt.Errorf("%w: no key backends configured", domain.ErrAttestationFailed)
	}

	// an existing key wins over creating a new one at a higher tier
	for _, b := range p.backends {
		handle, err := b.Load(ctx, p.alias)
		if err == nil {
			p.handle, p.level = handle, b.Tier()
			return p.level, nil
		}
		if !errors.Is(err, domain.ErrKeyNotFound) {
			return "", fmt.Errorf("%w: load %s: %v", domain.ErrAttestationFailed, b.Tier(), err)
		}
	}

	var lastErr error
	for _, b := range p.backends {
		handle, err := b.Create(ctx, p.alias)
		if err == nil {
			p.handle, p.level = handle, b.Tier()
			return p.level, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w: all backings failed: %v", domain.ErrAttestationFailed, lastErr)
}

// Signer returns the provisioned key, ensuring it first.
func (p *Provisioner) Signer(ctx context.Context) (capture.Signer, error) {
	if _, err := p.EnsureKey(ctx); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle, nil
}

// TrustLevel reports the level achieved by the last EnsureKey, or
// software_fallback ordering's zero value when none ran yet.
func (p *Provisioner) TrustLevel() domain.TrustLevel {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}
