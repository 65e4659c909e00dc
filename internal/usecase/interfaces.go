package usecase

import (
	"context"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
	"github.com/RoloBits/attestation-photo-mobile/pkg/capture"
)

type CaptureRecordRepository interface {
	Create(ctx context.Context, record domain.CaptureRecord) (domain.CaptureRecord, error)
	GetByAssetHash(ctx context.Context, assetHashHex string) (*domain.CaptureRecord, error)
	ListRecent(ctx context.Context, limit int) ([]domain.CaptureRecord, error)
}

// KeyProvisioner hands out the device signing key, creating it on first use.
type KeyProvisioner interface {
	EnsureKey(ctx context.Context) (domain.TrustLevel, error)
	Signer(ctx context.Context) (capture.Signer, error)
	TrustLevel() domain.TrustLevel
}

type PolicyEvaluator interface {
	Evaluate(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error)
}

// Gallery is the committed-output side of storage; reads of in-flight source
// files go through ReadSource.
type Gallery interface {
	ReadSource(path string, minSize int) ([]byte, error)
	Commit(name string, data []byte) (string, error)
}
