package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
	"github.com/RoloBits/attestation-photo-mobile/pkg/capture"
)

type CaptureRequest struct {
	// Exactly one of SourcePath and SourceBytes supplies the image.
	SourcePath  string
	SourceBytes []byte
	OutputName  string
	Nonce       string
	Latitude    *float64
	Longitude   *float64
	// Signals overrides the service-level probe, for callers that already
	// collected them.
	Signals *domain.DeviceSignals
}

type CaptureResponse struct {
	Record     domain.CaptureRecord
	Policy     domain.PolicyEvaluation
	SignedJPEG []byte
}

// CaptureService runs one attested capture end to end: key provisioning,
// admission policy, signing, gallery commit, record persistence.
type CaptureService struct {
	Keys    KeyProvisioner
	Policy  PolicyEvaluator
	Records CaptureRecordRepository
	Gallery Gallery
	Nonces  domain.NonceStore

	AppName                string
	DeviceModel            string
	OSVersion              string
	RequireTrustedHardware bool
	Signals                func(ctx context.Context) domain.DeviceSignals
	Now                    func() time.Time
}

func (uc *CaptureService) Execute(ctx context.Context, req CaptureRequest) (*CaptureResponse, error) {
	now := time.Now
	if uc.Now != nil {
		now = uc.Now
	}

	level, err := uc.Keys.EnsureKey(ctx)
	if err != nil {
		return nil, err
	}

	signals := uc.probeSignals(ctx, req)
	signals.TrustLevel = level

	eval, err := uc.Policy.Evaluate(ctx, domain.PolicyInput{
		Device:  signals,
		Options: &domain.PolicyOptions{RequireTrustedHardware: uc.RequireTrustedHardware},
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate capture policy: %w", err)
	}
	if !eval.Result.Allow {
		return nil, policyError(eval)
	}

	if req.Nonce != "" && uc.Nonces != nil {
		ok, err := uc.Nonces.Consume(ctx, req.Nonce)
		if err != nil {
			return nil, fmt.Errorf("consume nonce: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: invalid or expired nonce", domain.ErrCaptureFailed)
		}
	}

	source := req.SourceBytes
	if len(source) == 0 {
		if req.SourcePath == "" {
			return nil, fmt.Errorf("%w: no source image", domain.ErrCaptureFailed)
		}
		source, err = uc.Gallery.ReadSource(req.SourcePath, 2)
		if err != nil {
			return nil, err
		}
	}

	signer, err := uc.Keys.Signer(ctx)
	if err != nil {
		return nil, err
	}

	capturedAt := now().UTC().Format(time.RFC3339)
	result, err := capture.CaptureAndSign(source, capture.CaptureContext{
		AppName:           uc.AppName,
		DeviceModel:       uc.DeviceModel,
		OSVersion:         uc.OSVersion,
		CapturedAtISO8601: capturedAt,
		TrustLevel:        level,
		Nonce:             req.Nonce,
		Latitude:          req.Latitude,
		Longitude:         req.Longitude,
	}, signer)
	if err != nil {
		return nil, err
	}

	name := req.OutputName
	if name == "" {
		name = result.AssetHashHex + ".jpg"
	}
	path, err := uc.Gallery.Commit(name, result.SignedJPEG)
	if err != nil {
		return nil, fmt.Errorf("commit signed capture: %w", err)
	}

	record, err := uc.Records.Create(ctx, domain.CaptureRecord{
		Path:             path,
		AssetHashHex:     result.AssetHashHex,
		SigningAlg:       domain.SigningAlg,
		ManifestFormat:   domain.ManifestFormat,
		TrustLevel:       level,
		EmbeddedManifest: true,
		DeviceModel:      uc.DeviceModel,
		OSVersion:        uc.OSVersion,
		CapturedAt:       capturedAt,
		Nonce:            req.Nonce,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		CreatedAt:        now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("persist capture record: %w", err)
	}

	return &CaptureResponse{
		Record:     record,
		Policy:     eval,
		SignedJPEG: result.SignedJPEG,
	}, nil
}

func (uc *CaptureService) probeSignals(ctx context.Context, req CaptureRequest) domain.DeviceSignals {
	if req.Signals != nil {
		return *req.Signals
	}
	if uc.Signals != nil {
		return uc.Signals(ctx)
	}
	return domain.DeviceSignals{PhysicalDevice: true}
}

// policyError maps deny codes onto the domain sentinels; the normalized deny
// list puts compromised_device first.
func policyError(eval domain.PolicyEvaluation) error {
	for _, deny := range eval.Result.Deny {
		switch deny.Code {
		case domain.DenyCompromisedDevice:
			return fmt.Errorf("%w: %s", domain.ErrCompromisedDevice, deny.Message)
		case domain.DenyNoTrustedHardware:
			return fmt.Errorf("%w: %s", domain.ErrNoTrustedHardware, deny.Message)
		}
	}
	return fmt.Errorf("%w: capture denied by policy", domain.ErrCaptureFailed)
}
