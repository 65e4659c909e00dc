package usecase

import (
	"context"
	"errors"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
	"github.com/RoloBits/attestation-photo-mobile/pkg/capture"
)

type VerifyRequest struct {
	SignedJPEG []byte
}

type VerifyResponse struct {
	Verification capture.VerifyResult
	// Record is the stored capture record for the asset hash, when one
	// exists on this node.
	Record *domain.CaptureRecord
}

// VerifyService checks a signed image and cross-references the local record
// store. A missing record is not a verification failure: images signed on
// other devices carry their proof with them.
type VerifyService struct {
	Records CaptureRecordRepository
}

func (uc *VerifyService) Execute(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	verification, err := capture.Verify(req.SignedJPEG)
	if err != nil {
		return nil, err
	}

	resp := &VerifyResponse{Verification: verification}
	if uc.Records != nil {
		record, err := uc.Records.GetByAssetHash(ctx, verification.AssetHashHex)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		resp.Record = record
	}
	return resp, nil
}
