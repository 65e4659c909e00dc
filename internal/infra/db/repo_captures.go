package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/RoloBits/attestation-photo-mobile/internal/domain"
)

var errDBUnavailable = errors.New("db unavailable")

type CaptureRecordRepository struct {
	db *gorm.DB
}

func NewCaptureRecordRepository(db *gorm.DB) *CaptureRecordRepository {
	return &CaptureRecordRepository{db: db}
}

func (r *CaptureRecordRepository) Create(ctx context.Context, record domain.CaptureRecord) (domain.CaptureRecord, error) {
	if r.db == nil {
		return domain.CaptureRecord{}, errDBUnavailable
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	model := modelFromRecord(record)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.CaptureRecord{}, err
	}
	return recordFromModel(model), nil
}

func (r *CaptureRecordRepository) GetByAssetHash(ctx context.Context, assetHashHex string) (*domain.CaptureRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model CaptureRecordModel
	err := r.db.WithContext(ctx).First(&model, "asset_hash_hex = ?", assetHashHex).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	record := recordFromModel(model)
	return &record, nil
}

func (r *CaptureRecordRepository) ListRecent(ctx context.Context, limit int) ([]domain.CaptureRecord, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if limit <= 0 {
		limit = 50
	}
	var models []CaptureRecordModel
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&models).Error
	if err != nil {
		return nil, err
	}
	records := make([]domain.CaptureRecord, 0, len(models))
	for _, model := range models {
		records = append(records, recordFromModel(model))
	}
	return records, nil
}

func modelFromRecord(record domain.CaptureRecord) CaptureRecordModel {
	return CaptureRecordModel{
		ID:               record.ID,
		Path:             record.Path,
		AssetHashHex:     record.AssetHashHex,
		SigningAlg:       record.SigningAlg,
		ManifestFormat:   record.ManifestFormat,
		TrustLevel:       string(record.TrustLevel),
		EmbeddedManifest: record.EmbeddedManifest,
		DeviceModel:      record.DeviceModel,
		OSVersion:        record.OSVersion,
		CapturedAt:       record.CapturedAt,
		Nonce:            record.Nonce,
		Latitude:         record.Latitude,
		Longitude:        record.Longitude,
		CreatedAt:        record.CreatedAt,
	}
}

func recordFromModel(model CaptureRecordModel) domain.CaptureRecord {
	return domain.CaptureRecord{
		ID:               model.ID,
		Path:             model.Path,
		AssetHashHex:     model.AssetHashHex,
		SigningAlg:       model.SigningAlg,
		ManifestFormat:   model.ManifestFormat,
		TrustLevel:       domain.TrustLevel(model.TrustLevel),
		EmbeddedManifest: model.EmbeddedManifest,
		DeviceModel:      model.DeviceModel,
		OSVersion:        model.OSVersion,
		CapturedAt:       model.CapturedAt,
		Nonce:            model.Nonce,
		Latitude:         model.Latitude,
		Longitude:        model.Longitude,
		CreatedAt:        model.CreatedAt,
	}
}
