package db

import "time"

type CaptureRecordModel struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	Path             string `gorm:"not null"`
	AssetHashHex     string `gorm:"uniqueIndex;not null"`
	SigningAlg       string `gorm:"not null"`
	ManifestFormat   string `gorm:"not null"`
	TrustLevel       string `gorm:"not null"`
	EmbeddedManifest bool   `gorm:"not null"`
	DeviceModel      string `gorm:"not null"`
	OSVersion        string `gorm:"not null"`
	CapturedAt       string `gorm:"not null"`
	Nonce            string
	Latitude         *float64
	Longitude        *float64
	CreatedAt        time.Time `gorm:"not null"`
}

func (CaptureRecordModel) TableName() string {
	return "capture_records"
}
