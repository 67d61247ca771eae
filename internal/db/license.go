package db

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"keygate/internal/license"
)

// LicenseRecord is the persisted form of a license key.
type LicenseRecord struct {
	// KeyID is the key itself (PREFIX-dddd-dddd-dddd).
	KeyID string `gorm:"primaryKey;size:64"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Activated bool `gorm:"not null;default:false"`

	// OwnerID is the redeeming identity. Empty until activation.
	OwnerID string `gorm:"index;size:128"`

	// Fingerprint is the bound device. Empty until first grant.
	Fingerprint string `gorm:"size:64"`

	DurationDays int `gorm:"not null"`

	ActivatedAt *time.Time
	ExpiresAt   *time.Time `gorm:"index"`
}

func (LicenseRecord) TableName() string {
	return "license_keys"
}

func toRecord(k license.LicenseKey) LicenseRecord {
	return LicenseRecord{
		KeyID:        k.ID,
		CreatedAt:    k.CreatedAt,
		Activated:    k.Activated,
		OwnerID:      k.OwnerID,
		Fingerprint:  k.Fingerprint,
		DurationDays: k.DurationDays,
		ActivatedAt:  k.ActivatedAt,
		ExpiresAt:    k.ExpiresAt,
	}
}

func (r LicenseRecord) toKey() license.LicenseKey {
	return license.LicenseKey{
		ID:           r.KeyID,
		Activated:    r.Activated,
		OwnerID:      r.OwnerID,
		Fingerprint:  r.Fingerprint,
		DurationDays: r.DurationDays,
		CreatedAt:    r.CreatedAt,
		ActivatedAt:  r.ActivatedAt,
		ExpiresAt:    r.ExpiresAt,
	}
}

// KeyStore implements license.Store on top of GORM.
type KeyStore struct {
	DB *gorm.DB
}

func (s KeyStore) LoadKeys(ctx context.Context) ([]license.LicenseKey, error) {
	var rows []LicenseRecord
	if err := s.DB.WithContext(ctx).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	keys := make([]license.LicenseKey, 0, len(rows))
	for _, r := range rows {
		keys = append(keys, r.toKey())
	}
	return keys, nil
}

func (s KeyStore) CreateKey(ctx context.Context, k license.LicenseKey) error {
	rec := toRecord(k)
	return s.DB.WithContext(ctx).Create(&rec).Error
}

func (s KeyStore) SaveKey(ctx context.Context, k license.LicenseKey) error {
	rec := toRecord(k)
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"activated", "owner_id", "fingerprint", "activated_at", "expires_at", "updated_at"}),
	}).Create(&rec).Error
}

func (s KeyStore) DeleteKeys(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.DB.WithContext(ctx).Where("key_id IN ?", ids).Delete(&LicenseRecord{}).Error
}
