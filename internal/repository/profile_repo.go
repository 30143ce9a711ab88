package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/parley-im/parley/internal/entity"
)

// ProfileRepo caches display metadata owned by the external profile store
type ProfileRepo struct {
	db *gorm.DB
}

// NewProfileRepo creates a new ProfileRepo
func NewProfileRepo(db *gorm.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Upsert refreshes a cached profile, typically from verified claims on connect
func (r *ProfileRepo) Upsert(ctx context.Context, profile *entity.Profile) error {
	profile.UpdatedAt = entity.NowUnixMilli()

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"username":   profile.Username,
			"updated_at": profile.UpdatedAt,
		}),
	}).Create(profile).Error
}

// Get gets a cached profile, nil when unknown
func (r *ProfileRepo) Get(ctx context.Context, userId string) (*entity.Profile, error) {
	var profile entity.Profile
	err := r.db.WithContext(ctx).Where("user_id = ?", userId).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &profile, nil
}
