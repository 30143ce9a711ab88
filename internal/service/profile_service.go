package service

import (
	"context"

	"github.com/parley-im/parley/internal/entity"
	"github.com/parley-im/parley/internal/repository"
	"github.com/parley-im/parley/pkg/errcode"
)

// ProfileService refreshes the local profile cache from verified identity
// claims. The external profile store owns this data; the cache only feeds
// roster rendering.
type ProfileService struct {
	profileRepo *repository.ProfileRepo
}

// NewProfileService creates a new ProfileService
func NewProfileService(repos *repository.Repositories) *ProfileService {
	return &ProfileService{profileRepo: repos.Profile}
}

// RefreshOnConnect upserts the cached profile row for a user who just
// authenticated a connection
func (s *ProfileService) RefreshOnConnect(ctx context.Context, userId, username string) error {
	if userId == "" {
		return errcode.ErrInvalidParam
	}
	return s.profileRepo.Upsert(ctx, &entity.Profile{
		UserId:   userId,
		Username: username,
	})
}
