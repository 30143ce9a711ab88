package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/parley-im/parley/internal/entity"
	"github.com/parley-im/parley/internal/repository"
	"github.com/parley-im/parley/pkg/constant"
	"github.com/parley-im/parley/pkg/errcode"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

// ConversationService handles the conversation directory: creation,
// membership and listing
type ConversationService struct {
	convRepo *repository.ConversationRepo
	partRepo *repository.ParticipantRepo
	repos    *repository.Repositories
}

// NewConversationService creates a new ConversationService
func NewConversationService(repos *repository.Repositories) *ConversationService {
	return &ConversationService{
		convRepo: repos.Conversation,
		partRepo: repos.Participant,
		repos:    repos,
	}
}

// CreateConversationRequest represents create conversation request
type CreateConversationRequest struct {
	Type           string   `json:"type"`
	Name           string   `json:"name,omitempty"`
	Description    string   `json:"description,omitempty"`
	ParticipantIds []string `json:"participant_ids"`
}

// CreateConversation creates a group conversation, or returns the existing
// direct conversation when one already links the same two users. The
// creator becomes admin; everyone else starts as a plain member.
func (s *ConversationService) CreateConversation(ctx context.Context, creatorId string, req *CreateConversationRequest) (*entity.Conversation, error) {
	switch req.Type {
	case constant.ConversationTypeDirect:
		others := lo.Uniq(lo.Without(req.ParticipantIds, creatorId))
		if len(others) != 1 {
			return nil, errcode.ErrInvalidParam
		}
		return s.createDirect(ctx, creatorId, others[0])
	case constant.ConversationTypeGroup:
		if req.Name == "" {
			return nil, errcode.ErrInvalidParam
		}
		return s.createGroup(ctx, creatorId, req)
	default:
		return nil, errcode.ErrInvalidParam
	}
}

func (s *ConversationService) createDirect(ctx context.Context, creatorId, peerId string) (*entity.Conversation, error) {
	key := entity.DirectKey(creatorId, peerId)

	existing, err := s.convRepo.GetByDirectKey(ctx, key)
	if err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}
	if existing != nil {
		// Rejoin both sides in case either previously left
		err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
			for _, userId := range []string{creatorId, peerId} {
				if err := s.partRepo.Reactivate(ctx, tx, existing.Id, userId, constant.RoleMember, entity.MemberPermissions()); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return nil, errcode.ErrInternalServer.Wrap(err)
		}
		return existing, nil
	}

	now := entity.NowUnixMilli()
	conv := &entity.Conversation{
		Id:        uuid.NewString(),
		Type:      constant.ConversationTypeDirect,
		CreatedBy: creatorId,
		IsActive:  true,
		DirectKey: &key,
		Settings:  entity.DefaultConversationSettings(),
	}
	// Direct conversations never accept invites
	conv.Settings.AllowInvites = false

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.convRepo.Create(ctx, tx, conv); err != nil {
			return err
		}
		for _, userId := range []string{creatorId, peerId} {
			p := &entity.Participant{
				ConversationId:       conv.Id,
				UserId:               userId,
				Role:                 constant.RoleMember,
				IsActive:             true,
				JoinedAt:             now,
				Permissions:          entity.MemberPermissions(),
				NotificationSettings: entity.DefaultNotificationSettings(),
			}
			if err := s.partRepo.Create(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// Two users opening the same direct chat at once race on the
		// direct_key unique index; the loser adopts the winner's row
		if existing, gerr := s.convRepo.GetByDirectKey(ctx, key); gerr == nil && existing != nil {
			return existing, nil
		}
		return nil, errcode.ErrInternalServer.Wrap(err)
	}

	log.Info().Str("conversation_id", conv.Id).Msg("direct conversation created")
	return conv, nil
}

func (s *ConversationService) createGroup(ctx context.Context, creatorId string, req *CreateConversationRequest) (*entity.Conversation, error) {
	now := entity.NowUnixMilli()
	conv := &entity.Conversation{
		Id:          uuid.NewString(),
		Type:        constant.ConversationTypeGroup,
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   creatorId,
		IsActive:    true,
		Settings:    entity.DefaultConversationSettings(),
	}

	memberIds := lo.Uniq(lo.Without(req.ParticipantIds, creatorId))

	err := s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.convRepo.Create(ctx, tx, conv); err != nil {
			return err
		}
		creator := &entity.Participant{
			ConversationId:       conv.Id,
			UserId:               creatorId,
			Role:                 constant.RoleAdmin,
			IsActive:             true,
			JoinedAt:             now,
			Permissions:          entity.AdminPermissions(),
			NotificationSettings: entity.DefaultNotificationSettings(),
		}
		if err := s.partRepo.Create(ctx, tx, creator); err != nil {
			return err
		}
		for _, userId := range memberIds {
			p := &entity.Participant{
				ConversationId:       conv.Id,
				UserId:               userId,
				Role:                 constant.RoleMember,
				IsActive:             true,
				JoinedAt:             now,
				Permissions:          entity.MemberPermissions(),
				NotificationSettings: entity.DefaultNotificationSettings(),
			}
			if err := s.partRepo.Create(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}

	log.Info().Str("conversation_id", conv.Id).Int("members", len(memberIds)+1).Msg("group conversation created")
	return conv, nil
}

// ListConversations returns the caller's active conversations with
// unread counts, most recently active first
func (s *ConversationService) ListConversations(ctx context.Context, userId string) ([]*entity.ConversationInfo, error) {
	rows, err := s.convRepo.ListForUser(ctx, userId)
	if err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}
	return lo.Map(rows, func(r *entity.ConversationWithReadState, _ int) *entity.ConversationInfo {
		info := r.Conversation.ToConversationInfo()
		info.MaxSeq = r.MaxSeq
		info.ReadSeq = r.ReadSeq
		info.UnreadCount = r.UnreadCount
		return info
	}), nil
}

// GetConversation returns one conversation the caller belongs to
func (s *ConversationService) GetConversation(ctx context.Context, userId, conversationId string) (*entity.Conversation, error) {
	part, err := s.partRepo.GetActive(ctx, conversationId, userId)
	if err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}
	if part == nil {
		return nil, errcode.ErrConvNotFound
	}
	conv, err := s.convRepo.GetById(ctx, conversationId)
	if err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}
	return conv, nil
}

// Roster returns the active participants of a conversation the caller
// belongs to, with cached profile metadata
func (s *ConversationService) Roster(ctx context.Context, userId, conversationId string) ([]*entity.ParticipantInfo, error) {
	part, err := s.partRepo.GetActive(ctx, conversationId, userId)
	if err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}
	if part == nil {
		return nil, errcode.ErrConvNotFound
	}
	return s.partRepo.Roster(ctx, conversationId)
}

// AddParticipant invites a user into a group conversation
func (s *ConversationService) AddParticipant(ctx context.Context, actorId, conversationId, userId string) error {
	conv, actor, err := s.loadMember(ctx, conversationId, actorId)
	if err != nil {
		return err
	}
	if conv.Type != constant.ConversationTypeGroup {
		return errcode.ErrInvalidParam
	}
	if !conv.Settings.AllowInvites {
		return errcode.ErrInvitesDisabled
	}
	if !actor.Permissions.CanInviteUsers && !actor.CanModerate() {
		return errcode.ErrNoPermission
	}

	existing, err := s.partRepo.Get(ctx, conversationId, userId)
	if err != nil {
		return errcode.ErrInternalServer.Wrap(err)
	}
	if existing != nil && existing.IsActive {
		return errcode.ErrParticipantExists
	}

	err = s.repos.Transaction(ctx, func(tx *gorm.DB) error {
		return s.partRepo.UpsertOnJoin(ctx, tx, &entity.Participant{
			ConversationId:       conversationId,
			UserId:               userId,
			Role:                 constant.RoleMember,
			IsActive:             true,
			JoinedAt:             entity.NowUnixMilli(),
			Permissions:          entity.MemberPermissions(),
			NotificationSettings: entity.DefaultNotificationSettings(),
		})
	})
	if err != nil {
		return errcode.ErrInternalServer.Wrap(err)
	}
	return nil
}

// RemoveParticipant evicts a member; requires moderator or admin role
func (s *ConversationService) RemoveParticipant(ctx context.Context, actorId, conversationId, userId string) error {
	_, actor, err := s.loadMember(ctx, conversationId, actorId)
	if err != nil {
		return err
	}
	if actorId != userId && !actor.CanModerate() {
		return errcode.ErrNoPermission
	}

	target, err := s.partRepo.GetActive(ctx, conversationId, userId)
	if err != nil {
		return errcode.ErrInternalServer.Wrap(err)
	}
	if target == nil {
		return errcode.ErrConvNotFound
	}

	return s.partRepo.Deactivate(ctx, conversationId, userId)
}

// LeaveConversation soft-deactivates the caller's own membership; their
// messages and read receipts stay attributed
func (s *ConversationService) LeaveConversation(ctx context.Context, userId, conversationId string) error {
	part, err := s.partRepo.GetActive(ctx, conversationId, userId)
	if err != nil {
		return errcode.ErrInternalServer.Wrap(err)
	}
	if part == nil {
		return errcode.ErrConvNotFound
	}
	return s.partRepo.Deactivate(ctx, conversationId, userId)
}

// UpdateSettingsRequest carries optional conversation field updates
type UpdateSettingsRequest struct {
	Name             *string `json:"name,omitempty"`
	Description      *string `json:"description,omitempty"`
	Avatar           *string `json:"avatar,omitempty"`
	AllowInvites     *bool   `json:"allow_invites,omitempty"`
	AllowFileUploads *bool   `json:"allow_file_uploads,omitempty"`
	AllowReactions   *bool   `json:"allow_reactions,omitempty"`
	AllowThreads     *bool   `json:"allow_threads,omitempty"`
}

// UpdateSettings applies partial conversation updates; requires the
// can_edit_conversation permission
func (s *ConversationService) UpdateSettings(ctx context.Context, actorId, conversationId string, req *UpdateSettingsRequest) error {
	_, actor, err := s.loadMember(ctx, conversationId, actorId)
	if err != nil {
		return err
	}
	if !actor.Permissions.CanEditConversation {
		return errcode.ErrNoPermission
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Avatar != nil {
		updates["avatar"] = *req.Avatar
	}
	if req.AllowInvites != nil {
		updates["allow_invites"] = *req.AllowInvites
	}
	if req.AllowFileUploads != nil {
		updates["allow_file_uploads"] = *req.AllowFileUploads
	}
	if req.AllowReactions != nil {
		updates["allow_reactions"] = *req.AllowReactions
	}
	if req.AllowThreads != nil {
		updates["allow_threads"] = *req.AllowThreads
	}
	if len(updates) == 0 {
		return nil
	}

	if err := s.convRepo.Update(ctx, conversationId, updates); err != nil {
		return errcode.ErrInternalServer.Wrap(err)
	}
	return nil
}

// IsActiveParticipant reports whether userId currently belongs to the
// conversation; the gateway consults this on room joins
func (s *ConversationService) IsActiveParticipant(ctx context.Context, conversationId, userId string) (bool, error) {
	part, err := s.partRepo.GetActive(ctx, conversationId, userId)
	if err != nil {
		return false, errcode.ErrInternalServer.Wrap(err)
	}
	return part != nil, nil
}

func (s *ConversationService) loadMember(ctx context.Context, conversationId, userId string) (*entity.Conversation, *entity.Participant, error) {
	conv, err := s.convRepo.GetById(ctx, conversationId)
	if err != nil {
		return nil, nil, errcode.ErrInternalServer.Wrap(err)
	}
	if conv == nil {
		return nil, nil, errcode.ErrConvNotFound
	}
	part, err := s.partRepo.GetActive(ctx, conversationId, userId)
	if err != nil {
		return nil, nil, errcode.ErrInternalServer.Wrap(err)
	}
	if part == nil {
		return nil, nil, errcode.ErrConvNotFound
	}
	return conv, part, nil
}
