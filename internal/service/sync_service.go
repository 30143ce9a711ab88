package service

import (
	"context"

	"github.com/parley-im/parley/internal/entity"
	"github.com/parley-im/parley/internal/repository"
	"github.com/parley-im/parley/pkg/constant"
	"github.com/parley-im/parley/pkg/errcode"
	"github.com/samber/lo"
)

// SyncService replays conversation history to reconnecting clients
type SyncService struct {
	msgRepo  *repository.MessageRepo
	partRepo *repository.ParticipantRepo
	convRepo *repository.ConversationRepo
}

// NewSyncService creates a new SyncService
func NewSyncService(repos *repository.Repositories) *SyncService {
	return &SyncService{
		msgRepo:  repos.Message,
		partRepo: repos.Participant,
		convRepo: repos.Conversation,
	}
}

// SyncRequest represents a sync_messages request. Cursor is the highest
// sequence number the client already holds; zero means from the beginning.
type SyncRequest struct {
	ConversationId string `json:"conversation_id"`
	Cursor         int64  `json:"cursor,omitempty"`
	Limit          int    `json:"limit,omitempty"`
}

// SyncResult represents a sync_response payload
type SyncResult struct {
	ConversationId string                    `json:"conversation_id"`
	Messages       []*entity.MessageInfo     `json:"messages"`
	HasMore        bool                      `json:"has_more"`
	NextCursor     int64                     `json:"next_cursor,omitempty"`
	Participants   []*entity.ParticipantInfo `json:"participants"`
}

// SyncMessages returns the next page of messages strictly after the cursor,
// in ascending sequence order. The page carries the current roster so a
// reconnecting client can rebuild its view from sync_response alone.
func (s *SyncService) SyncMessages(ctx context.Context, userId string, req *SyncRequest) (*SyncResult, error) {
	if req.ConversationId == "" {
		return nil, errcode.ErrInvalidParam
	}
	if req.Cursor < 0 {
		return nil, errcode.ErrInvalidParam
	}

	part, err := s.partRepo.GetActive(ctx, req.ConversationId, userId)
	if err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}
	if part == nil {
		return nil, errcode.ErrConvNotFound
	}

	limit := normalizeSyncLimit(req.Limit)

	// Fetch one extra row as the has-more probe
	msgs, err := s.msgRepo.ListAfterSeq(ctx, req.ConversationId, req.Cursor, limit+1)
	if err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}
	page, hasMore, nextCursor := paginateBySeq(msgs, limit)

	if err := s.attachReactions(ctx, page); err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}

	roster, err := s.partRepo.Roster(ctx, req.ConversationId)
	if err != nil {
		return nil, errcode.ErrInternalServer.Wrap(err)
	}

	return &SyncResult{
		ConversationId: req.ConversationId,
		Messages:       lo.Map(page, func(m *entity.Message, _ int) *entity.MessageInfo { return m.ToMessageInfo() }),
		HasMore:        hasMore,
		NextCursor:     nextCursor,
		Participants:   roster,
	}, nil
}

// normalizeSyncLimit clamps a client-supplied page size into (0, SyncPageSize]
func normalizeSyncLimit(limit int) int {
	if limit <= 0 || limit > constant.SyncPageSize {
		return constant.SyncPageSize
	}
	return limit
}

// paginateBySeq trims a limit+1 probe fetch down to one page. When more
// rows exist, nextCursor is the last returned sequence number so repeated
// calls walk the history without gaps or overlaps.
func paginateBySeq(msgs []*entity.Message, limit int) (page []*entity.Message, hasMore bool, nextCursor int64) {
	if len(msgs) > limit {
		page = msgs[:limit]
		hasMore = true
		nextCursor = page[len(page)-1].Seq
		return page, hasMore, nextCursor
	}
	return msgs, false, 0
}

// attachReactions loads reactions for a page in one query and fans them
// out onto their messages
func (s *SyncService) attachReactions(ctx context.Context, msgs []*entity.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := lo.Map(msgs, func(m *entity.Message, _ int) string { return m.Id })
	reactions, err := s.msgRepo.ListReactions(ctx, ids)
	if err != nil {
		return err
	}
	byMsg := lo.GroupBy(reactions, func(r *entity.Reaction) string { return r.MessageId })
	for _, m := range msgs {
		m.Reactions = byMsg[m.Id]
	}
	return nil
}
