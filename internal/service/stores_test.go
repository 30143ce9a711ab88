package service

import (
	"context"

	"github.com/parley-im/parley/internal/entity"
	"gorm.io/gorm"
)

// fakeMessageStore serves messages from a map keyed by message id
type fakeMessageStore struct {
	messages  map[string]*entity.Message
	reactions []*entity.Reaction
	removed   []string
}

func newFakeMessageStore(msgs ...*entity.Message) *fakeMessageStore {
	store := &fakeMessageStore{messages: make(map[string]*entity.Message)}
	for _, m := range msgs {
		store.messages[m.Id] = m
	}
	return store
}

func (f *fakeMessageStore) Create(ctx context.Context, tx *gorm.DB, msg *entity.Message) error {
	f.messages[msg.Id] = msg
	return nil
}

func (f *fakeMessageStore) GetById(ctx context.Context, messageId string) (*entity.Message, error) {
	return f.messages[messageId], nil
}

func (f *fakeMessageStore) GetByClientMessageId(ctx context.Context, conversationId, senderId, clientMessageId string) (*entity.Message, error) {
	for _, m := range f.messages {
		if m.ConversationId == conversationId && m.SenderId == senderId && m.ClientMessageId == clientMessageId {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeMessageStore) MarkEdited(ctx context.Context, messageId, content string) error {
	if m := f.messages[messageId]; m != nil {
		m.Content = content
		m.IsEdited = true
	}
	return nil
}

func (f *fakeMessageStore) SoftDelete(ctx context.Context, messageId, deletedBy string) error {
	if m := f.messages[messageId]; m != nil {
		m.IsDeleted = true
		m.DeletedBy = deletedBy
	}
	return nil
}

func (f *fakeMessageStore) AddReaction(ctx context.Context, reaction *entity.Reaction) error {
	f.reactions = append(f.reactions, reaction)
	return nil
}

func (f *fakeMessageStore) RemoveReaction(ctx context.Context, messageId, userId, emoji string) error {
	f.removed = append(f.removed, messageId+"/"+userId+"/"+emoji)
	return nil
}

func (f *fakeMessageStore) MaxSeq(ctx context.Context, conversationId string) (int64, error) {
	var max int64
	for _, m := range f.messages {
		if m.ConversationId == conversationId && m.Seq > max {
			max = m.Seq
		}
	}
	return max, nil
}

// fakeParticipantStore keeps membership rows in memory. AdvanceReadPointer
// mirrors the guarded UPDATE: only rows with an older pointer change.
type fakeParticipantStore struct {
	parts map[string]*entity.Participant
}

func newFakeParticipantStore(parts ...*entity.Participant) *fakeParticipantStore {
	store := &fakeParticipantStore{parts: make(map[string]*entity.Participant)}
	for _, p := range parts {
		store.parts[p.ConversationId+"/"+p.UserId] = p
	}
	return store
}

func (f *fakeParticipantStore) get(conversationId, userId string) *entity.Participant {
	return f.parts[conversationId+"/"+userId]
}

func (f *fakeParticipantStore) GetActive(ctx context.Context, conversationId, userId string) (*entity.Participant, error) {
	p := f.get(conversationId, userId)
	if p == nil || !p.IsActive {
		return nil, nil
	}
	return p, nil
}

func (f *fakeParticipantStore) AdvanceReadPointer(ctx context.Context, conversationId, userId, messageId string, seq, readAt int64) error {
	p := f.get(conversationId, userId)
	if p == nil || !p.IsActive || p.LastReadSeq >= seq {
		return nil
	}
	p.LastReadSeq = seq
	p.LastReadMessageId = messageId
	p.LastReadAt = readAt
	return nil
}

func (f *fakeParticipantStore) Roster(ctx context.Context, conversationId string) ([]*entity.ParticipantInfo, error) {
	var roster []*entity.ParticipantInfo
	for _, p := range f.parts {
		if p.ConversationId == conversationId && p.IsActive {
			roster = append(roster, &entity.ParticipantInfo{
				UserId:     p.UserId,
				Role:       p.Role,
				LastReadAt: p.LastReadAt,
			})
		}
	}
	return roster, nil
}

// fakeConversationStore serves conversations from a map keyed by id
type fakeConversationStore struct {
	convs map[string]*entity.Conversation
}

func newFakeConversationStore(convs ...*entity.Conversation) *fakeConversationStore {
	store := &fakeConversationStore{convs: make(map[string]*entity.Conversation)}
	for _, c := range convs {
		store.convs[c.Id] = c
	}
	return store
}

func (f *fakeConversationStore) GetById(ctx context.Context, conversationId string) (*entity.Conversation, error) {
	return f.convs[conversationId], nil
}

func (f *fakeConversationStore) AdvanceLastMessage(ctx context.Context, tx *gorm.DB, conversationId, messageId string, seq, sentAt int64) error {
	return nil
}

// fakeReceiptStore dedupes on (message, user) like the unique index
type fakeReceiptStore struct {
	receipts map[string]*entity.ReadReceipt
	upserts  int
}

func newFakeReceiptStore() *fakeReceiptStore {
	return &fakeReceiptStore{receipts: make(map[string]*entity.ReadReceipt)}
}

func (f *fakeReceiptStore) Upsert(ctx context.Context, receipt *entity.ReadReceipt) error {
	f.upserts++
	f.receipts[receipt.MessageId+"/"+receipt.UserId] = receipt
	return nil
}

func (f *fakeReceiptStore) ListForMessage(ctx context.Context, messageId string) ([]*entity.ReadReceipt, error) {
	var out []*entity.ReadReceipt
	for _, r := range f.receipts {
		if r.MessageId == messageId {
			out = append(out, r)
		}
	}
	return out, nil
}

// fakeBroadcaster records every fan-out call
type broadcastCall struct {
	ConversationId string
	Event          string
	Payload        interface{}
	ExcludeConnId  string
}

type fakeBroadcaster struct {
	calls []broadcastCall
}

func (f *fakeBroadcaster) BroadcastToConversation(ctx context.Context, conversationId, event string, payload interface{}, excludeConnId string) {
	f.calls = append(f.calls, broadcastCall{
		ConversationId: conversationId,
		Event:          event,
		Payload:        payload,
		ExcludeConnId:  excludeConnId,
	})
}
