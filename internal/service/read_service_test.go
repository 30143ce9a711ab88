package service

import (
	"context"
	"testing"

	"github.com/parley-im/parley/internal/entity"
	"github.com/parley-im/parley/pkg/constant"
	"github.com/parley-im/parley/pkg/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readTestEnv struct {
	svc         *ReadService
	parts       *fakeParticipantStore
	receipts    *fakeReceiptStore
	broadcaster *fakeBroadcaster
}

func newReadTestEnv(msgs *fakeMessageStore, parts *fakeParticipantStore) *readTestEnv {
	env := &readTestEnv{
		parts:       parts,
		receipts:    newFakeReceiptStore(),
		broadcaster: &fakeBroadcaster{},
	}
	env.svc = &ReadService{
		msgRepo:     msgs,
		partRepo:    parts,
		receiptRepo: env.receipts,
	}
	env.svc.SetBroadcaster(env.broadcaster)
	return env
}

func readMember(conversationId, userId string) *entity.Participant {
	return &entity.Participant{
		ConversationId: conversationId,
		UserId:         userId,
		Role:           constant.RoleMember,
		IsActive:       true,
		Permissions:    entity.MemberPermissions(),
	}
}

func TestMarkReadStaleMarkKeepsPointer(t *testing.T) {
	msgs := newFakeMessageStore(
		&entity.Message{Id: "m3", ConversationId: "conv-1", Seq: 3},
		&entity.Message{Id: "m5", ConversationId: "conv-1", Seq: 5},
	)
	env := newReadTestEnv(msgs, newFakeParticipantStore(readMember("conv-1", "alice")))

	require.NoError(t, env.svc.MarkRead(context.Background(), "alice", &MarkReadRequest{
		ConversationId: "conv-1",
		MessageId:      "m5",
	}))
	require.NoError(t, env.svc.MarkRead(context.Background(), "alice", &MarkReadRequest{
		ConversationId: "conv-1",
		MessageId:      "m3",
	}))

	part := env.parts.get("conv-1", "alice")
	assert.Equal(t, int64(5), part.LastReadSeq)
	assert.Equal(t, "m5", part.LastReadMessageId)

	// the stale mark still leaves its per-message receipt and broadcast
	assert.Len(t, env.receipts.receipts, 2)
	assert.Len(t, env.broadcaster.calls, 2)
}

func TestMarkReadReceiptIdempotent(t *testing.T) {
	msgs := newFakeMessageStore(&entity.Message{Id: "m1", ConversationId: "conv-1", Seq: 1})
	env := newReadTestEnv(msgs, newFakeParticipantStore(readMember("conv-1", "alice")))

	require.NoError(t, env.svc.MarkRead(context.Background(), "alice", &MarkReadRequest{
		ConversationId: "conv-1",
		MessageId:      "m1",
		ReadAt:         100,
	}))
	require.NoError(t, env.svc.MarkRead(context.Background(), "alice", &MarkReadRequest{
		ConversationId: "conv-1",
		MessageId:      "m1",
		ReadAt:         200,
	}))

	assert.Equal(t, 2, env.receipts.upserts)

	receipts, err := env.receipts.ListForMessage(context.Background(), "m1")
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, int64(200), receipts[0].ReadAt)
}

func TestMarkReadBroadcastsReceipt(t *testing.T) {
	msgs := newFakeMessageStore(&entity.Message{Id: "m1", ConversationId: "conv-1", Seq: 1})
	env := newReadTestEnv(msgs, newFakeParticipantStore(readMember("conv-1", "alice")))

	require.NoError(t, env.svc.MarkRead(context.Background(), "alice", &MarkReadRequest{
		ConversationId: "conv-1",
		MessageId:      "m1",
		ReadAt:         100,
	}))

	require.Len(t, env.broadcaster.calls, 1)
	call := env.broadcaster.calls[0]
	assert.Equal(t, "conv-1", call.ConversationId)
	assert.Equal(t, constant.EventReadReceipt, call.Event)
	assert.Empty(t, call.ExcludeConnId)

	payload, ok := call.Payload.(*ReadReceiptPayload)
	require.True(t, ok)
	assert.Equal(t, "m1", payload.MessageId)
	assert.Equal(t, "alice", payload.UserId)
	assert.Equal(t, int64(100), payload.ReadAt)
}

func TestMarkReadRequiresMembership(t *testing.T) {
	msgs := newFakeMessageStore(&entity.Message{Id: "m1", ConversationId: "conv-1", Seq: 1})
	env := newReadTestEnv(msgs, newFakeParticipantStore())

	err := env.svc.MarkRead(context.Background(), "mallory", &MarkReadRequest{
		ConversationId: "conv-1",
		MessageId:      "m1",
	})
	assert.ErrorIs(t, err, errcode.ErrConvNotFound)
	assert.Empty(t, env.receipts.receipts)
}

func TestMarkReadRejectsForeignMessage(t *testing.T) {
	msgs := newFakeMessageStore(&entity.Message{Id: "m1", ConversationId: "conv-2", Seq: 1})
	env := newReadTestEnv(msgs, newFakeParticipantStore(readMember("conv-1", "alice")))

	err := env.svc.MarkRead(context.Background(), "alice", &MarkReadRequest{
		ConversationId: "conv-1",
		MessageId:      "m1",
	})
	assert.ErrorIs(t, err, errcode.ErrMessageNotFound)
	assert.Empty(t, env.broadcaster.calls)
}
