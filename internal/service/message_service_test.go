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

func newReactionTestService(msgs *fakeMessageStore, parts *fakeParticipantStore, convs *fakeConversationStore) (*MessageService, *fakeBroadcaster) {
	svc := &MessageService{
		msgRepo:  msgs,
		partRepo: parts,
		convRepo: convs,
	}
	broadcaster := &fakeBroadcaster{}
	svc.SetBroadcaster(broadcaster)
	return svc, broadcaster
}

func reactionConversation(id string) *entity.Conversation {
	return &entity.Conversation{
		Id:       id,
		Type:     constant.ConversationTypeGroup,
		IsActive: true,
		Settings: entity.DefaultConversationSettings(),
	}
}

func TestReactionFromNonMemberRejectedAsConvNotFound(t *testing.T) {
	msgs := newFakeMessageStore(&entity.Message{Id: "m1", ConversationId: "conv-1", SenderId: "alice", Seq: 1})
	svc, broadcaster := newReactionTestService(msgs,
		newFakeParticipantStore(readMember("conv-1", "alice")),
		newFakeConversationStore(reactionConversation("conv-1")))

	err := svc.AddReaction(context.Background(), "mallory", "m1", "👍")
	assert.ErrorIs(t, err, errcode.ErrConvNotFound)
	assert.Equal(t, errcode.StatusConversationNotFound, errcode.From(err).Status)

	err = svc.RemoveReaction(context.Background(), "mallory", "m1", "👍")
	assert.ErrorIs(t, err, errcode.ErrConvNotFound)

	assert.Empty(t, msgs.reactions)
	assert.Empty(t, broadcaster.calls)
}

func TestReactionOnUnknownMessage(t *testing.T) {
	svc, _ := newReactionTestService(newFakeMessageStore(),
		newFakeParticipantStore(readMember("conv-1", "alice")),
		newFakeConversationStore(reactionConversation("conv-1")))

	err := svc.AddReaction(context.Background(), "alice", "missing", "👍")
	assert.ErrorIs(t, err, errcode.ErrMessageNotFound)
}

func TestReactionAddedStoresAndBroadcasts(t *testing.T) {
	msgs := newFakeMessageStore(&entity.Message{Id: "m1", ConversationId: "conv-1", SenderId: "alice", Seq: 1})
	svc, broadcaster := newReactionTestService(msgs,
		newFakeParticipantStore(readMember("conv-1", "alice"), readMember("conv-1", "bob")),
		newFakeConversationStore(reactionConversation("conv-1")))

	require.NoError(t, svc.AddReaction(context.Background(), "bob", "m1", "🎉"))

	require.Len(t, msgs.reactions, 1)
	assert.Equal(t, "bob", msgs.reactions[0].UserId)
	assert.Equal(t, "🎉", msgs.reactions[0].Emoji)

	require.Len(t, broadcaster.calls, 1)
	call := broadcaster.calls[0]
	assert.Equal(t, constant.EventReactionAdded, call.Event)

	payload, ok := call.Payload.(*ReactionPayload)
	require.True(t, ok)
	assert.Equal(t, "m1", payload.MessageId)
	assert.Equal(t, "bob", payload.UserId)
}

func TestReactionBlockedWhenDisabled(t *testing.T) {
	conv := reactionConversation("conv-1")
	conv.Settings.AllowReactions = false
	msgs := newFakeMessageStore(&entity.Message{Id: "m1", ConversationId: "conv-1", SenderId: "alice", Seq: 1})
	svc, _ := newReactionTestService(msgs,
		newFakeParticipantStore(readMember("conv-1", "alice")),
		newFakeConversationStore(conv))

	err := svc.AddReaction(context.Background(), "alice", "m1", "👍")
	assert.ErrorIs(t, err, errcode.ErrReactionsDisabled)
	assert.Empty(t, msgs.reactions)
}
