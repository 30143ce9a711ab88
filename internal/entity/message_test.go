package entity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parley-im/parley/pkg/constant"
	"github.com/parley-im/parley/pkg/errcode"
)

func TestValidateContent(t *testing.T) {
	assert.NoError(t, ValidateContent("hello", constant.MsgTypeText))
	assert.NoError(t, ValidateContent(strings.Repeat("a", constant.MaxContentLength), ""))

	assert.ErrorIs(t, ValidateContent("", constant.MsgTypeText), errcode.ErrContentEmpty)
	assert.ErrorIs(t, ValidateContent(strings.Repeat("a", constant.MaxContentLength+1), constant.MsgTypeText), errcode.ErrContentTooLong)
	assert.ErrorIs(t, ValidateContent("hi", "carrier-pigeon"), errcode.ErrInvalidMsgType)
}

func TestValidateContent_CountsRunesNotBytes(t *testing.T) {
	// 4000 multibyte runes are within the limit even though the byte
	// count is far beyond it
	assert.NoError(t, ValidateContent(strings.Repeat("面", constant.MaxContentLength), constant.MsgTypeText))
}

func TestValidateEmoji(t *testing.T) {
	assert.NoError(t, ValidateEmoji("👍"))
	assert.ErrorIs(t, ValidateEmoji(""), errcode.ErrInvalidEmoji)
	assert.ErrorIs(t, ValidateEmoji(strings.Repeat("x", constant.MaxEmojiLength+1)), errcode.ErrInvalidEmoji)
}

func TestDirectKey_OrderIndependent(t *testing.T) {
	assert.Equal(t, DirectKey("alice", "bob"), DirectKey("bob", "alice"))
	assert.Equal(t, "alice:bob", DirectKey("bob", "alice"))
}

func TestToMessageInfo_RedactsDeleted(t *testing.T) {
	msg := &Message{
		Id:             "m1",
		ConversationId: "c1",
		SenderId:       "u1",
		Content:        "secret",
		Seq:            7,
		Attachments:    AttachmentList{{Type: constant.AttachmentImage, Url: "https://x/y.png"}},
		IsDeleted:      true,
	}

	info := msg.ToMessageInfo()
	assert.Empty(t, info.Content)
	assert.Nil(t, info.Attachments)
	assert.True(t, info.IsDeleted)
	// the slot in the sequence survives deletion
	assert.Equal(t, int64(7), info.SequenceNumber)
}

func TestAttachmentList_ScanValue(t *testing.T) {
	list := AttachmentList{{Type: constant.AttachmentFile, Filename: "a.pdf", Size: 42, Url: "https://x/a.pdf"}}

	v, err := list.Value()
	require.NoError(t, err)

	var got AttachmentList
	require.NoError(t, got.Scan(v))
	require.Len(t, got, 1)
	assert.Equal(t, "a.pdf", got[0].Filename)
	assert.Equal(t, int64(42), got[0].Size)

	empty, err := AttachmentList(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestPermissionDefaults(t *testing.T) {
	admin := AdminPermissions()
	assert.True(t, admin.CanSendMessages)
	assert.True(t, admin.CanDeleteMessages)

	member := MemberPermissions()
	assert.True(t, member.CanSendMessages)
	assert.False(t, member.CanInviteUsers)
	assert.False(t, member.CanEditConversation)
	assert.False(t, member.CanDeleteMessages)
}
