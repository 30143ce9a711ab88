package gateway

import (
	"encoding/json"
	"testing"

	"github.com/parley-im/parley/pkg/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeFrame(t *testing.T) {
	raw, err := EncodeFrame(constant.EventSendMessage, &SendMessageReq{
		ConversationId:  "conv-1",
		Content:         "hello",
		ClientMessageId: "cmid-1",
	})
	require.NoError(t, err)

	frame, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, constant.EventSendMessage, frame.Event)

	var req SendMessageReq
	require.NoError(t, json.Unmarshal(frame.Data, &req))
	assert.Equal(t, "conv-1", req.ConversationId)
	assert.Equal(t, "hello", req.Content)
	assert.Equal(t, "cmid-1", req.ClientMessageId)
}

func TestEncodeFrameNilPayload(t *testing.T) {
	raw, err := EncodeFrame(constant.EventConnected, nil)
	require.NoError(t, err)

	frame, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, constant.EventConnected, frame.Event)
	assert.Empty(t, frame.Data)
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	_, err := DecodeFrame([]byte("not json"))
	assert.ErrorIs(t, err, ErrInvalidProtocol)
}

func TestDecodeFrameRejectsMissingEvent(t *testing.T) {
	_, err := DecodeFrame([]byte(`{"data":{"x":1}}`))
	assert.ErrorIs(t, err, ErrInvalidProtocol)
}
