package errcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_KeepsCodeAndStatus(t *testing.T) {
	wrapped := ErrSeqAllocFailed.Wrap(fmt.Errorf("redis down"))

	assert.Equal(t, ErrSeqAllocFailed.Code, wrapped.Code)
	assert.Equal(t, StatusServerError, wrapped.Status)
	assert.Contains(t, wrapped.Msg, "redis down")
}

func TestWrap_NilIsNoop(t *testing.T) {
	assert.Same(t, ErrConvNotFound, ErrConvNotFound.Wrap(nil))
}

func TestIs_MatchesAcrossWrap(t *testing.T) {
	wrapped := ErrMessageNotFound.Wrap(errors.New("gone"))

	assert.True(t, errors.Is(wrapped, ErrMessageNotFound))
	assert.False(t, errors.Is(wrapped, ErrConvNotFound))
}

func TestFrom(t *testing.T) {
	assert.Nil(t, From(nil))
	assert.Same(t, ErrNoPermission, From(ErrNoPermission))

	e := From(errors.New("boom"))
	assert.Equal(t, ErrInternalServer.Code, e.Code)
	assert.Equal(t, StatusServerError, e.Status)
}

func TestWireStatuses(t *testing.T) {
	// every wire status the protocol table names must be reachable
	assert.Equal(t, "AUTH_REQUIRED", ErrUnauthorized.Status)
	assert.Equal(t, "CONVERSATION_NOT_FOUND", ErrConvNotFound.Status)
	assert.Equal(t, "MESSAGE_NOT_FOUND", ErrMessageNotFound.Status)
	assert.Equal(t, "PERMISSION_DENIED", ErrNoPermission.Status)
	assert.Equal(t, "VALIDATION_ERROR", ErrInvalidParam.Status)
	assert.Equal(t, "SERVER_ERROR", ErrInternalServer.Status)
}
