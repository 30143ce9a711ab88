package errcode

import "fmt"

// Error represents a business error. Status carries the wire-level error code
// emitted to socket clients; Code is the numeric API code.
type Error struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("errcode: %d, status: %s, msg: %s", e.Code, e.Status, e.Msg)
}

// New creates a new error with code, wire status and message
func New(code int, status, msg string) *Error {
	return &Error{Code: code, Status: status, Msg: msg}
}

// Wrap wraps an error with additional context, keeping code and status
func (e *Error) Wrap(err error) *Error {
	if err == nil {
		return e
	}
	return &Error{
		Code:   e.Code,
		Status: e.Status,
		Msg:    fmt.Sprintf("%s: %v", e.Msg, err),
	}
}

// Is reports whether target is an *Error with the same code,
// so errors.Is works across Wrap
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Wire status strings
const (
	StatusAuthRequired         = "AUTH_REQUIRED"
	StatusConversationNotFound = "CONVERSATION_NOT_FOUND"
	StatusMessageNotFound      = "MESSAGE_NOT_FOUND"
	StatusPermissionDenied     = "PERMISSION_DENIED"
	StatusValidationError      = "VALIDATION_ERROR"
	StatusServerError          = "SERVER_ERROR"
)

// Common error codes
var (
	// Common errors (1xxx)
	ErrInvalidParam   = New(1001, StatusValidationError, "invalid parameter")
	ErrInternalServer = New(1002, StatusServerError, "internal server error")
	ErrUnauthorized   = New(1003, StatusAuthRequired, "unauthorized")
	ErrNoPermission   = New(1004, StatusPermissionDenied, "no permission to access this resource")

	// Auth errors (2xxx)
	ErrTokenInvalid = New(2001, StatusAuthRequired, "token invalid")
	ErrTokenExpired = New(2002, StatusAuthRequired, "token expired")
	ErrTokenMissing = New(2003, StatusAuthRequired, "token missing")

	// Conversation errors (3xxx)
	ErrConvNotFound       = New(3001, StatusConversationNotFound, "conversation not found or access denied")
	ErrNotParticipant     = New(3002, StatusConversationNotFound, "conversation not found or access denied")
	ErrParticipantExists  = New(3003, StatusValidationError, "already a participant")
	ErrInvitesDisabled    = New(3004, StatusPermissionDenied, "invites are disabled for this conversation")
	ErrConversationClosed = New(3005, StatusConversationNotFound, "conversation is no longer active")

	// Message errors (4xxx)
	ErrMessageNotFound    = New(4001, StatusMessageNotFound, "message not found")
	ErrContentEmpty       = New(4002, StatusValidationError, "message content is empty")
	ErrContentTooLong     = New(4003, StatusValidationError, "message content exceeds maximum length")
	ErrClientMsgIdMissing = New(4004, StatusValidationError, "client message id is required")
	ErrInvalidMsgType     = New(4005, StatusValidationError, "unknown message type")
	ErrInvalidEmoji       = New(4006, StatusValidationError, "malformed emoji")
	ErrSendNotAllowed     = New(4007, StatusPermissionDenied, "sending messages is not permitted")
	ErrUploadsDisabled    = New(4008, StatusPermissionDenied, "file uploads are disabled for this conversation")
	ErrReactionsDisabled  = New(4009, StatusPermissionDenied, "reactions are disabled for this conversation")
	ErrNotMessageOwner    = New(4010, StatusPermissionDenied, "not the message sender")
	ErrSeqAllocFailed     = New(4011, StatusServerError, "sequence allocation failed")
	ErrSendFailed         = New(4012, StatusServerError, "message send failed")

	// WebSocket errors (5xxx)
	ErrConnOverLimit   = New(5001, StatusServerError, "connection over max limit")
	ErrConnClosed      = New(5002, StatusServerError, "connection closed")
	ErrInvalidProtocol = New(5003, StatusValidationError, "invalid protocol")
)

// From extracts an *Error from err, mapping unknown errors to ErrInternalServer
func From(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return ErrInternalServer.Wrap(err)
}
