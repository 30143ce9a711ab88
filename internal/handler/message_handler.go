package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/parley-im/parley/internal/middleware"
	"github.com/parley-im/parley/internal/service"
	"github.com/parley-im/parley/pkg/errcode"
	"github.com/parley-im/parley/pkg/response"
)

// MessageHandler handles message-related requests
type MessageHandler struct {
	msgService  *service.MessageService
	syncService *service.SyncService
	readService *service.ReadService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(msgService *service.MessageService, syncService *service.SyncService, readService *service.ReadService) *MessageHandler {
	return &MessageHandler{msgService: msgService, syncService: syncService, readService: readService}
}

// SendMessage handles send message request (HTTP fallback for clients
// without a socket)
func (h *MessageHandler) SendMessage(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req service.SendMessageRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}
	req.ConversationId = c.Param("conversation_id")

	msg, err := h.msgService.SendMessage(ctx, userId, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg.ToMessageInfo())
}

// SyncMessages handles paginated backlog fetch over HTTP
func (h *MessageHandler) SyncMessages(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	cursor, _ := strconv.ParseInt(c.Query("cursor"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.syncService.SyncMessages(ctx, userId, &service.SyncRequest{
		ConversationId: c.Param("conversation_id"),
		Cursor:         cursor,
		Limit:          limit,
	})
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, result)
}

// editMessageReq is the edit message request body
type editMessageReq struct {
	Content string `json:"content"`
}

// EditMessage handles message content edit
func (h *MessageHandler) EditMessage(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req editMessageReq
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.msgService.EditMessage(ctx, userId, c.Param("message_id"), req.Content)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg.ToMessageInfo())
}

// DeleteMessage handles message soft delete
func (h *MessageHandler) DeleteMessage(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	if err := h.msgService.DeleteMessage(ctx, userId, c.Param("message_id")); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// reactionReq is the reaction request body
type reactionReq struct {
	Emoji string `json:"emoji"`
}

// AddReaction handles reaction add over HTTP
func (h *MessageHandler) AddReaction(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req reactionReq
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.msgService.AddReaction(ctx, userId, c.Param("message_id"), req.Emoji); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// RemoveReaction handles reaction removal over HTTP
func (h *MessageHandler) RemoveReaction(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	emoji := c.Query("emoji")
	if err := h.msgService.RemoveReaction(ctx, userId, c.Param("message_id"), emoji); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// ListReceipts handles read receipt listing for one message
func (h *MessageHandler) ListReceipts(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	receipts, err := h.readService.ListReceipts(ctx, userId, c.Param("message_id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, receipts)
}
