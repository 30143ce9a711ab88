package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/parley-im/parley/internal/entity"
	"github.com/parley-im/parley/internal/service"
	"github.com/parley-im/parley/pkg/constant"
	"github.com/parley-im/parley/pkg/errcode"
	"github.com/rs/zerolog/log"
)

// Client represents one authenticated WebSocket connection
type Client struct {
	mu       sync.Mutex
	conn     ClientConn
	UserId   string
	Username string
	ConnId   string
	server   *WsServer

	roomsMu sync.RWMutex
	rooms   map[string]struct{} // joined conversation ids

	closed    atomic.Bool
	closedErr error
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new client
func NewClient(conn ClientConn, userId, username, connId string, server *WsServer) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:     conn,
		UserId:   userId,
		Username: username,
		ConnId:   connId,
		server:   server,
		rooms:    make(map[string]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the client message handling
func (c *Client) Start() {
	go c.readLoop()
}

// readLoop continuously reads frames from the connection
func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			c.closedErr = ErrPanic
			log.Error().Str("user_id", c.UserId).Interface("panic", r).Msg("client read loop panic")
		}
		c.close()
	}()

	for {
		message, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("user_id", c.UserId).Msg("read message error")
			c.closedErr = err
			return
		}

		if c.closed.Load() {
			c.closedErr = ErrConnClosed
			return
		}

		if err := c.handleFrame(message); err != nil {
			log.Warn().Err(err).Str("user_id", c.UserId).Msg("handle frame error")
			c.closedErr = err
			return
		}
	}
}

// handleFrame dispatches one incoming frame. Business failures are
// reported back on the connection; only write failures tear it down.
func (c *Client) handleFrame(message []byte) error {
	frame, err := DecodeFrame(message)
	if err != nil {
		return c.sendError("", errcode.ErrInvalidProtocol)
	}

	log.Debug().Str("event", frame.Event).Str("user_id", c.UserId).Msg("received frame")

	c.server.userMap.RefreshOnlineStatus(c.ctx, c.UserId)

	switch frame.Event {
	case constant.EventJoinConversation:
		err = c.handleJoin(frame.Data)
	case constant.EventLeaveConversation:
		err = c.handleLeave(frame.Data)
	case constant.EventSendMessage:
		return c.handleSend(frame.Data)
	case constant.EventTypingStart, constant.EventTypingStop:
		err = c.handleTyping(frame.Event, frame.Data)
	case constant.EventMarkRead:
		err = c.handleMarkRead(frame.Data)
	case constant.EventAddReaction, constant.EventRemoveReaction:
		err = c.handleReaction(frame.Event, frame.Data)
	case constant.EventSyncMessages:
		err = c.handleSync(frame.Data)
	default:
		err = errcode.ErrInvalidProtocol
	}

	if err != nil {
		return c.sendError(frame.Event, err)
	}
	return nil
}

// handleJoin subscribes the connection to a conversation room after the
// directory confirms active membership
func (c *Client) handleJoin(data json.RawMessage) error {
	var req JoinConversationReq
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationId == "" {
		return errcode.ErrInvalidParam
	}

	ok, err := c.server.directory.IsActiveParticipant(c.ctx, req.ConversationId, c.UserId)
	if err != nil {
		return err
	}
	if !ok {
		return errcode.ErrConvNotFound
	}

	c.addRoom(req.ConversationId)
	c.server.roomMap.Join(req.ConversationId, c)

	// Reconnecting clients piggyback their cursor on the join and get the
	// missed backlog without a separate round trip
	if req.Cursor != nil {
		result, err := c.server.sync.SyncMessages(c.ctx, c.UserId, &service.SyncRequest{
			ConversationId: req.ConversationId,
			Cursor:         *req.Cursor,
		})
		if err != nil {
			return err
		}
		return c.pushFrameObj(constant.EventSyncResponse, result)
	}
	return nil
}

func (c *Client) handleLeave(data json.RawMessage) error {
	var req LeaveConversationReq
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationId == "" {
		return errcode.ErrInvalidParam
	}

	c.removeRoom(req.ConversationId)
	c.server.roomMap.Leave(req.ConversationId, c)
	return nil
}

// handleSend runs the full send pipeline and always answers with a
// message_ack so the client can settle its pending send either way
func (c *Client) handleSend(data json.RawMessage) error {
	var req SendMessageReq
	if err := json.Unmarshal(data, &req); err != nil {
		return c.sendError(constant.EventSendMessage, errcode.ErrInvalidParam)
	}

	msg, err := c.server.messages.SendMessage(c.ctx, c.UserId, &service.SendMessageRequest{
		ConversationId:  req.ConversationId,
		Content:         req.Content,
		Type:            req.Type,
		ClientMessageId: req.ClientMessageId,
		ReplyTo:         req.ReplyTo,
		ThreadId:        req.ThreadId,
		Attachments:     req.Attachments,
		ConnId:          c.ConnId,
	})
	if err != nil {
		e := errcode.From(err)
		return c.pushFrameObj(constant.EventMessageAck, &service.MessageAckPayload{
			ClientMessageId: req.ClientMessageId,
			Status:          constant.AckStatusFailed,
			Error:           e.Status,
		})
	}

	return c.pushFrameObj(constant.EventMessageAck, &service.MessageAckPayload{
		ClientMessageId: msg.ClientMessageId,
		ServerMessageId: msg.Id,
		SequenceNumber:  msg.Seq,
		Status:          constant.AckStatusDelivered,
	})
}

// handleTyping relays a typing indicator to the room, never touching
// storage; requires the sender to have joined the room first
func (c *Client) handleTyping(event string, data json.RawMessage) error {
	var req TypingReq
	if err := json.Unmarshal(data, &req); err != nil || req.ConversationId == "" {
		return errcode.ErrInvalidParam
	}

	if !c.inRoom(req.ConversationId) {
		return errcode.ErrConvNotFound
	}

	c.server.BroadcastToConversation(c.ctx, req.ConversationId, event, &TypingPayload{
		ConversationId: req.ConversationId,
		UserId:         c.UserId,
		Username:       c.Username,
		Timestamp:      entity.NowUnixMilli(),
	}, c.ConnId)
	return nil
}

func (c *Client) handleMarkRead(data json.RawMessage) error {
	var req MarkReadReq
	if err := json.Unmarshal(data, &req); err != nil {
		return errcode.ErrInvalidParam
	}

	return c.server.readState.MarkRead(c.ctx, c.UserId, &service.MarkReadRequest{
		ConversationId: req.ConversationId,
		MessageId:      req.MessageId,
		ReadAt:         req.ReadAt,
	})
}

func (c *Client) handleReaction(event string, data json.RawMessage) error {
	var req ReactionReq
	if err := json.Unmarshal(data, &req); err != nil {
		return errcode.ErrInvalidParam
	}

	if event == constant.EventAddReaction {
		return c.server.messages.AddReaction(c.ctx, c.UserId, req.MessageId, req.Emoji)
	}
	return c.server.messages.RemoveReaction(c.ctx, c.UserId, req.MessageId, req.Emoji)
}

func (c *Client) handleSync(data json.RawMessage) error {
	var req SyncMessagesReq
	if err := json.Unmarshal(data, &req); err != nil {
		return errcode.ErrInvalidParam
	}

	result, err := c.server.sync.SyncMessages(c.ctx, c.UserId, &service.SyncRequest{
		ConversationId: req.ConversationId,
		Cursor:         req.Cursor,
		Limit:          req.Limit,
	})
	if err != nil {
		return err
	}

	return c.pushFrameObj(constant.EventSyncResponse, result)
}

// sendError emits an error event naming the request that failed
func (c *Client) sendError(event string, err error) error {
	e := errcode.From(err)
	return c.pushFrameObj(constant.EventError, &ErrorPayload{
		Status:  e.Status,
		Message: e.Msg,
		Event:   event,
	})
}

// pushFrameObj marshals and writes one frame to this connection
func (c *Client) pushFrameObj(event string, payload interface{}) error {
	data, err := EncodeFrame(event, payload)
	if err != nil {
		return err
	}
	return c.pushRaw(data)
}

// pushRaw writes pre-encoded frame bytes to this connection
func (c *Client) pushRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrConnClosed
	}
	return c.conn.WriteMessage(data)
}

// Rooms returns a snapshot of the joined conversation ids
func (c *Client) Rooms() map[string]struct{} {
	c.roomsMu.RLock()
	defer c.roomsMu.RUnlock()

	snapshot := make(map[string]struct{}, len(c.rooms))
	for id := range c.rooms {
		snapshot[id] = struct{}{}
	}
	return snapshot
}

func (c *Client) addRoom(conversationId string) {
	c.roomsMu.Lock()
	c.rooms[conversationId] = struct{}{}
	c.roomsMu.Unlock()
}

func (c *Client) removeRoom(conversationId string) {
	c.roomsMu.Lock()
	delete(c.rooms, conversationId)
	c.roomsMu.Unlock()
}

func (c *Client) inRoom(conversationId string) bool {
	c.roomsMu.RLock()
	defer c.roomsMu.RUnlock()
	_, ok := c.rooms[conversationId]
	return ok
}

// Close closes the client connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}

	c.closed.Store(true)
	c.cancel()
	return c.conn.Close()
}

// close handles cleanup when the connection drops
func (c *Client) close() {
	c.Close()
	c.server.UnregisterClient(c)
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
