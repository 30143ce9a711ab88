package gateway

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/parley-im/parley/internal/config"
	"github.com/parley-im/parley/internal/entity"
	"github.com/parley-im/parley/internal/service"
	"github.com/parley-im/parley/pkg/constant"
	"github.com/parley-im/parley/pkg/jwt"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// MessageSender is the slice of the message service the gateway invokes
type MessageSender interface {
	SendMessage(ctx context.Context, senderId string, req *service.SendMessageRequest) (*entity.Message, error)
	AddReaction(ctx context.Context, userId, messageId, emoji string) error
	RemoveReaction(ctx context.Context, userId, messageId, emoji string) error
}

// ReadTracker marks messages read on behalf of connected users
type ReadTracker interface {
	MarkRead(ctx context.Context, userId string, req *service.MarkReadRequest) error
}

// MessageSyncer replays backlog pages to reconnecting clients
type MessageSyncer interface {
	SyncMessages(ctx context.Context, userId string, req *service.SyncRequest) (*service.SyncResult, error)
}

// Directory answers membership questions for room joins
type Directory interface {
	IsActiveParticipant(ctx context.Context, conversationId, userId string) (bool, error)
}

// ProfileCache refreshes cached display metadata on connect
type ProfileCache interface {
	RefreshOnConnect(ctx context.Context, userId, username string) error
}

// PushTask carries one pre-encoded frame bound for a conversation room
type PushTask struct {
	ConversationId string
	Data           []byte
	ExcludeConnId  string
}

// WsServer is the WebSocket gateway: it owns every live connection,
// the room registry and the fan-out workers, and it implements
// service.Broadcaster for the business layer.
type WsServer struct {
	upgrader       *websocket.Upgrader
	cfg            *config.Config
	userMap        *UserMap
	roomMap        *RoomMap
	registerChan   chan *Client
	unregisterChan chan *Client
	pushChan       chan *PushTask

	messages  MessageSender
	readState ReadTracker
	sync      MessageSyncer
	directory Directory
	profiles  ProfileCache

	relay *Relay

	onlineUserNum atomic.Int64
	onlineConnNum atomic.Int64
	maxConnNum    int64
}

// NewWsServer creates a new WebSocket gateway
func NewWsServer(cfg *config.Config, rdb *redis.Client,
	messages MessageSender, readState ReadTracker, syncer MessageSyncer,
	directory Directory, profiles ProfileCache) *WsServer {

	upgrader := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.Server.AllowedOrigins),
	}

	server := &WsServer{
		upgrader:       upgrader,
		cfg:            cfg,
		userMap:        NewUserMap(rdb),
		roomMap:        NewRoomMap(),
		registerChan:   make(chan *Client, 1000),
		unregisterChan: make(chan *Client, 1000),
		pushChan:       make(chan *PushTask, cfg.WebSocket.PushChannelSize),
		messages:       messages,
		readState:      readState,
		sync:           syncer,
		directory:      directory,
		profiles:       profiles,
		maxConnNum:     cfg.WebSocket.MaxConnNum,
	}

	if rdb != nil {
		server.relay = NewRelay(rdb, cfg.Server.InstanceId, server)
	}

	return server
}

// originChecker allows any origin when the list is empty (development mode)
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		_, ok := set[r.Header.Get("Origin")]
		return ok
	}
}

// Run starts the gateway loops
func (s *WsServer) Run(ctx context.Context) {
	go s.eventLoop(ctx)

	workerNum := s.cfg.WebSocket.PushWorkerNum
	if workerNum <= 0 {
		workerNum = 10
	}
	for i := 0; i < workerNum; i++ {
		go s.pushLoop(ctx)
	}

	if s.relay != nil {
		go s.relay.Run(ctx)
	}

	log.Info().Int("push_workers", workerNum).Msg("gateway started")
}

// eventLoop handles client registration and unregistration
func (s *WsServer) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-s.registerChan:
			s.registerClient(ctx, client)
		case client := <-s.unregisterChan:
			s.unregisterClient(ctx, client)
		}
	}
}

// pushLoop handles async frame delivery
func (s *WsServer) pushLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.pushChan:
			s.processPushTask(task)
		}
	}
}

// processPushTask delivers one frame to every joined local connection,
// skipping the originating one
func (s *WsServer) processPushTask(task *PushTask) {
	for _, client := range s.roomMap.Clients(task.ConversationId) {
		if task.ExcludeConnId != "" && client.ConnId == task.ExcludeConnId {
			continue
		}
		if err := client.pushRaw(task.Data); err != nil {
			log.Debug().Err(err).
				Str("user_id", client.UserId).
				Str("conn_id", client.ConnId).
				Msg("push to client failed")
		}
	}
}

// BroadcastToConversation implements service.Broadcaster. The frame is
// encoded once, fanned out to local room members through the worker pool,
// and relayed to other instances over redis.
func (s *WsServer) BroadcastToConversation(ctx context.Context, conversationId, event string, payload interface{}, excludeConnId string) {
	data, err := EncodeFrame(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode broadcast frame failed")
		return
	}

	s.enqueueLocal(&PushTask{
		ConversationId: conversationId,
		Data:           data,
		ExcludeConnId:  excludeConnId,
	})

	if s.relay != nil {
		s.relay.Publish(ctx, conversationId, data, excludeConnId)
	}
}

// enqueueLocal queues a push task for the local workers
func (s *WsServer) enqueueLocal(task *PushTask) {
	select {
	case s.pushChan <- task:
	default:
		// Queue full; the dropped room resyncs from its cursor
		log.Warn().Str("conversation_id", task.ConversationId).Msg("push channel full, frame dropped")
	}
}

// registerClient registers a client
func (s *WsServer) registerClient(ctx context.Context, client *Client) {
	_, exists := s.userMap.GetAll(client.UserId)
	if !exists {
		s.onlineUserNum.Add(1)
	}

	s.userMap.Register(ctx, client)
	s.onlineConnNum.Add(1)

	log.Info().
		Str("user_id", client.UserId).
		Str("conn_id", client.ConnId).
		Int64("online_users", s.onlineUserNum.Load()).
		Int64("online_conns", s.onlineConnNum.Load()).
		Msg("client registered")
}

// unregisterClient unregisters a client and prunes its rooms
func (s *WsServer) unregisterClient(ctx context.Context, client *Client) {
	s.roomMap.LeaveAll(client)

	userOffline := s.userMap.Unregister(ctx, client)
	s.onlineConnNum.Add(-1)
	if userOffline {
		s.onlineUserNum.Add(-1)
	}

	log.Info().
		Str("user_id", client.UserId).
		Str("conn_id", client.ConnId).
		Bool("user_offline", userOffline).
		Int64("online_users", s.onlineUserNum.Load()).
		Int64("online_conns", s.onlineConnNum.Load()).
		Msg("client unregistered")
}

// UnregisterClient queues client for unregistration
func (s *WsServer) UnregisterClient(client *Client) {
	select {
	case s.unregisterChan <- client:
	default:
		log.Warn().Str("user_id", client.UserId).Msg("unregister channel full")
	}
}

// HandleConnection handles a new WebSocket connection over net/http
func (s *WsServer) HandleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	if s.onlineConnNum.Load() >= s.maxConnNum {
		http.Error(w, "connection limit exceeded", http.StatusServiceUnavailable)
		return
	}

	token := r.URL.Query().Get(QueryToken)
	if token == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	claims, err := jwt.ParseToken(token, s.cfg.JWT.Secret)
	if err != nil {
		log.Debug().Err(err).Msg("token validation failed")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	wsConn := NewWebSocketClientConn(conn, s.cfg.WebSocket.MaxMessageSize, s.cfg.WebSocket.WriteChannelSize, PongWait, PingPeriod)
	client := s.attachClient(ctx, wsConn, claims)
	client.Start()
}

// attachClient finishes the handshake shared by both transports: profile
// refresh, registration, and the connected greeting
func (s *WsServer) attachClient(ctx context.Context, conn ClientConn, claims *jwt.Claims) *Client {
	connId := newConnId()
	client := NewClient(conn, claims.UserId, claims.Username, connId, s)

	if s.profiles != nil {
		if err := s.profiles.RefreshOnConnect(ctx, claims.UserId, claims.Username); err != nil {
			log.Warn().Err(err).Str("user_id", claims.UserId).Msg("profile refresh failed")
		}
	}

	s.registerChan <- client

	if err := client.pushFrameObj(constant.EventConnected, &ConnectedPayload{
		UserId:     client.UserId,
		ConnId:     client.ConnId,
		ServerTime: entity.NowUnixMilli(),
		Features:   constant.ServerFeatures,
	}); err != nil {
		log.Debug().Err(err).Str("conn_id", connId).Msg("connected greeting failed")
	}

	return client
}

// newConnId returns a fresh connection identifier
func newConnId() string {
	return uuid.NewString()
}

// OnlineUserCount returns online user count
func (s *WsServer) OnlineUserCount() int64 {
	return s.onlineUserNum.Load()
}

// OnlineConnCount returns online connection count
func (s *WsServer) OnlineConnCount() int64 {
	return s.onlineConnNum.Load()
}
