package gateway

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/parley-im/parley/internal/config"
	"github.com/parley-im/parley/internal/entity"
	"github.com/parley-im/parley/internal/service"
	"github.com/parley-im/parley/pkg/constant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn captures frames written to a connection
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *fakeConn) ReadMessage() ([]byte, error) { return nil, io.EOF }

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	c.frames = append(c.frames, buf)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(t time.Time) error { return nil }

// Frames decodes everything written so far
func (c *fakeConn) Frames(t *testing.T) []*Frame {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*Frame, 0, len(c.frames))
	for _, raw := range c.frames {
		frame, err := DecodeFrame(raw)
		require.NoError(t, err)
		out = append(out, frame)
	}
	return out
}

func (c *fakeConn) lastFrame(t *testing.T) *Frame {
	t.Helper()
	frames := c.Frames(t)
	require.NotEmpty(t, frames)
	return frames[len(frames)-1]
}

// fakeSender fakes the message service behind the gateway
type fakeSender struct {
	mu      sync.Mutex
	nextSeq int64
	sent    map[string]*entity.Message // clientMessageId -> stored message
	failErr error

	reactions []string // "add:msgId:emoji" / "remove:msgId:emoji"
}

func newFakeSender() *fakeSender {
	return &fakeSender{sent: make(map[string]*entity.Message)}
}

func (f *fakeSender) SendMessage(ctx context.Context, senderId string, req *service.SendMessageRequest) (*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failErr != nil {
		return nil, f.failErr
	}
	if existing, ok := f.sent[req.ClientMessageId]; ok {
		return existing, nil
	}

	f.nextSeq++
	msg := &entity.Message{
		Id:              req.ClientMessageId + "-srv",
		ConversationId:  req.ConversationId,
		SenderId:        senderId,
		Content:         req.Content,
		ClientMessageId: req.ClientMessageId,
		Seq:             f.nextSeq,
	}
	f.sent[req.ClientMessageId] = msg
	return msg, nil
}

func (f *fakeSender) AddReaction(ctx context.Context, userId, messageId, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.reactions = append(f.reactions, "add:"+messageId+":"+emoji)
	return nil
}

func (f *fakeSender) RemoveReaction(ctx context.Context, userId, messageId, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.reactions = append(f.reactions, "remove:"+messageId+":"+emoji)
	return nil
}

// fakeReadTracker records mark_read calls
type fakeReadTracker struct {
	mu   sync.Mutex
	reqs []*service.MarkReadRequest
	err  error
}

func (f *fakeReadTracker) MarkRead(ctx context.Context, userId string, req *service.MarkReadRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.reqs = append(f.reqs, req)
	return nil
}

// fakeSyncer returns a canned sync result
type fakeSyncer struct {
	result *service.SyncResult
	err    error
}

func (f *fakeSyncer) SyncMessages(ctx context.Context, userId string, req *service.SyncRequest) (*service.SyncResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

// fakeDirectory answers membership from a static table
type fakeDirectory struct {
	members map[string]map[string]bool // conversationId -> userId -> active
}

func (f *fakeDirectory) IsActiveParticipant(ctx context.Context, conversationId, userId string) (bool, error) {
	return f.members[conversationId][userId], nil
}

// fakeProfiles counts refresh calls
type fakeProfiles struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeProfiles) RefreshOnConnect(ctx context.Context, userId, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

type testEnv struct {
	server    *WsServer
	sender    *fakeSender
	reads     *fakeReadTracker
	syncer    *fakeSyncer
	directory *fakeDirectory
	profiles  *fakeProfiles
}

func newTestEnv() *testEnv {
	cfg := &config.Config{}
	cfg.Server.InstanceId = "test-instance"
	cfg.WebSocket.MaxConnNum = 100
	cfg.WebSocket.PushChannelSize = 64
	cfg.WebSocket.WriteChannelSize = 16

	env := &testEnv{
		sender:    newFakeSender(),
		reads:     &fakeReadTracker{},
		syncer:    &fakeSyncer{},
		directory: &fakeDirectory{members: make(map[string]map[string]bool)},
		profiles:  &fakeProfiles{},
	}
	env.server = NewWsServer(cfg, nil, env.sender, env.reads, env.syncer, env.directory, env.profiles)
	return env
}

func (e *testEnv) allow(conversationId, userId string) {
	if e.directory.members[conversationId] == nil {
		e.directory.members[conversationId] = make(map[string]bool)
	}
	e.directory.members[conversationId][userId] = true
}

// connect registers a client without running the async loops
func (e *testEnv) connect(userId, connId string) (*Client, *fakeConn) {
	fc := &fakeConn{}
	client := NewClient(fc, userId, userId+"-name", connId, e.server)
	e.server.registerClient(context.Background(), client)
	return client, fc
}

// drainPush delivers all queued broadcast frames synchronously
func (e *testEnv) drainPush() {
	for {
		select {
		case task := <-e.server.pushChan:
			e.server.processPushTask(task)
		default:
			return
		}
	}
}

func mustFrame(t *testing.T, event string, payload interface{}) []byte {
	t.Helper()
	raw, err := EncodeFrame(event, payload)
	require.NoError(t, err)
	return raw
}

func TestBroadcastReachesJoinedConnections(t *testing.T) {
	env := newTestEnv()
	env.allow("conv-1", "alice")
	env.allow("conv-1", "bob")

	alice, aliceConn := env.connect("alice", "conn-a")
	bob, bobConn := env.connect("bob", "conn-b")
	_, strangerConn := env.connect("carol", "conn-c")

	require.NoError(t, alice.handleFrame(mustFrame(t, constant.EventJoinConversation, &JoinConversationReq{ConversationId: "conv-1"})))
	require.NoError(t, bob.handleFrame(mustFrame(t, constant.EventJoinConversation, &JoinConversationReq{ConversationId: "conv-1"})))

	env.server.BroadcastToConversation(context.Background(), "conv-1", constant.EventMessageReceived,
		map[string]string{"hello": "world"}, "")
	env.drainPush()

	assert.Equal(t, constant.EventMessageReceived, aliceConn.lastFrame(t).Event)
	assert.Equal(t, constant.EventMessageReceived, bobConn.lastFrame(t).Event)
	assert.Empty(t, strangerConn.Frames(t))
}

func TestBroadcastExcludesOriginConnection(t *testing.T) {
	env := newTestEnv()
	env.allow("conv-1", "alice")
	env.allow("conv-1", "bob")

	alice, aliceConn := env.connect("alice", "conn-a")
	bob, bobConn := env.connect("bob", "conn-b")

	require.NoError(t, alice.handleFrame(mustFrame(t, constant.EventJoinConversation, &JoinConversationReq{ConversationId: "conv-1"})))
	require.NoError(t, bob.handleFrame(mustFrame(t, constant.EventJoinConversation, &JoinConversationReq{ConversationId: "conv-1"})))

	env.server.BroadcastToConversation(context.Background(), "conv-1", constant.EventMessageReceived,
		map[string]string{"x": "y"}, "conn-a")
	env.drainPush()

	assert.Empty(t, aliceConn.Frames(t))
	assert.Len(t, bobConn.Frames(t), 1)
}

func TestMultiDeviceUserGetsBroadcastOnEachConnection(t *testing.T) {
	env := newTestEnv()
	env.allow("conv-1", "alice")

	phone, phoneConn := env.connect("alice", "conn-phone")
	laptop, laptopConn := env.connect("alice", "conn-laptop")

	require.NoError(t, phone.handleFrame(mustFrame(t, constant.EventJoinConversation, &JoinConversationReq{ConversationId: "conv-1"})))
	require.NoError(t, laptop.handleFrame(mustFrame(t, constant.EventJoinConversation, &JoinConversationReq{ConversationId: "conv-1"})))

	env.server.BroadcastToConversation(context.Background(), "conv-1", constant.EventReadReceipt,
		map[string]string{"a": "b"}, "")
	env.drainPush()

	assert.Len(t, phoneConn.Frames(t), 1)
	assert.Len(t, laptopConn.Frames(t), 1)
}

func TestUnregisterPrunesRoomsAndCounts(t *testing.T) {
	env := newTestEnv()
	env.allow("conv-1", "alice")

	alice, _ := env.connect("alice", "conn-a")
	require.NoError(t, alice.handleFrame(mustFrame(t, constant.EventJoinConversation, &JoinConversationReq{ConversationId: "conv-1"})))
	require.Equal(t, 1, env.server.roomMap.RoomSize("conv-1"))
	require.Equal(t, int64(1), env.server.OnlineConnCount())

	env.server.unregisterClient(context.Background(), alice)

	assert.Equal(t, 0, env.server.roomMap.RoomCount())
	assert.Equal(t, int64(0), env.server.OnlineConnCount())
	assert.Equal(t, int64(0), env.server.OnlineUserCount())
}

func TestUnregisterOneDeviceKeepsUserOnline(t *testing.T) {
	env := newTestEnv()

	phone, _ := env.connect("alice", "conn-phone")
	env.connect("alice", "conn-laptop")
	require.Equal(t, int64(1), env.server.OnlineUserCount())
	require.Equal(t, int64(2), env.server.OnlineConnCount())

	env.server.unregisterClient(context.Background(), phone)

	assert.Equal(t, int64(1), env.server.OnlineUserCount())
	assert.Equal(t, int64(1), env.server.OnlineConnCount())
	assert.True(t, env.server.userMap.HasConnection("alice"))
}

func TestPushChannelOverflowDropsFrame(t *testing.T) {
	cfg := &config.Config{}
	cfg.WebSocket.MaxConnNum = 10
	cfg.WebSocket.PushChannelSize = 1

	sender := newFakeSender()
	s := NewWsServer(cfg, nil, sender, &fakeReadTracker{}, &fakeSyncer{}, &fakeDirectory{}, &fakeProfiles{})

	s.enqueueLocal(&PushTask{ConversationId: "conv-1", Data: []byte("{}")})
	// second enqueue must not block even with no worker draining
	s.enqueueLocal(&PushTask{ConversationId: "conv-1", Data: []byte("{}")})

	assert.Len(t, s.pushChan, 1)
}
