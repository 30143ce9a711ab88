package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/parley-im/parley/pkg/constant"
	"github.com/redis/go-redis/v9"
)

// onlineTTL bounds how stale the distributed presence flag can get
const onlineTTL = 60 * time.Second

// UserMap manages user connections. A user may hold several concurrent
// connections (multiple devices or tabs).
type UserMap struct {
	mu    sync.RWMutex
	users map[string][]*Client // userId -> connections
	rdb   *redis.Client
}

// NewUserMap creates a new UserMap
func NewUserMap(rdb *redis.Client) *UserMap {
	return &UserMap{
		users: make(map[string][]*Client),
		rdb:   rdb,
	}
}

// Register registers a client
func (m *UserMap) Register(ctx context.Context, client *Client) {
	m.mu.Lock()
	m.users[client.UserId] = append(m.users[client.UserId], client)
	m.mu.Unlock()

	m.setOnline(ctx, client.UserId)
}

// Unregister removes one connection and reports whether the user went
// fully offline
func (m *UserMap) Unregister(ctx context.Context, client *Client) bool {
	m.mu.Lock()

	clients, exists := m.users[client.UserId]
	if !exists {
		m.mu.Unlock()
		return false
	}

	remaining := make([]*Client, 0, len(clients))
	for _, c := range clients {
		if c.ConnId != client.ConnId {
			remaining = append(remaining, c)
		}
	}

	if len(remaining) == 0 {
		delete(m.users, client.UserId)
		m.mu.Unlock()
		m.setOffline(ctx, client.UserId)
		return true
	}

	m.users[client.UserId] = remaining
	m.mu.Unlock()
	return false
}

// GetAll returns a snapshot of all connections for a user
func (m *UserMap) GetAll(userId string) ([]*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	clients, exists := m.users[userId]
	if !exists {
		return nil, false
	}

	snapshot := make([]*Client, len(clients))
	copy(snapshot, clients)
	return snapshot, true
}

// HasConnection checks if user has any local connection
func (m *UserMap) HasConnection(userId string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users[userId]) > 0
}

// OnlineUserCount returns the number of locally connected users
func (m *UserMap) OnlineUserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// OnlineConnCount returns the total number of local connections
func (m *UserMap) OnlineConnCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, clients := range m.users {
		count += len(clients)
	}
	return count
}

// IsOnline checks presence locally first, then redis so connections on
// other instances count
func (m *UserMap) IsOnline(ctx context.Context, userId string) bool {
	if m.HasConnection(userId) {
		return true
	}

	if m.rdb != nil {
		key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
		exists, _ := m.rdb.Exists(ctx, key).Result()
		return exists > 0
	}

	return false
}

// RefreshOnlineStatus extends the presence TTL while the user stays connected
func (m *UserMap) RefreshOnlineStatus(ctx context.Context, userId string) {
	if m.rdb == nil {
		return
	}

	if m.HasConnection(userId) {
		key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
		m.rdb.Expire(ctx, key, onlineTTL)
	}
}

func (m *UserMap) setOnline(ctx context.Context, userId string) {
	if m.rdb == nil {
		return
	}
	key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
	m.rdb.Set(ctx, key, "1", onlineTTL)
}

func (m *UserMap) setOffline(ctx context.Context, userId string) {
	if m.rdb == nil {
		return
	}
	key := fmt.Sprintf(constant.RedisKeyOnline(), userId)
	m.rdb.Del(ctx, key)
}
