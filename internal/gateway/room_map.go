package gateway

import "sync"

// RoomMap tracks which connections have joined which conversation rooms.
// A room only exists while at least one local connection is in it; the
// relay carries events to rooms hosted on other instances.
type RoomMap struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*Client // conversationId -> connId -> client
}

// NewRoomMap creates a new RoomMap
func NewRoomMap() *RoomMap {
	return &RoomMap{
		rooms: make(map[string]map[string]*Client),
	}
}

// Join adds a client to a conversation room
func (m *RoomMap) Join(conversationId string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[conversationId]
	if !exists {
		room = make(map[string]*Client, 4)
		m.rooms[conversationId] = room
	}
	room[client.ConnId] = client
}

// Leave removes a client from a conversation room
func (m *RoomMap) Leave(conversationId string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(conversationId, client.ConnId)
}

// LeaveAll removes a client from every room it joined; called on disconnect
func (m *RoomMap) LeaveAll(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for conversationId := range client.Rooms() {
		m.leaveLocked(conversationId, client.ConnId)
	}
}

func (m *RoomMap) leaveLocked(conversationId, connId string) {
	room, exists := m.rooms[conversationId]
	if !exists {
		return
	}
	delete(room, connId)
	if len(room) == 0 {
		delete(m.rooms, conversationId)
	}
}

// Clients returns a snapshot of the clients in a room
func (m *RoomMap) Clients(conversationId string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, exists := m.rooms[conversationId]
	if !exists {
		return nil
	}
	clients := make([]*Client, 0, len(room))
	for _, c := range room {
		clients = append(clients, c)
	}
	return clients
}

// RoomCount returns the number of active local rooms
func (m *RoomMap) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// RoomSize returns the number of local connections in a room
func (m *RoomMap) RoomSize(conversationId string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[conversationId])
}
