package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func roomTestClient(connId string) *Client {
	return &Client{ConnId: connId, rooms: make(map[string]struct{})}
}

func TestRoomMapJoinLeave(t *testing.T) {
	m := NewRoomMap()
	a := roomTestClient("conn-a")
	b := roomTestClient("conn-b")

	m.Join("conv-1", a)
	m.Join("conv-1", b)
	assert.Equal(t, 2, m.RoomSize("conv-1"))
	assert.Len(t, m.Clients("conv-1"), 2)

	m.Leave("conv-1", a)
	assert.Equal(t, 1, m.RoomSize("conv-1"))

	// last member out tears the room down
	m.Leave("conv-1", b)
	assert.Equal(t, 0, m.RoomCount())
	assert.Nil(t, m.Clients("conv-1"))
}

func TestRoomMapJoinIsIdempotentPerConn(t *testing.T) {
	m := NewRoomMap()
	a := roomTestClient("conn-a")

	m.Join("conv-1", a)
	m.Join("conv-1", a)
	assert.Equal(t, 1, m.RoomSize("conv-1"))
}

func TestRoomMapLeaveAll(t *testing.T) {
	m := NewRoomMap()
	a := roomTestClient("conn-a")
	a.addRoom("conv-1")
	a.addRoom("conv-2")
	m.Join("conv-1", a)
	m.Join("conv-2", a)

	b := roomTestClient("conn-b")
	b.addRoom("conv-1")
	m.Join("conv-1", b)

	m.LeaveAll(a)

	assert.Equal(t, 1, m.RoomCount())
	assert.Equal(t, 1, m.RoomSize("conv-1"))
	assert.Equal(t, 0, m.RoomSize("conv-2"))
}

func TestRoomMapLeaveUnknownRoom(t *testing.T) {
	m := NewRoomMap()
	a := roomTestClient("conn-a")

	// must not panic or create the room
	m.Leave("conv-x", a)
	assert.Equal(t, 0, m.RoomCount())
}
