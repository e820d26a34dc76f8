package lobby

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/arcadeparty/backend/internal/v1/profile"
	"github.com/arcadeparty/backend/internal/v1/types"
)

// MockClient implements types.ClientInterface for testing. Sent envelopes
// are decoded and recorded in order.
type MockClient struct {
	ID types.ConnectionIdType

	mu           sync.Mutex
	profileId    types.ProfileIdType
	displayName  types.DisplayNameType
	sent         []types.Message
	disconnected bool
}

func newMockClient(connId string) *MockClient {
	return &MockClient{ID: types.ConnectionIdType(connId)}
}

func (m *MockClient) GetID() types.ConnectionIdType { return m.ID }

func (m *MockClient) GetProfileID() types.ProfileIdType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profileId
}

func (m *MockClient) SetProfileID(id types.ProfileIdType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profileId = id
}

func (m *MockClient) GetDisplayName() types.DisplayNameType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.displayName
}

func (m *MockClient) SetDisplayName(n types.DisplayNameType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.displayName = n
}

func (m *MockClient) SendEvent(event string, payload any) {
	data, err := types.MarshalEvent(event, payload)
	if err != nil {
		return
	}
	m.SendRaw(data)
}

func (m *MockClient) SendRaw(data []byte) {
	var msg types.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
}

func (m *MockClient) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnected = true
}

func (m *MockClient) IsDisconnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disconnected
}

// Events returns the names of everything sent, in order.
func (m *MockClient) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.sent))
	for i, msg := range m.sent {
		names[i] = msg.Event
	}
	return names
}

// CountEvent returns how many envelopes with this name were sent.
func (m *MockClient) CountEvent(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, msg := range m.sent {
		if msg.Event == event {
			n++
		}
	}
	return n
}

// LastEvent decodes the payload of the most recent envelope with this name
// into out. Returns false if none was sent.
func (m *MockClient) LastEvent(event string, out any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Event == event {
			if out != nil {
				_ = json.Unmarshal(m.sent[i].Payload, out)
			}
			return true
		}
	}
	return false
}

// Reset discards everything recorded so far.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

// mockDirectory implements ProfileDirectory from a fixed record table.
type mockDirectory struct {
	mu      sync.Mutex
	records map[types.ProfileIdType]*profile.Record
	err     error
	lookups int
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{records: make(map[types.ProfileIdType]*profile.Record)}
}

func (m *mockDirectory) add(id, name, color, emoji string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[types.ProfileIdType(id)] = &profile.Record{Id: id, Name: name, Color: color, Emoji: emoji}
}

// fail makes every lookup return err until cleared.
func (m *mockDirectory) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *mockDirectory) GetByID(ctx context.Context, id types.ProfileIdType) (*profile.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.err != nil {
		return nil, m.err
	}
	rec, ok := m.records[id]
	if !ok {
		return nil, types.NewError(types.ErrNotFound, "profile not found")
	}
	return rec, nil
}

func (m *mockDirectory) Appearance(ctx context.Context, id types.ProfileIdType) (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return types.DefaultColor, types.DefaultEmoji
	}
	color, emoji := rec.Color, rec.Emoji
	if color == "" {
		color = types.DefaultColor
	}
	if emoji == "" {
		emoji = types.DefaultEmoji
	}
	return color, emoji
}

// newTestHub builds a hub over a directory pre-seeded with a few profiles.
func newTestHub() (*Hub, *mockDirectory) {
	dir := newMockDirectory()
	dir.add("host-1", "Alice", "#FF0000", "🦊")
	dir.add("player-2", "Bob", "#00FF00", "🐙")
	dir.add("player-3", "Cara", "", "")
	dir.add("player-4", "Dan", "#0000FF", "🦀")
	dir.add("player-5", "Eve", "", "🐢")
	return NewHub(dir), dir
}

// connect registers a connection with the hub the way the transport would.
func connect(h *Hub, connId string) *MockClient {
	c := newMockClient(connId)
	h.HandleClientConnect(c)
	return c
}

// envelope builds an inbound message for Route tests.
func envelope(event string, payload any) *types.Message {
	msg := &types.Message{Event: event}
	if payload != nil {
		data, _ := json.Marshal(payload)
		msg.Payload = data
	}
	return msg
}

// createRoom drives the full create flow for a connected client and returns
// the room id it was seated in.
func createRoom(h *Hub, c *MockClient, profileId string) types.RoomIdType {
	h.Route(context.Background(), c, envelope(types.EventCreateRoom, types.CreateRoomRequest{
		ProfileId: types.ProfileIdType(profileId),
	}))
	var created types.RoomCreatedEvent
	if !c.LastEvent(types.EventRoomCreated, &created) {
		return ""
	}
	return created.RoomId
}

// joinRoom drives the full join flow for a connected client.
func joinRoom(h *Hub, c *MockClient, roomId types.RoomIdType, profileId string) {
	h.Route(context.Background(), c, envelope(types.EventJoinRoom, types.JoinRoomRequest{
		RoomId:    roomId,
		ProfileId: types.ProfileIdType(profileId),
	}))
}
