package room

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/arcadeparty/backend/internal/v1/types"
)

// MockClient implements types.ClientInterface for testing. Sent envelopes
// are decoded and recorded in order.
type MockClient struct {
	ID          types.ConnectionIdType
	ProfileID   types.ProfileIdType
	DisplayName types.DisplayNameType

	mu           sync.Mutex
	sent         []types.Message
	disconnected bool
}

func newMockClient(connId, profileId, name string) *MockClient {
	return &MockClient{
		ID:          types.ConnectionIdType(connId),
		ProfileID:   types.ProfileIdType(profileId),
		DisplayName: types.DisplayNameType(name),
	}
}

func (m *MockClient) GetID() types.ConnectionIdType          { return m.ID }
func (m *MockClient) GetProfileID() types.ProfileIdType      { return m.ProfileID }
func (m *MockClient) SetProfileID(id types.ProfileIdType)    { m.ProfileID = id }
func (m *MockClient) GetDisplayName() types.DisplayNameType  { return m.DisplayName }
func (m *MockClient) SetDisplayName(n types.DisplayNameType) { m.DisplayName = n }

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

// MockAppearance implements types.AppearanceProvider with a fixed table,
// falling back to the defaults for unknown profiles.
type MockAppearance struct {
	mu     sync.Mutex
	colors map[types.ProfileIdType]string
	emojis map[types.ProfileIdType]string
	calls  int
}

func newMockAppearance() *MockAppearance {
	return &MockAppearance{
		colors: make(map[types.ProfileIdType]string),
		emojis: make(map[types.ProfileIdType]string),
	}
}

func (m *MockAppearance) Set(id types.ProfileIdType, color, emoji string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.colors[id] = color
	m.emojis[id] = emoji
}

func (m *MockAppearance) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockAppearance) Appearance(ctx context.Context, id types.ProfileIdType) (string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	color, ok := m.colors[id]
	if !ok {
		color = types.DefaultColor
	}
	emoji, ok := m.emojis[id]
	if !ok {
		emoji = types.DefaultEmoji
	}
	return color, emoji
}

// hookRecorder captures registry hook invocations. Hooks run on their own
// goroutines, so everything here is mutex-guarded; tests that need to wait
// for the terminal hook read from endedCh.
type hookRecorder struct {
	mu       sync.Mutex
	changed  int
	ended    []string
	released []types.ClientInterface
	endedCh  chan string
}

func newHookRecorder() *hookRecorder {
	return &hookRecorder{endedCh: make(chan string, 8)}
}

func (h *hookRecorder) hooks() Hooks {
	return Hooks{
		OnChanged: func(r *Room) {
			h.mu.Lock()
			h.changed++
			h.mu.Unlock()
		},
		OnEnded: func(r *Room, reason string) {
			h.mu.Lock()
			h.ended = append(h.ended, reason)
			h.mu.Unlock()
			h.endedCh <- reason
		},
		OnReleased: func(r *Room, clients []types.ClientInterface) {
			h.mu.Lock()
			h.released = append(h.released, clients...)
			h.mu.Unlock()
		},
	}
}

func (h *hookRecorder) endedReasons() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.ended...)
}

func (h *hookRecorder) releasedClients() []types.ClientInterface {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.ClientInterface(nil), h.released...)
}

// newTestRoom builds a room with a recording hook set and a mock appearance
// table.
func newTestRoom(id, hostProfileId string) (*Room, *hookRecorder, *MockAppearance) {
	hooks := newHookRecorder()
	appearance := newMockAppearance()
	r := NewRoom(types.RoomIdType(id), types.ProfileIdType(hostProfileId), "Host", appearance, hooks.hooks())
	return r, hooks, appearance
}

// admitHost claims the fresh room for its designated host.
func admitHost(r *Room, hostProfileId string) *MockClient {
	host := newMockClient("conn-"+hostProfileId, hostProfileId, "Host")
	_, _ = r.Admit(context.Background(), host, host.ProfileID, host.DisplayName, true)
	return host
}

// admitMember joins an additional member.
func admitMember(r *Room, profileId, name string) *MockClient {
	c := newMockClient("conn-"+profileId, profileId, name)
	_, _ = r.Admit(context.Background(), c, c.ProfileID, c.DisplayName, false)
	return c
}

// routerMsg builds an inbound envelope for Router tests.
func routerMsg(event string, payload any) *types.Message {
	msg := &types.Message{Event: event}
	if payload != nil {
		data, _ := json.Marshal(payload)
		msg.Payload = data
	}
	return msg
}
