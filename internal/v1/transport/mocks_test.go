package transport

import (
	"context"
	"sync"
	"time"

	"github.com/arcadeparty/backend/internal/v1/types"
)

// MockConnection implements wsConnection with scriptable behavior.
type MockConnection struct {
	ReadMessageFunc  func() (int, []byte, error)
	WriteMessageFunc func(int, []byte) error
	CloseFunc        func() error

	mu     sync.Mutex
	closed bool
}

func (m *MockConnection) ReadMessage() (int, []byte, error) {
	if m.ReadMessageFunc != nil {
		return m.ReadMessageFunc()
	}
	return 0, nil, nil
}

func (m *MockConnection) WriteMessage(messageType int, data []byte) error {
	if m.WriteMessageFunc != nil {
		return m.WriteMessageFunc(messageType, data)
	}
	return nil
}

func (m *MockConnection) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockConnection) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockConnection) SetReadLimit(_ int64)                {}
func (m *MockConnection) SetReadDeadline(_ time.Time) error   { return nil }
func (m *MockConnection) SetWriteDeadline(_ time.Time) error  { return nil }
func (m *MockConnection) SetPongHandler(_ func(string) error) {}

// mockRouter implements types.ConnectionRouter, recording everything.
type mockRouter struct {
	mu          sync.Mutex
	routed      []types.Message
	connects    int
	disconnects int

	// onConnect, when set, runs inside HandleClientConnect with the new
	// client, like the hub greeting a fresh connection.
	onConnect func(client types.ClientInterface)
}

func (m *mockRouter) Route(_ context.Context, _ types.ClientInterface, msg *types.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routed = append(m.routed, *msg)
}

func (m *mockRouter) HandleClientConnect(client types.ClientInterface) {
	m.mu.Lock()
	m.connects++
	hook := m.onConnect
	m.mu.Unlock()
	if hook != nil {
		hook(client)
	}
}

func (m *mockRouter) HandleClientDisconnect(_ types.ClientInterface) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
}

func (m *mockRouter) routedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.routed)
}

func (m *mockRouter) lastRouted() (types.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.routed) == 0 {
		return types.Message{}, false
	}
	return m.routed[len(m.routed)-1], true
}

func (m *mockRouter) lifecycle() (connects, disconnects int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects, m.disconnects
}
