package room

import (
	"context"
	"fmt"
	"testing"

	"github.com/arcadeparty/backend/internal/v1/types"
)

// benchClient discards outbound bytes so the benchmark measures room-side
// work, not the recorder.
type benchClient struct {
	*MockClient
}

func (b *benchClient) SendRaw(data []byte) {
	_ = len(data)
}

func (b *benchClient) SendEvent(event string, payload any) {
	data, _ := types.MarshalEvent(event, payload)
	b.SendRaw(data)
}

func newBenchRoom(b *testing.B) (*Room, []*benchClient) {
	r := NewRoom("900001", "bench-0", "Player 0", newMockAppearance(), Hooks{})
	clients := make([]*benchClient, 0, MaxPlayers)
	for i := 0; i < MaxPlayers; i++ {
		c := &benchClient{MockClient: newMockClient(
			fmt.Sprintf("conn-%d", i),
			fmt.Sprintf("bench-%d", i),
			fmt.Sprintf("Player %d", i),
		)}
		_, err := r.Admit(context.Background(), c, c.ProfileID, c.DisplayName, i == 0)
		if err != nil {
			b.Fatalf("admit failed: %v", err)
		}
		clients = append(clients, c)
	}
	return r, clients
}

func BenchmarkSnapshotBroadcast(b *testing.B) {
	r, _ := newBenchRoom(b)
	ctx := context.Background()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		r.mu.Lock()
		r.emitSnapshotLocked(ctx)
		r.mu.Unlock()
	}
}

func BenchmarkGameEventRelay(b *testing.B) {
	r, clients := newBenchRoom(b)
	ctx := context.Background()
	msg := routerMsg(types.EventPaddleMove, map[string]any{"y": 120, "profileId": "bench-1"})

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		r.Router(ctx, clients[1], msg)
	}
}
