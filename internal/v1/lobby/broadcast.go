package lobby

import (
	"context"
	"sort"

	"github.com/arcadeparty/backend/internal/v1/logging"
	"github.com/arcadeparty/backend/internal/v1/types"
	"go.uber.org/zap"
)

// listJoinable builds the public listing: rooms below capacity that have
// not ended, fullest first so clients see the rooms closest to starting.
func (h *Hub) listJoinable(ctx context.Context) []types.RoomSummary {
	rooms := h.Rooms()
	summaries := make([]types.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		if !r.Joinable() {
			continue
		}
		summaries = append(summaries, r.Summary(ctx))
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].PlayerCount != summaries[j].PlayerCount {
			return summaries[i].PlayerCount > summaries[j].PlayerCount
		}
		return summaries[i].Id < summaries[j].Id
	})
	return summaries
}

// ListJoinable is the exported listing for the HTTP surface. Same data the
// lobby channel sees.
func (h *Hub) ListJoinable(ctx context.Context) []types.RoomSummary {
	return h.listJoinable(ctx)
}

// broadcastAll fans one event out to every live connection, seated or not.
// Marshals once; sends never block.
func (h *Hub) broadcastAll(ctx context.Context, event string, payload any) {
	data, err := types.MarshalEvent(event, payload)
	if err != nil {
		logging.Error(ctx, "Failed to marshal broadcast event",
			zap.String("event", event),
			zap.Error(err))
		return
	}

	h.mu.Lock()
	clients := make([]types.ClientInterface, 0, len(h.connections))
	for _, client := range h.connections {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.SendRaw(data)
	}
}

// publishRoomList pushes the full listing to every connection still in the
// lobby. Seated clients don't render the list; they get deltas instead.
func (h *Hub) publishRoomList(ctx context.Context) {
	data, err := types.MarshalEvent(types.EventRoomList, types.RoomListEvent{Rooms: h.listJoinable(ctx)})
	if err != nil {
		logging.Error(ctx, "Failed to marshal room list", zap.Error(err))
		return
	}

	h.mu.Lock()
	clients := make([]types.ClientInterface, 0, len(h.lobby))
	for _, client := range h.lobby {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.SendRaw(data)
	}
}

// publishListDelta broadcasts one incremental listing change to every
// connection. summary is nil for deletions.
func (h *Hub) publishListDelta(ctx context.Context, id types.RoomIdType, action string, summary *types.RoomSummary) {
	h.broadcastAll(ctx, types.EventRoomListUpdated, types.RoomListUpdatedEvent{
		RoomId: id,
		Action: action,
		Room:   summary,
	})
}

// broadcastUserCount refreshes everyone's view of how many sockets are live.
func (h *Hub) broadcastUserCount(ctx context.Context) {
	h.broadcastAll(ctx, types.EventUserCountUpdate, types.UserCountUpdateEvent{Count: h.UserCount()})
}
