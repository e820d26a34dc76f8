// Package lobby owns everything outside a single room: the registry of live
// rooms, the reconciliation of connections and profiles onto rooms, the
// lobby pseudo-channel every roomless connection sits in, and the janitor.
package lobby

import (
	"context"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/arcadeparty/backend/internal/v1/logging"
	"github.com/arcadeparty/backend/internal/v1/metrics"
	"github.com/arcadeparty/backend/internal/v1/profile"
	"github.com/arcadeparty/backend/internal/v1/room"
	"github.com/arcadeparty/backend/internal/v1/types"
	"go.uber.org/zap"
)

// Room ids are six-digit numeric strings. An id that collides with a live
// room (or one still cooling off in the recently-ended set) is regenerated.
const (
	roomIdMin  = 100000
	roomIdSpan = 900000
)

// recentlyEndedTTL is how long an ended room's id stays filtered out of
// listings, so clients holding a stale list cannot resurrect it.
const recentlyEndedTTL = 30 * time.Second

// ProfileDirectory is the slice of the profile store the hub needs: identity
// resolution at join time and appearance reads for snapshots and listings.
type ProfileDirectory interface {
	types.AppearanceProvider
	GetByID(ctx context.Context, id types.ProfileIdType) (*profile.Record, error)
}

// Stats is a point-in-time census of the hub, consumed by the health and
// admin surfaces.
type Stats struct {
	ActiveRooms      int // rooms currently in the registry
	ActivePlayers    int // members across all rooms
	TotalRooms       int // cumulative rooms created since start
	TotalConnections int // live sockets, in rooms or the lobby
	RoomsWithClients int // rooms with at least one attached socket
}

// Hub is the room registry and membership reconciler. It is the only writer
// of room membership: every create, join, leave, kick, and disconnect flows
// through it, so the room invariants hold no matter which transport or
// janitor path triggered the change.
type Hub struct {
	mu            sync.Mutex
	rooms         map[types.RoomIdType]*room.Room
	recentlyEnded map[types.RoomIdType]time.Time
	connections   map[types.ConnectionIdType]types.ClientInterface
	lobby         map[types.ConnectionIdType]types.ClientInterface
	memberOf      map[types.ConnectionIdType]types.RoomIdType
	totalRooms    int

	profiles ProfileDirectory
}

// NewHub builds an empty hub. Callers that want periodic cleanup start
// RunJanitor on its own goroutine.
func NewHub(profiles ProfileDirectory) *Hub {
	return &Hub{
		rooms:         make(map[types.RoomIdType]*room.Room),
		recentlyEnded: make(map[types.RoomIdType]time.Time),
		connections:   make(map[types.ConnectionIdType]types.ClientInterface),
		lobby:         make(map[types.ConnectionIdType]types.ClientInterface),
		memberOf:      make(map[types.ConnectionIdType]types.RoomIdType),
		profiles:      profiles,
	}
}

// generateRoomIdLocked draws six-digit ids until one is free. The id space
// is ~900k against a handful of live rooms, so retries are rare.
func (h *Hub) generateRoomIdLocked() types.RoomIdType {
	for {
		id := types.RoomIdType(strconv.Itoa(roomIdMin + rand.Intn(roomIdSpan)))
		if _, live := h.rooms[id]; live {
			continue
		}
		if _, cooling := h.recentlyEnded[id]; cooling {
			continue
		}
		return id
	}
}

// registerRoom creates a room owned by hostProfileId, inserts it into the
// registry, and announces it to every connection. The room starts with its
// grace timer armed, so a shell the owner never claims expires on its own.
func (h *Hub) registerRoom(ctx context.Context, hostProfileId types.ProfileIdType, hostDisplayName types.DisplayNameType) *room.Room {
	h.mu.Lock()
	id := h.generateRoomIdLocked()
	r := room.NewRoom(id, hostProfileId, hostDisplayName, h.profiles, h.roomHooks())
	h.rooms[id] = r
	h.totalRooms++
	h.mu.Unlock()

	metrics.ActiveRooms.Inc()
	logging.Info(ctx, "Room created",
		zap.String("room_id", string(id)),
		zap.String("host_profile_id", string(hostProfileId)))

	summary := r.Summary(ctx)
	h.publishListDelta(ctx, id, types.RoomListActionCreated, &summary)
	h.publishRoomList(ctx)
	return r
}

// roomHooks wires a room's callbacks back into the hub. Rooms invoke these
// on fresh goroutines, so taking h.mu here is safe.
func (h *Hub) roomHooks() room.Hooks {
	return room.Hooks{
		OnChanged:  h.onRoomChanged,
		OnEnded:    h.onRoomEnded,
		OnReleased: h.onClientsReleased,
	}
}

// onRoomChanged republishes the lobby listing after any mutation that
// affects it (membership, status, host name).
func (h *Hub) onRoomChanged(r *room.Room) {
	ctx := context.Background()

	h.mu.Lock()
	_, live := h.rooms[r.Id]
	h.mu.Unlock()
	if !live {
		return // raced with the room's end; the deleted delta wins
	}

	summary := r.Summary(ctx)
	h.publishListDelta(ctx, r.Id, types.RoomListActionUpdated, &summary)
	h.publishRoomList(ctx)
}

// onRoomEnded removes a terminal room from the registry, remembers its id
// briefly, and tells every connection the room is gone.
func (h *Hub) onRoomEnded(r *room.Room, reason string) {
	h.mu.Lock()
	if _, ok := h.rooms[r.Id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.rooms, r.Id)
	h.recentlyEnded[r.Id] = time.Now()
	h.mu.Unlock()

	metrics.ActiveRooms.Dec()

	ctx := context.Background()
	logging.Info(ctx, "Room removed from registry",
		zap.String("room_id", string(r.Id)),
		zap.String("reason", reason))

	h.broadcastAll(ctx, types.EventRoomClosedBroadcast, types.RoomClosedBroadcastEvent{
		RoomId: r.Id,
		Reason: reason,
	})
	h.publishListDelta(ctx, r.Id, types.RoomListActionDeleted, nil)
	h.publishRoomList(ctx)
}

// onClientsReleased returns connections a room detached (leavers, kicked
// players, reaped stragglers, everyone on close) to the lobby channel. A
// connection that already joined another room, or whose socket has died,
// is skipped.
func (h *Hub) onClientsReleased(r *room.Room, clients []types.ClientInterface) {
	ctx := context.Background()

	var returned []types.ClientInterface
	h.mu.Lock()
	for _, client := range clients {
		connId := client.GetID()
		if _, alive := h.connections[connId]; !alive {
			continue
		}
		if current, ok := h.memberOf[connId]; !ok || current != r.Id {
			continue
		}
		delete(h.memberOf, connId)
		h.lobby[connId] = client
		returned = append(returned, client)
	}
	h.mu.Unlock()

	if len(returned) == 0 {
		return
	}

	// Fresh lobby arrivals need the current listing to render.
	rooms := h.listJoinable(ctx)
	for _, client := range returned {
		client.SendEvent(types.EventRoomList, types.RoomListEvent{Rooms: rooms})
	}
}

// getRoom looks a live room up by id.
func (h *Hub) getRoom(id types.RoomIdType) (*room.Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[id]
	return r, ok
}

// roomFor resolves the room a connection is currently attached to.
func (h *Hub) roomFor(client types.ClientInterface) (*room.Room, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.memberOf[client.GetID()]
	if !ok {
		return nil, false
	}
	r, ok := h.rooms[id]
	if !ok {
		// The room ended underneath the mapping; repair it.
		delete(h.memberOf, client.GetID())
		h.lobby[client.GetID()] = client
		return nil, false
	}
	return r, true
}

// moveToRoom switches a connection's channel bookkeeping from the lobby to
// a room. The room's attachment map is maintained by Room.Admit.
func (h *Hub) moveToRoom(client types.ClientInterface, id types.RoomIdType) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lobby, client.GetID())
	h.memberOf[client.GetID()] = id
}

// wasRecentlyEnded reports whether the id belongs to a room that ended
// within the cool-off window.
func (h *Hub) wasRecentlyEnded(id types.RoomIdType) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	endedAt, ok := h.recentlyEnded[id]
	return ok && time.Since(endedAt) < recentlyEndedTTL
}

// Rooms returns the live rooms in no particular order.
func (h *Hub) Rooms() []*room.Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*room.Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		out = append(out, r)
	}
	return out
}

// Room is the exported lookup for the HTTP surface.
func (h *Hub) Room(id types.RoomIdType) (*room.Room, bool) {
	return h.getRoom(id)
}

// Stats gathers the census consumed by /health and the admin endpoints.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	rooms := make([]*room.Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	s := Stats{
		ActiveRooms:      len(h.rooms),
		TotalRooms:       h.totalRooms,
		TotalConnections: len(h.connections),
	}
	h.mu.Unlock()

	for _, r := range rooms {
		s.ActivePlayers += r.PlayerCount()
		if r.AttachedCount() > 0 {
			s.RoomsWithClients++
		}
	}
	return s
}

// UserCount returns the number of live connections.
func (h *Hub) UserCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// CreateRoomShell creates a room owned by a profile with no connection
// attached, for the REST create endpoint. The owner has one grace window to
// claim it over the socket before it expires.
func (h *Hub) CreateRoomShell(ctx context.Context, hostProfileId types.ProfileIdType) (types.RoomIdType, error) {
	if hostProfileId == "" {
		return "", types.NewError(types.ErrInvalid, "profileId is required")
	}

	record, err := h.profiles.GetByID(ctx, hostProfileId)
	if err != nil {
		return "", err
	}

	r := h.registerRoom(ctx, hostProfileId, displayNameFor(record))
	return r.Id, nil
}

// CloseRoom force-ends a room. When requester is non-empty it must match
// the room's host; an empty requester is the admin override.
func (h *Hub) CloseRoom(ctx context.Context, id types.RoomIdType, requester types.ProfileIdType) error {
	r, ok := h.getRoom(id)
	if !ok {
		return types.NewError(types.ErrNotFound, "Room not found")
	}

	message := "The room was closed by an administrator"
	if requester != "" {
		if requester != r.HostProfileId() {
			return types.NewError(types.ErrUnauthorized, "Only the host can close this room")
		}
		message = "The room was closed by the host"
	}

	r.Close(ctx, types.CloseReasonAdminClosed, message)
	return nil
}

// Shutdown closes every room and releases every connection. Intended for
// process exit; the hub is not reusable afterwards.
func (h *Hub) Shutdown(ctx context.Context) {
	logging.Info(ctx, "Shutting down hub, closing all rooms")

	rooms := h.Rooms()
	for _, r := range rooms {
		r.Close(ctx, types.CloseReasonServerShutdown, "The server is shutting down")
	}

	h.mu.Lock()
	connections := make([]types.ClientInterface, 0, len(h.connections))
	for _, client := range h.connections {
		connections = append(connections, client)
	}
	h.mu.Unlock()

	for _, client := range connections {
		client.Disconnect()
	}

	logging.Info(ctx, "Hub shutdown complete",
		zap.Int("rooms_closed", len(rooms)),
		zap.Int("connections_dropped", len(connections)))
}

// displayNameFor derives the lobby display name from a store record. The
// store is authoritative; client-supplied names are never consulted here.
func displayNameFor(record *profile.Record) types.DisplayNameType {
	if record == nil || record.Name == "" {
		return "Player"
	}
	return types.DisplayNameType(record.Name)
}
