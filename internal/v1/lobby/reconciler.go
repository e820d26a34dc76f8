package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/arcadeparty/backend/internal/v1/logging"
	"github.com/arcadeparty/backend/internal/v1/metrics"
	"github.com/arcadeparty/backend/internal/v1/types"
	"go.uber.org/zap"
)

// The hub implements types.ConnectionRouter: the transport hands it every
// inbound message and both lifecycle edges.

// HandleClientConnect registers a fresh connection into the lobby channel,
// greets it with the current listing, and refreshes the user count.
func (h *Hub) HandleClientConnect(client types.ClientInterface) {
	ctx := context.Background()

	h.mu.Lock()
	h.connections[client.GetID()] = client
	h.lobby[client.GetID()] = client
	total := len(h.connections)
	h.mu.Unlock()

	logging.Info(ctx, "Client connected",
		zap.String("connection_id", string(client.GetID())),
		zap.Int("total_connections", total))

	client.SendEvent(types.EventRoomList, types.RoomListEvent{Rooms: h.listJoinable(ctx)})
	h.broadcastUserCount(ctx)
}

// HandleClientDisconnect unregisters a connection. If it was seated in a
// room the room decides what the departure means (grace for the host,
// removal for anyone else).
func (h *Hub) HandleClientDisconnect(client types.ClientInterface) {
	ctx := context.Background()

	h.mu.Lock()
	if _, ok := h.connections[client.GetID()]; !ok {
		h.mu.Unlock()
		return // already unregistered
	}
	delete(h.connections, client.GetID())
	delete(h.lobby, client.GetID())
	roomId, inRoom := h.memberOf[client.GetID()]
	delete(h.memberOf, client.GetID())
	r := h.rooms[roomId]
	total := len(h.connections)
	h.mu.Unlock()

	if inRoom && r != nil {
		r.HandleDisconnect(ctx, client)
	}

	logging.Info(ctx, "Client disconnected",
		zap.String("connection_id", string(client.GetID())),
		zap.String("profile_id", string(client.GetProfileID())),
		zap.Int("total_connections", total))

	h.broadcastUserCount(ctx)
}

// Route dispatches one inbound message. Lobby-owned events are handled
// here; everything else goes to the sender's room, which does its own
// instrumentation and error targeting.
func (h *Hub) Route(ctx context.Context, client types.ClientInterface, msg *types.Message) {
	switch msg.Event {
	case types.EventCreateRoom, types.EventJoinRoom, types.EventRequestUserCount, types.EventTestMessage:
		h.routeLobby(ctx, client, msg)
	default:
		if r, ok := h.roomFor(client); ok {
			r.Router(ctx, client, msg)
			return
		}
		err := types.NewError(types.ErrForbidden, "You are not in a room")
		sendError(client, err)
		logging.Warn(ctx, "Event from roomless connection rejected",
			zap.String("connection_id", string(client.GetID())),
			zap.String("event", msg.Event))
		metrics.WebsocketEvents.WithLabelValues(msg.Event, "error").Inc()
	}
}

// routeLobby instruments and dispatches the hub-owned events. Failures
// become a targeted room-error, mirroring the in-room router.
func (h *Hub) routeLobby(ctx context.Context, client types.ClientInterface, msg *types.Message) {
	start := time.Now()

	var err error
	switch msg.Event {
	case types.EventCreateRoom:
		err = h.handleCreateRoom(ctx, client, msg.Payload)
	case types.EventJoinRoom:
		err = h.handleJoinRoom(ctx, client, msg.Payload)
	case types.EventRequestUserCount:
		client.SendEvent(types.EventUserCountUpdate, types.UserCountUpdateEvent{Count: h.UserCount()})
	case types.EventTestMessage:
		err = h.handleTestMessage(client, msg.Payload)
	}

	status := "ok"
	if err != nil {
		status = "error"
		sendError(client, err)
		logging.Warn(ctx, "Lobby event rejected",
			zap.String("connection_id", string(client.GetID())),
			zap.String("event", msg.Event),
			zap.Error(err))
	}

	metrics.WebsocketEvents.WithLabelValues(msg.Event, status).Inc()
	metrics.EventProcessingDuration.WithLabelValues(msg.Event).Observe(time.Since(start).Seconds())
}

// handleCreateRoom resolves the creator's profile, registers a room, and
// admits the creator as host. The client-supplied playerName is ignored;
// the store's record names the player.
func (h *Hub) handleCreateRoom(ctx context.Context, client types.ClientInterface, payload json.RawMessage) error {
	var req types.CreateRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return types.NewError(types.ErrInvalid, "Malformed create-room payload")
	}
	if req.ProfileId == "" {
		return types.NewError(types.ErrInvalid, "profileId is required")
	}
	if _, seated := h.roomFor(client); seated {
		return types.NewError(types.ErrConflict, "You are already in a room")
	}

	record, err := h.profiles.GetByID(ctx, req.ProfileId)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.NewError(types.ErrNotFound, "Profile not found")
		}
		return types.NewError(types.ErrUpstream, "Profile lookup failed")
	}

	name := displayNameFor(record)
	client.SetProfileID(req.ProfileId)
	client.SetDisplayName(name)

	r := h.registerRoom(ctx, req.ProfileId, name)
	h.moveToRoom(client, r.Id)
	if _, err := r.Admit(ctx, client, req.ProfileId, name, true); err != nil {
		h.returnToLobby(client)
		return err
	}
	return nil
}

// handleJoinRoom seats a connection in an existing room, covering both
// first joins and reconnects. Resolution order: profile, then room, then
// the one-room-at-a-time check; each failure names its own cause.
func (h *Hub) handleJoinRoom(ctx context.Context, client types.ClientInterface, payload json.RawMessage) error {
	var req types.JoinRoomRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return types.NewError(types.ErrInvalid, "Malformed join-room payload")
	}
	if req.RoomId == "" || req.ProfileId == "" {
		return types.NewError(types.ErrInvalid, "roomId and profileId are required")
	}

	record, err := h.profiles.GetByID(ctx, req.ProfileId)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return types.NewError(types.ErrNotFound, "Profile not found")
		}
		return types.NewError(types.ErrUpstream, "Profile lookup failed")
	}

	r, ok := h.getRoom(req.RoomId)
	if !ok {
		if h.wasRecentlyEnded(req.RoomId) {
			return types.NewError(types.ErrNotFound, "Room no longer exists")
		}
		return types.NewError(types.ErrNotFound, "Room not found")
	}

	// One room at a time. Re-joining the room this connection already sits
	// in as the same profile is an idempotent reconcile, not a conflict.
	if current, seated := h.roomFor(client); seated {
		if current.Id != req.RoomId || client.GetProfileID() != req.ProfileId {
			return types.NewError(types.ErrConflict, "You are already in a room")
		}
	}

	name := displayNameFor(record)
	client.SetProfileID(req.ProfileId)
	client.SetDisplayName(name)

	h.moveToRoom(client, r.Id)
	if _, err := r.Admit(ctx, client, req.ProfileId, name, false); err != nil {
		h.returnToLobby(client)
		return err
	}
	return nil
}

// handleTestMessage echoes the payload back so clients can verify the
// round trip end to end.
func (h *Hub) handleTestMessage(client types.ClientInterface, payload json.RawMessage) error {
	var echo any
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &echo); err != nil {
			return types.NewError(types.ErrInvalid, "Malformed test-message payload")
		}
	}
	client.SendEvent(types.EventTestResponse, echo)
	return nil
}

// returnToLobby undoes a moveToRoom after a failed admission.
func (h *Hub) returnToLobby(client types.ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, alive := h.connections[client.GetID()]; !alive {
		return
	}
	delete(h.memberOf, client.GetID())
	h.lobby[client.GetID()] = client
}

// sendError delivers a targeted room-error to one connection. Errors are
// never broadcast.
func sendError(client types.ClientInterface, err error) {
	client.SendEvent(types.EventRoomError, types.RoomErrorEvent{Message: err.Error()})
}
