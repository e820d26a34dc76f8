package room

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/arcadeparty/backend/internal/v1/logging"
	"github.com/arcadeparty/backend/internal/v1/metrics"
	"github.com/arcadeparty/backend/internal/v1/types"
	"go.uber.org/zap"
)

// Admit adds or reconnects a profile and attaches its connection to the
// room channel. When creator is true the admission is the room's creation
// and the connection receives room-created before the join events.
func (r *Room) Admit(ctx context.Context, client types.ClientInterface, profileId types.ProfileIdType, displayName types.DisplayNameType, creator bool) (*AdmitResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == types.RoomStatusEnded {
		return nil, types.NewError(types.ErrNotFound, "Room no longer exists")
	}

	now := time.Now()
	result := &AdmitResult{}

	p, existing := r.byProfile[profileId]
	if existing {
		// Reconnect: same profile on a new socket. Score, readiness, and
		// the display name all survive; only the connection is replaced.
		result.Reconnected = true
		if p.connectionId != "" && p.connectionId != client.GetID() {
			if old, ok := r.attached[p.connectionId]; ok {
				delete(r.attached, p.connectionId)
				old.Disconnect()
			}
		}
		p.connectionId = client.GetID()
		p.lastActivity = now
	} else {
		if len(r.players) >= MaxPlayers {
			return nil, types.NewError(types.ErrConflict, "Room is full")
		}
		p = &player{
			profileId:    profileId,
			connectionId: client.GetID(),
			displayName:  displayName,
			lastActivity: now,
		}
		r.players = append(r.players, p)
		r.byProfile[profileId] = p
	}

	if r.isHostLocked(profileId) {
		result.HostReconnected = r.hostGraceTimer != nil && r.hostWasConnected
		r.cancelHostGraceLocked()
		r.hostConnectionId = client.GetID()
		r.hostDisplayName = p.displayName
		r.hostWasConnected = true
	}

	r.attached[client.GetID()] = client
	stragglers := r.reapStragglersLocked()
	r.touchLocked()
	metrics.RoomPlayers.WithLabelValues(string(r.Id)).Set(float64(len(r.players)))

	// Build the player list once and reuse it across the emissions below;
	// each build re-reads every member's appearance.
	players := r.playersLocked(ctx)

	if creator {
		client.SendEvent(types.EventRoomCreated, types.RoomCreatedEvent{
			RoomId:        r.Id,
			Players:       players,
			HostProfileId: r.hostProfileId,
		})
	}

	if result.HostReconnected {
		r.emitLocked(ctx, types.EventHostReconnected, types.HostReconnectedEvent{
			Message: "The host has reconnected",
		})
	}

	r.emitLocked(ctx, types.EventPlayerJoined, types.PlayerJoinedEvent{
		Players:       players,
		GameState:     r.status,
		IsHost:        r.isHostLocked(profileId),
		HostProfileId: r.hostProfileId,
		SelectedGame:  r.selectedGame,
		RoomId:        r.Id,
	})

	r.emitLocked(ctx, types.EventRoomSnapshot, types.RoomSnapshot{
		RoomId:        r.Id,
		HostProfileId: r.hostProfileId,
		Status:        r.status,
		SelectedGame:  r.selectedGame,
		Players:       players,
	})

	r.notifyReleased(stragglers)
	r.notifyChanged()

	logging.Info(ctx, "Player admitted",
		zap.String("room_id", string(r.Id)),
		zap.String("profile_id", string(profileId)),
		zap.Bool("reconnect", result.Reconnected),
		zap.Bool("host_reconnect", result.HostReconnected))

	return result, nil
}

// HandleDisconnect is the socket-loss path. The host gets the grace
// treatment; anyone else is removed like a leave.
func (r *Room) HandleDisconnect(ctx context.Context, client types.ClientInterface) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == types.RoomStatusEnded {
		return
	}

	connId := client.GetID()
	delete(r.attached, connId)

	p, ok := r.byProfile[client.GetProfileID()]
	if !ok || p.connectionId != connId {
		// A superseded connection; the member record now belongs to a
		// newer socket. Nothing to remove.
		return
	}

	reason := types.LeaveReasonDisconnected
	if r.isHostLocked(p.profileId) {
		reason = types.LeaveReasonGrace
	}

	r.leaveLocked(ctx, p, reason)
	if r.status != types.RoomStatusEnded {
		r.notifyChanged()
	}
}

// leaveLocked removes a member through the standard path. The final
// player-left and snapshot are emitted while the leaver is still attached,
// and only then is the leaver detached, so its client reconciles to a
// state in which it is absent. Returns the detached connection if it is
// still live.
func (r *Room) leaveLocked(ctx context.Context, p *player, reason string) types.ClientInterface {
	if r.isHostLocked(p.profileId) {
		if reason == types.LeaveReasonGrace {
			r.removeMemberLocked(p)
			r.hostConnectionId = ""
			r.armHostGraceLocked()
			r.touchLocked()

			r.emitLocked(ctx, types.EventHostDisconnected, types.HostDisconnectedEvent{
				Message:          "The host has disconnected. Waiting for them to reconnect...",
				ReconnectTimeout: int(HostGracePeriod.Seconds()),
			})
			r.emitSnapshotLocked(ctx)

			logging.Info(ctx, "Host disconnected, grace period armed",
				zap.String("room_id", string(r.Id)),
				zap.String("host_profile_id", string(p.profileId)))
			return nil
		}

		// An explicit host departure has no one to hand the room to.
		message := "The host left the room"
		if reason == types.LeaveReasonStale {
			message = "The host was removed after being inactive for too long"
		}
		r.closeLocked(ctx, types.CloseReasonHostLeft, message)
		return nil
	}

	connId := p.connectionId
	r.removeMemberLocked(p)
	r.touchLocked()

	r.emitLocked(ctx, types.EventPlayerLeft, types.PlayerLeftEvent{
		ProfileId: p.profileId,
		Players:   r.playersLocked(ctx),
		RoomId:    r.Id,
		Reason:    reason,
	})
	r.emitSnapshotLocked(ctx)

	var released types.ClientInterface
	if client, ok := r.attached[connId]; ok {
		delete(r.attached, connId)
		released = client
	}

	if len(r.players) == 0 && r.hostGraceTimer == nil {
		r.closeLocked(ctx, types.CloseReasonEmpty, "Room is empty")
	}
	return released
}

// Router dispatches one in-room event from an attached connection. Every
// failure becomes a targeted room-error; nothing is broadcast on failure.
func (r *Room) Router(ctx context.Context, client types.ClientInterface, msg *types.Message) {
	start := time.Now()

	err := r.route(ctx, client, msg)

	status := "ok"
	if err != nil {
		status = "error"
		sendError(client, err)
		logging.Warn(ctx, "Room event rejected",
			zap.String("room_id", string(r.Id)),
			zap.String("event", msg.Event),
			zap.String("profile_id", string(client.GetProfileID())),
			zap.Error(err))
	}

	metrics.WebsocketEvents.WithLabelValues(msg.Event, status).Inc()
	metrics.EventProcessingDuration.WithLabelValues(msg.Event).Observe(time.Since(start).Seconds())
}

func (r *Room) route(ctx context.Context, client types.ClientInterface, msg *types.Message) error {
	switch msg.Event {
	case types.EventLeaveRoom:
		return r.handleLeave(ctx, client)
	case types.EventKickPlayer:
		return r.handleKick(ctx, client, msg.Payload)
	case types.EventUpdatePlayerName:
		return r.handleUpdateName(ctx, client, msg.Payload)
	case types.EventPlayerReady:
		return r.handleReady(ctx, client, msg.Payload)
	case types.EventGameSelected:
		return r.handleSelectGame(ctx, client, msg.Payload)
	case types.EventStartGame:
		return r.handleStartGame(ctx, client)
	case types.EventRotatePlayers:
		return r.handleRotate(ctx, client, msg.Payload)
	case types.EventRequestRoomSnapshot:
		return r.handleSnapshotRequest(ctx, client)
	default:
		if types.IsGameEvent(msg.Event) {
			return r.relayGameEvent(ctx, client, msg)
		}
		logging.Warn(ctx, "Unknown event received",
			zap.String("room_id", string(r.Id)),
			zap.String("event", msg.Event))
		return nil
	}
}

func (r *Room) ensureOpenLocked() error {
	if r.status == types.RoomStatusEnded {
		return types.NewError(types.ErrNotFound, "Room no longer exists")
	}
	return nil
}

// requireMemberLocked resolves the sender to its member record and counts
// the event as activity.
func (r *Room) requireMemberLocked(client types.ClientInterface) (*player, error) {
	p, ok := r.byProfile[client.GetProfileID()]
	if !ok {
		return nil, types.NewError(types.ErrForbidden, "You are not a member of this room")
	}
	p.lastActivity = time.Now()
	return p, nil
}

func (r *Room) requireHostLocked(p *player, action string) error {
	if !r.isHostLocked(p.profileId) {
		return types.NewErrorf(types.ErrUnauthorized, "Only the host can %s", action)
	}
	return nil
}

func (r *Room) handleLeave(ctx context.Context, client types.ClientInterface) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureOpenLocked(); err != nil {
		return err
	}
	p, err := r.requireMemberLocked(client)
	if err != nil {
		return err
	}

	released := r.leaveLocked(ctx, p, types.LeaveReasonLeft)
	if released != nil {
		r.notifyReleased([]types.ClientInterface{released})
	}
	if r.status != types.RoomStatusEnded {
		r.notifyChanged()
	}
	return nil
}

func (r *Room) handleKick(ctx context.Context, client types.ClientInterface, payload json.RawMessage) error {
	var req types.KickPlayerRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return types.NewError(types.ErrInvalid, "Malformed kick-player payload")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureOpenLocked(); err != nil {
		return err
	}
	p, err := r.requireMemberLocked(client)
	if err != nil {
		return err
	}
	if err := r.requireHostLocked(p, "kick players"); err != nil {
		return err
	}
	if req.ProfileId == p.profileId {
		return types.NewError(types.ErrForbidden, "You cannot kick yourself")
	}

	target, ok := r.byProfile[req.ProfileId]
	if !ok {
		return types.NewError(types.ErrNotFound, "Player not found in room")
	}

	// The target gets a directed notice and is detached before the
	// departure is broadcast; it must not see the post-kick snapshot.
	var released []types.ClientInterface
	if targetClient, attached := r.attached[target.connectionId]; attached {
		targetClient.SendEvent(types.EventPlayerKicked, types.PlayerKickedEvent{
			RoomId:  r.Id,
			Message: "You were kicked from the room by the host",
		})
		delete(r.attached, target.connectionId)
		released = append(released, targetClient)
	}

	r.removeMemberLocked(target)
	r.touchLocked()

	r.emitLocked(ctx, types.EventPlayerLeft, types.PlayerLeftEvent{
		ProfileId: target.profileId,
		Players:   r.playersLocked(ctx),
		RoomId:    r.Id,
		Reason:    types.LeaveReasonKicked,
	})
	r.emitSnapshotLocked(ctx)

	logging.Info(ctx, "Player kicked",
		zap.String("room_id", string(r.Id)),
		zap.String("profile_id", string(target.profileId)),
		zap.String("by", string(p.profileId)))

	r.notifyReleased(released)
	r.notifyChanged()
	return nil
}

func (r *Room) handleUpdateName(ctx context.Context, client types.ClientInterface, payload json.RawMessage) error {
	var req types.UpdatePlayerNameRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return types.NewError(types.ErrInvalid, "Malformed update-player-name payload")
	}

	name := types.DisplayNameType(strings.TrimSpace(string(req.PlayerName)))
	if name == "" {
		return types.NewError(types.ErrInvalid, "Name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureOpenLocked(); err != nil {
		return err
	}
	p, err := r.requireMemberLocked(client)
	if err != nil {
		return err
	}

	p.displayName = name
	client.SetDisplayName(name)
	r.touchLocked()

	if r.isHostLocked(p.profileId) {
		r.hostDisplayName = name
		r.notifyChanged() // the lobby listing shows the host's name
	}

	r.emitSnapshotLocked(ctx)
	return nil
}

func (r *Room) handleReady(ctx context.Context, client types.ClientInterface, payload json.RawMessage) error {
	var req types.PlayerReadyRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return types.NewError(types.ErrInvalid, "Malformed player-ready payload")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureOpenLocked(); err != nil {
		return err
	}
	p, err := r.requireMemberLocked(client)
	if err != nil {
		return err
	}

	// Readiness may be declared before a game is selected; start-game
	// enforces its own preconditions.
	p.ready = req.Ready
	r.touchLocked()

	r.emitLocked(ctx, types.EventPlayersReadyUpdated, types.PlayersReadyUpdatedEvent{
		Players:       r.playersLocked(ctx),
		AllReady:      r.allReadyLocked(),
		HostProfileId: r.hostProfileId,
	})
	r.emitSnapshotLocked(ctx)
	return nil
}

func (r *Room) handleSelectGame(ctx context.Context, client types.ClientInterface, payload json.RawMessage) error {
	var req types.GameSelectedRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return types.NewError(types.ErrInvalid, "Malformed game-selected payload")
	}

	if !types.IsValidGame(req.Game) {
		return types.NewErrorf(types.ErrInvalid, "Unknown game %q", string(req.Game))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureOpenLocked(); err != nil {
		return err
	}
	p, err := r.requireMemberLocked(client)
	if err != nil {
		return err
	}
	if err := r.requireHostLocked(p, "select the game"); err != nil {
		return err
	}

	r.selectedGame = req.Game
	r.clearReadyLocked()
	statusChanged := false
	if r.status == types.RoomStatusPlaying {
		// Re-picking between rounds returns the room to the ready gate.
		r.status = types.RoomStatusWaiting
		statusChanged = true
	}
	r.touchLocked()

	r.emitLocked(ctx, types.EventGameSelected, types.GameSelectedEvent{
		Game:          r.selectedGame,
		Players:       r.playersLocked(ctx),
		HostProfileId: r.hostProfileId,
	})
	r.emitSnapshotLocked(ctx)

	if statusChanged {
		r.notifyChanged()
	}
	return nil
}

func (r *Room) handleStartGame(ctx context.Context, client types.ClientInterface) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureOpenLocked(); err != nil {
		return err
	}
	p, err := r.requireMemberLocked(client)
	if err != nil {
		return err
	}
	if err := r.requireHostLocked(p, "start the game"); err != nil {
		return err
	}

	if r.selectedGame == "" {
		return types.NewError(types.ErrConflict, "No game has been selected")
	}
	if len(r.players) < MinPlayersToStart {
		return types.NewErrorf(types.ErrConflict, "Need at least %d players to start", MinPlayersToStart)
	}
	if !r.allReadyLocked() {
		return types.NewError(types.ErrConflict, "All players must be ready to start")
	}

	statusChanged := r.status != types.RoomStatusPlaying
	r.status = types.RoomStatusPlaying
	r.clearReadyLocked() // next round starts from scratch
	r.touchLocked()

	r.emitLocked(ctx, types.EventGameStart, types.GameStartEvent{Game: r.selectedGame})
	r.emitSnapshotLocked(ctx)

	logging.Info(ctx, "Game started",
		zap.String("room_id", string(r.Id)),
		zap.String("game", string(r.selectedGame)))

	if statusChanged {
		r.notifyChanged()
	}
	return nil
}

func (r *Room) handleRotate(ctx context.Context, client types.ClientInterface, payload json.RawMessage) error {
	var req types.RotatePlayersRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return types.NewError(types.ErrInvalid, "Malformed rotate-players payload")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureOpenLocked(); err != nil {
		return err
	}
	p, err := r.requireMemberLocked(client)
	if err != nil {
		return err
	}
	if err := r.requireHostLocked(p, "rotate players"); err != nil {
		return err
	}

	if req.WinnerProfileId == req.LoserProfileId {
		return types.NewError(types.ErrInvalid, "Winner and loser must be different players")
	}
	winner, ok := r.byProfile[req.WinnerProfileId]
	if !ok {
		return types.NewError(types.ErrInvalid, "Winner is not a member of this room")
	}
	loser, ok := r.byProfile[req.LoserProfileId]
	if !ok {
		return types.NewError(types.ErrInvalid, "Loser is not a member of this room")
	}

	// Winner-stays rotation: the loser goes to the back of the queue and
	// everyone else keeps their relative order. Two players never swap
	// seats; they just play again.
	if len(r.players) > 2 {
		for i, cur := range r.players {
			if cur == loser {
				r.players = append(r.players[:i], r.players[i+1:]...)
				break
			}
		}
		r.players = append(r.players, loser)
	}

	winner.score++
	r.clearReadyLocked()
	r.touchLocked()

	r.emitLocked(ctx, types.EventPlayersRotated, types.PlayersRotatedEvent{
		WinnerProfileId: winner.profileId,
		LoserProfileId:  loser.profileId,
		Players:         r.playersLocked(ctx),
	})
	r.emitSnapshotLocked(ctx)
	return nil
}

func (r *Room) handleSnapshotRequest(ctx context.Context, client types.ClientInterface) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureOpenLocked(); err != nil {
		return err
	}
	if _, err := r.requireMemberLocked(client); err != nil {
		return err
	}

	r.sendSnapshotLocked(ctx, client)
	return nil
}

// relayGameEvent fans a per-game event out to the room verbatim.
// Participant events may come from any member; authoritative ones only
// from the host.
func (r *Room) relayGameEvent(ctx context.Context, client types.ClientInterface, msg *types.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureOpenLocked(); err != nil {
		return err
	}
	p, err := r.requireMemberLocked(client)
	if err != nil {
		return err
	}

	if types.IsAuthoritativeGameEvent(msg.Event) && !r.isHostLocked(p.profileId) {
		return types.NewErrorf(types.ErrUnauthorized, "Only the host can send %s", msg.Event)
	}

	data, err := types.MarshalEvent(msg.Event, msg.Payload)
	if err != nil {
		return types.NewError(types.ErrInvalid, "Malformed event payload")
	}

	r.touchLocked()
	r.broadcastRawLocked(data)
	return nil
}
