// Package room owns the lifecycle of one game room: membership keyed by
// profile id, the host authority model, the ready/select/start state
// machine, and the canonical snapshot fan-out every mutation emits.
package room

import (
	"context"
	"sync"
	"time"

	"github.com/arcadeparty/backend/internal/v1/logging"
	"github.com/arcadeparty/backend/internal/v1/metrics"
	"github.com/arcadeparty/backend/internal/v1/types"
	"go.uber.org/zap"
)

const (
	// MaxPlayers is the membership capacity of every room.
	MaxPlayers = 4

	// MinPlayersToStart is the minimum membership for start-game.
	MinPlayersToStart = 2

	// HostGracePeriod is how long a room survives without its host before
	// it is closed. Covers browser reloads and short network drops.
	HostGracePeriod = 60 * time.Second
)

// player is one member record. Identity is the profile id; the connection
// id is a cache of the socket currently speaking for that profile.
type player struct {
	profileId    types.ProfileIdType
	connectionId types.ConnectionIdType
	displayName  types.DisplayNameType
	score        int
	ready        bool
	lastActivity time.Time
}

// AdmitResult reports how an admission resolved.
type AdmitResult struct {
	// Reconnected is true when the profile was already a member and only
	// its connection was replaced.
	Reconnected bool
	// HostReconnected is true when the admission disarmed an armed host
	// grace timer.
	HostReconnected bool
}

// Hooks are the room's callbacks into its registry. All of them are
// invoked on fresh goroutines so the registry can take its own locks.
type Hooks struct {
	// OnChanged fires after a mutation that affects the room's lobby
	// listing (membership, status, host name).
	OnChanged func(r *Room)
	// OnEnded fires exactly once when the room reaches its terminal state.
	OnEnded func(r *Room, reason string)
	// OnReleased fires with connections that were detached from the room
	// but are still alive, so they can be returned to the lobby.
	OnReleased func(r *Room, clients []types.ClientInterface)
}

// Room is an authoritative game room. All mutations hold r.mu; methods
// with the Locked suffix expect the caller to hold it already.
type Room struct {
	Id types.RoomIdType

	mu sync.RWMutex

	status       types.RoomStatusType
	selectedGame types.GameType

	hostProfileId    types.ProfileIdType
	hostConnectionId types.ConnectionIdType
	hostDisplayName  types.DisplayNameType
	hostWasConnected bool // distinguishes a claim of a fresh room from a true host return

	players   []*player // insertion order, rotation depends on it
	byProfile map[types.ProfileIdType]*player

	// attached is every connection currently receiving this room's
	// broadcasts. Distinct from membership: a connection can linger here
	// briefly after its member record is superseded, until it is reaped.
	attached map[types.ConnectionIdType]types.ClientInterface

	appearance types.AppearanceProvider
	hooks      Hooks

	hostGraceTimer *time.Timer
	graceSeq       int // incremented on every arm/disarm so stale timers no-op

	createdAt      time.Time
	lastActivityAt time.Time
}

// NewRoom creates a Waiting room owned by hostProfileId. The host is not
// yet a member; the grace timer is armed so an unclaimed room expires like
// a host that never returned.
func NewRoom(id types.RoomIdType, hostProfileId types.ProfileIdType, hostDisplayName types.DisplayNameType, appearance types.AppearanceProvider, hooks Hooks) *Room {
	now := time.Now()
	r := &Room{
		Id:              id,
		status:          types.RoomStatusWaiting,
		hostProfileId:   hostProfileId,
		hostDisplayName: hostDisplayName,
		byProfile:       make(map[types.ProfileIdType]*player),
		attached:        make(map[types.ConnectionIdType]types.ClientInterface),
		appearance:      appearance,
		hooks:           hooks,
		createdAt:       now,
		lastActivityAt:  now,
	}

	r.mu.Lock()
	r.armHostGraceLocked()
	r.mu.Unlock()

	return r
}

// GetID returns the room id.
func (r *Room) GetID() types.RoomIdType {
	return r.Id
}

// Status returns the room's lifecycle status.
func (r *Room) Status() types.RoomStatusType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// SelectedGame returns the currently selected game, if any.
func (r *Room) SelectedGame() types.GameType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selectedGame
}

// HostProfileId returns the owning profile id.
func (r *Room) HostProfileId() types.ProfileIdType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hostProfileId
}

// PlayerCount returns the current membership size.
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// IsEmpty reports whether the room has no members.
func (r *Room) IsEmpty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players) == 0
}

// GraceArmed reports whether the host grace timer is currently armed.
func (r *Room) GraceArmed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hostGraceTimer != nil
}

// CreatedAt returns the room's creation time.
func (r *Room) CreatedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.createdAt
}

// LastActivity returns the time of the room's most recent mutation or
// relayed event.
func (r *Room) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivityAt
}

// IsMember reports whether the profile currently holds a member record.
func (r *Room) IsMember(id types.ProfileIdType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byProfile[id]
	return ok
}

// Joinable reports whether the room should appear in the public listing:
// not ended and below capacity.
func (r *Room) Joinable() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status != types.RoomStatusEnded && len(r.players) < MaxPlayers
}

// Summary builds the lobby listing entry for this room. The host emoji is
// read through the appearance provider, which caches.
func (r *Room) Summary(ctx context.Context) types.RoomSummary {
	r.mu.RLock()
	id := r.Id
	host := r.hostProfileId
	hostName := r.hostDisplayName
	count := len(r.players)
	status := r.status
	r.mu.RUnlock()

	_, emoji := r.appearance.Appearance(ctx, host)
	return types.RoomSummary{
		Id:              id,
		HostDisplayName: hostName,
		HostEmoji:       emoji,
		PlayerCount:     count,
		MaxPlayers:      MaxPlayers,
		Status:          status,
	}
}

// Snapshot builds the canonical room snapshot for a read-only caller (the
// HTTP surface). Appearance is re-read per member, same as a broadcast.
func (r *Room) Snapshot(ctx context.Context) types.RoomSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buildSnapshotLocked(ctx)
}

// AttachedCount returns how many connections currently receive this room's
// broadcasts.
func (r *Room) AttachedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.attached)
}

// Details builds the admin view of this room.
func (r *Room) Details() types.RoomDetails {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return types.RoomDetails{
		Id:             r.Id,
		HostProfileId:  r.hostProfileId,
		Status:         r.status,
		SelectedGame:   r.selectedGame,
		PlayerCount:    len(r.players),
		MaxPlayers:     MaxPlayers,
		GraceArmed:     r.hostGraceTimer != nil,
		CreatedAt:      r.createdAt,
		LastActivityAt: r.lastActivityAt,
	}
}

// touchLocked records activity on the room as a whole.
func (r *Room) touchLocked() {
	r.lastActivityAt = time.Now()
}

// memberLocked resolves a profile to its member record.
func (r *Room) memberLocked(id types.ProfileIdType) (*player, bool) {
	p, ok := r.byProfile[id]
	return p, ok
}

// isHost reports whether the profile is the room owner.
func (r *Room) isHostLocked(id types.ProfileIdType) bool {
	return id != "" && id == r.hostProfileId
}

// allReadyLocked reports whether every current member has declared ready.
func (r *Room) allReadyLocked() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !p.ready {
			return false
		}
	}
	return true
}

// clearReadyLocked resets every member's ready flag.
func (r *Room) clearReadyLocked() {
	for _, p := range r.players {
		p.ready = false
	}
}

// removeMemberLocked deletes the member record. It does not touch the
// attachment map, timers, or emit anything; callers sequence those.
func (r *Room) removeMemberLocked(p *player) {
	delete(r.byProfile, p.profileId)
	for i, cur := range r.players {
		if cur == p {
			r.players = append(r.players[:i], r.players[i+1:]...)
			break
		}
	}

	if len(r.players) > 0 {
		metrics.RoomPlayers.WithLabelValues(string(r.Id)).Set(float64(len(r.players)))
	} else {
		metrics.RoomPlayers.DeleteLabelValues(string(r.Id))
	}
}

// --- Host grace timer ---

func (r *Room) armHostGraceLocked() {
	r.graceSeq++
	seq := r.graceSeq
	if r.hostGraceTimer != nil {
		r.hostGraceTimer.Stop()
	}
	r.hostGraceTimer = time.AfterFunc(HostGracePeriod, func() {
		r.hostGraceExpired(seq)
	})
}

func (r *Room) cancelHostGraceLocked() {
	r.graceSeq++
	if r.hostGraceTimer != nil {
		r.hostGraceTimer.Stop()
		r.hostGraceTimer = nil
	}
}

// hostGraceExpired runs on the timer goroutine. The sequence check makes
// a timer that lost a race with cancel or re-arm a no-op.
func (r *Room) hostGraceExpired(seq int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if seq != r.graceSeq || r.status == types.RoomStatusEnded {
		return
	}

	logging.Info(context.Background(), "Host grace expired, closing room",
		zap.String("room_id", string(r.Id)),
		zap.String("host_profile_id", string(r.hostProfileId)))
	r.closeLocked(context.Background(), types.CloseReasonHostTimeout, "Host did not reconnect in time")
}

// --- Broadcast plumbing ---

// broadcastRawLocked queues data on every attached connection. Sends are
// non-blocking (each client drops on a full buffer), so holding the room
// lock here cannot stall on a slow receiver.
func (r *Room) broadcastRawLocked(data []byte) {
	for _, client := range r.attached {
		client.SendRaw(data)
	}
}

// emitLocked marshals an event once and fans it out to the room.
func (r *Room) emitLocked(ctx context.Context, event string, payload any) {
	data, err := types.MarshalEvent(event, payload)
	if err != nil {
		logging.Error(ctx, "Failed to marshal broadcast event",
			zap.String("room_id", string(r.Id)),
			zap.String("event", event),
			zap.Error(err))
		return
	}
	r.broadcastRawLocked(data)
}

// playersLocked builds the snapshot player list in membership order,
// re-reading each member's appearance from the profile store. Only color
// and emoji come from the store; everything else is room state.
func (r *Room) playersLocked(ctx context.Context) []types.PlayerSnapshot {
	players := make([]types.PlayerSnapshot, 0, len(r.players))
	for _, p := range r.players {
		color, emoji := r.appearance.Appearance(ctx, p.profileId)
		players = append(players, types.PlayerSnapshot{
			ProfileId:    p.profileId,
			ConnectionId: p.connectionId,
			DisplayName:  p.displayName,
			Score:        p.score,
			Ready:        p.ready,
			Color:        color,
			Emoji:        emoji,
		})
	}
	return players
}

// buildSnapshotLocked assembles the canonical room snapshot.
func (r *Room) buildSnapshotLocked(ctx context.Context) types.RoomSnapshot {
	timer := time.Now()
	snap := types.RoomSnapshot{
		RoomId:        r.Id,
		HostProfileId: r.hostProfileId,
		Status:        r.status,
		SelectedGame:  r.selectedGame,
		Players:       r.playersLocked(ctx),
	}
	metrics.SnapshotBuildDuration.Observe(time.Since(timer).Seconds())
	return snap
}

// emitSnapshotLocked broadcasts the canonical snapshot. Every mutation
// ends with one of these so clients reconcile to the same state.
func (r *Room) emitSnapshotLocked(ctx context.Context) {
	r.emitLocked(ctx, types.EventRoomSnapshot, r.buildSnapshotLocked(ctx))
}

// sendSnapshotLocked sends the canonical snapshot to one connection.
func (r *Room) sendSnapshotLocked(ctx context.Context, client types.ClientInterface) {
	client.SendEvent(types.EventRoomSnapshot, r.buildSnapshotLocked(ctx))
}

// sendError delivers a targeted room-error to one connection. Errors are
// never broadcast.
func sendError(client types.ClientInterface, err error) {
	client.SendEvent(types.EventRoomError, types.RoomErrorEvent{Message: err.Error()})
}

// --- Hook dispatch ---

func (r *Room) notifyChanged() {
	if r.hooks.OnChanged != nil {
		go r.hooks.OnChanged(r)
	}
}

func (r *Room) notifyEnded(reason string) {
	if r.hooks.OnEnded != nil {
		go r.hooks.OnEnded(r, reason)
	}
}

func (r *Room) notifyReleased(clients []types.ClientInterface) {
	if len(clients) == 0 || r.hooks.OnReleased == nil {
		return
	}
	go r.hooks.OnReleased(r, clients)
}

// --- Close ---

// Close force-ends the room with a reason and a human-readable message.
func (r *Room) Close(ctx context.Context, reason, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked(ctx, reason, message)
}

// closeLocked transitions to Ended, notifies and detaches every attached
// connection, cancels timers, and fires the terminal hooks. Idempotent.
func (r *Room) closeLocked(ctx context.Context, reason, message string) {
	if r.status == types.RoomStatusEnded {
		return
	}

	logging.Info(ctx, "Closing room",
		zap.String("room_id", string(r.Id)),
		zap.String("reason", reason))

	r.status = types.RoomStatusEnded
	r.cancelHostGraceLocked()

	r.emitLocked(ctx, types.EventRoomClosed, types.RoomClosedEvent{
		Reason:  reason,
		Message: message,
	})

	released := make([]types.ClientInterface, 0, len(r.attached))
	for _, client := range r.attached {
		released = append(released, client)
	}
	r.attached = make(map[types.ConnectionIdType]types.ClientInterface)

	r.players = nil
	r.byProfile = make(map[types.ProfileIdType]*player)
	r.hostConnectionId = ""
	r.hostProfileId = ""

	metrics.RoomPlayers.DeleteLabelValues(string(r.Id))
	metrics.RoomCleanups.WithLabelValues(reason).Inc()

	r.notifyReleased(released)
	r.notifyEnded(reason)
}

// --- Straggler reaping ---

// reapStragglersLocked detaches connections that no longer correspond to
// a live member. Returns the detached clients so they can be re-lobbied.
func (r *Room) reapStragglersLocked() []types.ClientInterface {
	live := make(map[types.ConnectionIdType]struct{}, len(r.players))
	for _, p := range r.players {
		if p.connectionId != "" {
			live[p.connectionId] = struct{}{}
		}
	}

	var reaped []types.ClientInterface
	for id, client := range r.attached {
		if _, ok := live[id]; !ok {
			delete(r.attached, id)
			reaped = append(reaped, client)
		}
	}

	if len(reaped) > 0 {
		logging.Info(context.Background(), "Reaped straggler connections",
			zap.String("room_id", string(r.Id)),
			zap.Int("count", len(reaped)))
	}
	return reaped
}

// ReapOrphans detaches connections that are attached but not members and
// returns them for re-lobbying. Called by the janitor.
func (r *Room) ReapOrphans(ctx context.Context) []types.ClientInterface {
	r.mu.Lock()
	defer r.mu.Unlock()
	reaped := r.reapStragglersLocked()
	r.notifyReleased(reaped)
	return reaped
}

// CleanupStale removes members whose last activity is older than maxAge
// through the standard removal path. Returns how many were removed.
func (r *Room) CleanupStale(ctx context.Context, maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == types.RoomStatusEnded {
		return 0
	}

	cutoff := time.Now().Add(-maxAge)
	var stale []*player
	for _, p := range r.players {
		if p.lastActivity.Before(cutoff) {
			stale = append(stale, p)
		}
	}

	removed := 0
	var released []types.ClientInterface
	for _, p := range stale {
		logging.Info(ctx, "Removing stale member",
			zap.String("room_id", string(r.Id)),
			zap.String("profile_id", string(p.profileId)))
		if client := r.leaveLocked(ctx, p, types.LeaveReasonStale); client != nil {
			released = append(released, client)
		}
		removed++
		if r.status == types.RoomStatusEnded {
			break // removal ended the room
		}
	}

	r.notifyReleased(released)
	if removed > 0 && r.status != types.RoomStatusEnded {
		r.notifyChanged()
	}
	return removed
}
