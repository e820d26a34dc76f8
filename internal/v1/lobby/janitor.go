package lobby

import (
	"context"
	"time"

	"github.com/arcadeparty/backend/internal/v1/logging"
	"github.com/arcadeparty/backend/internal/v1/types"
	"go.uber.org/zap"
)

const (
	emptyRoomSweepInterval = time.Minute
	staleSweepInterval     = 5 * time.Minute
	endedPurgeInterval     = 30 * time.Second

	// staleMemberAge is how long a member may sit idle before the janitor
	// removes them through the normal leave path.
	staleMemberAge = 10 * time.Minute
)

// RunJanitor owns the periodic sweeps: empty rooms, stale members, orphaned
// connections, and the recently-ended id set. Blocks until ctx is cancelled;
// run it on its own goroutine.
func (h *Hub) RunJanitor(ctx context.Context) {
	emptyTicker := time.NewTicker(emptyRoomSweepInterval)
	staleTicker := time.NewTicker(staleSweepInterval)
	endedTicker := time.NewTicker(endedPurgeInterval)
	defer emptyTicker.Stop()
	defer staleTicker.Stop()
	defer endedTicker.Stop()

	logging.Info(ctx, "Janitor started")
	for {
		select {
		case <-ctx.Done():
			logging.Info(ctx, "Janitor stopped")
			return
		case <-emptyTicker.C:
			h.sweepEmptyRooms(ctx)
		case <-staleTicker.C:
			h.sweepStaleMembers(ctx)
		case <-endedTicker.C:
			h.purgeRecentlyEnded()
		}
	}
}

// sweepEmptyRooms closes rooms that have no members and no pending grace.
// A room waiting out its host's grace window is the timer's to close, not
// the janitor's.
func (h *Hub) sweepEmptyRooms(ctx context.Context) {
	for _, r := range h.Rooms() {
		if r.IsEmpty() && !r.GraceArmed() {
			logging.Info(ctx, "Janitor closing empty room",
				zap.String("room_id", string(r.Id)))
			r.Close(ctx, types.CloseReasonEmpty, "Room is empty")
		}
	}
}

// sweepStaleMembers removes members idle past the threshold and detaches
// connections orphaned from their member records.
func (h *Hub) sweepStaleMembers(ctx context.Context) {
	for _, r := range h.Rooms() {
		if removed := r.CleanupStale(ctx, staleMemberAge); removed > 0 {
			logging.Info(ctx, "Janitor removed stale members",
				zap.String("room_id", string(r.Id)),
				zap.Int("count", removed))
		}
		r.ReapOrphans(ctx)
	}
}

// purgeRecentlyEnded expires ids past the cool-off window so they return to
// the id pool.
func (h *Hub) purgeRecentlyEnded() {
	h.mu.Lock()
	defer h.mu.Unlock()
	cutoff := time.Now().Add(-recentlyEndedTTL)
	for id, endedAt := range h.recentlyEnded {
		if endedAt.Before(cutoff) {
			delete(h.recentlyEnded, id)
		}
	}
}

// CleanupStale runs the stale-member sweep on demand for the admin surface.
// force drops the idle threshold to zero; a non-empty roomId limits the
// sweep to that room.
func (h *Hub) CleanupStale(ctx context.Context, roomId types.RoomIdType, force bool) (int, error) {
	maxAge := staleMemberAge
	if force {
		maxAge = 0
	}

	if roomId != "" {
		r, ok := h.getRoom(roomId)
		if !ok {
			return 0, types.NewError(types.ErrNotFound, "Room not found")
		}
		removed := r.CleanupStale(ctx, maxAge)
		r.ReapOrphans(ctx)
		return removed, nil
	}

	total := 0
	for _, r := range h.Rooms() {
		total += r.CleanupStale(ctx, maxAge)
		r.ReapOrphans(ctx)
	}
	return total, nil
}
