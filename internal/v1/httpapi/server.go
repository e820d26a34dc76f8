// Package httpapi is the REST surface over the hub and the external stores:
// read-only room views, admin controls, active-session tracking, and thin
// forwards to the profile and match stores. Everything here observes core
// state through the hub; nothing mutates a room except through it.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/arcadeparty/backend/internal/v1/profile"
	"github.com/arcadeparty/backend/internal/v1/room"
	"github.com/arcadeparty/backend/internal/v1/types"
	"github.com/gin-gonic/gin"
)

// RoomService is the slice of the lobby hub the REST surface consumes.
type RoomService interface {
	ListJoinable(ctx context.Context) []types.RoomSummary
	Rooms() []*room.Room
	Room(id types.RoomIdType) (*room.Room, bool)
	CreateRoomShell(ctx context.Context, hostProfileId types.ProfileIdType) (types.RoomIdType, error)
	CloseRoom(ctx context.Context, id types.RoomIdType, requester types.ProfileIdType) error
	CleanupStale(ctx context.Context, roomId types.RoomIdType, force bool) (int, error)
}

// ProfileService is the profile store surface the API forwards to.
type ProfileService interface {
	GetAll(ctx context.Context) ([]profile.Record, error)
	GetByID(ctx context.Context, id types.ProfileIdType) (*profile.Record, error)
	Create(ctx context.Context, req profile.CreateRequest) (*profile.Record, error)
	Update(ctx context.Context, id types.ProfileIdType, patch json.RawMessage) (*profile.Record, error)
	Delete(ctx context.Context, id types.ProfileIdType) error
	Search(ctx context.Context, query url.Values) ([]profile.Record, error)
}

// WinsService is the read-only match store surface.
type WinsService interface {
	WinsByGame(ctx context.Context, game types.GameType) (json.RawMessage, error)
	WinsByPlayer(ctx context.Context, id types.ProfileIdType) (json.RawMessage, error)
	WinsByRoom(ctx context.Context, roomId types.RoomIdType, game types.GameType) (json.RawMessage, error)
}

// Server holds the REST handlers' dependencies.
type Server struct {
	rooms    RoomService
	profiles ProfileService
	wins     WinsService
	sessions *Sessions
}

// NewServer wires the REST handlers. sessions may be nil to start empty.
func NewServer(rooms RoomService, profiles ProfileService, wins WinsService, sessions *Sessions) *Server {
	if sessions == nil {
		sessions = NewSessions()
	}
	return &Server{
		rooms:    rooms,
		profiles: profiles,
		wins:     wins,
		sessions: sessions,
	}
}

// Sessions exposes the active-session set (the lobby does not consult it;
// it exists for operators and the activate/deactivate endpoints).
func (s *Server) Sessions() *Sessions {
	return s.sessions
}

// respondError maps the error taxonomy onto HTTP statuses. The error's
// message is the response body; kinds never leak as Go type names.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrUnauthorized), errors.Is(err, types.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, types.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, types.ErrUpstream):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
