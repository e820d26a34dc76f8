package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/arcadeparty/backend/internal/v1/logging"
	"github.com/arcadeparty/backend/internal/v1/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type closeRoomRequest struct {
	UserProfileId types.ProfileIdType `json:"userProfileId"`
}

// closeRoom force-closes a room. With a userProfileId in the body the caller
// must be the room's host; without one the close is unconditional.
func (s *Server) closeRoom(c *gin.Context) {
	id := types.RoomIdType(c.Param("roomId"))
	var req closeRoomRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	if err := s.rooms.CloseRoom(c.Request.Context(), id, req.UserProfileId); err != nil {
		respondError(c, err)
		return
	}
	logging.Info(c.Request.Context(), "room closed via admin endpoint",
		zap.String("room_id", string(id)),
		zap.String("requested_by", string(req.UserProfileId)),
	)
	c.JSON(http.StatusOK, gin.H{
		"roomId":  id,
		"message": "Room closed",
	})
}

type cleanupRequest struct {
	Force  bool             `json:"force"`
	RoomId types.RoomIdType `json:"roomId"`
}

// cleanupStale sweeps stale members out of one room or all rooms, depending
// on whether the body names a roomId.
func (s *Server) cleanupStale(c *gin.Context) {
	var req cleanupRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	s.runCleanup(c, req.RoomId, req.Force)
}

// cleanupRoom is the path-scoped variant of cleanupStale.
func (s *Server) cleanupRoom(c *gin.Context) {
	var req cleanupRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondError(c, err)
		return
	}
	s.runCleanup(c, types.RoomIdType(c.Param("roomId")), req.Force)
}

func (s *Server) runCleanup(c *gin.Context, roomId types.RoomIdType, force bool) {
	removed, err := s.rooms.CleanupStale(c.Request.Context(), roomId, force)
	if err != nil {
		respondError(c, err)
		return
	}
	logging.Info(c.Request.Context(), "stale member cleanup ran",
		zap.String("room_id", string(roomId)),
		zap.Bool("force", force),
		zap.Int("removed", removed),
	)
	c.JSON(http.StatusOK, gin.H{
		"removed": removed,
		"forced":  force,
	})
}

// bindOptionalJSON decodes the request body into out when one is present.
// Admin endpoints accept an empty body, so absence is not an error.
func bindOptionalJSON(c *gin.Context, out any) error {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return types.NewError(types.ErrInvalid, "Malformed request body")
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return types.NewError(types.ErrInvalid, "Malformed request body")
	}
	return nil
}
