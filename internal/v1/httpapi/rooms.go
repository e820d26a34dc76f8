package httpapi

import (
	"net/http"
	"sort"

	"github.com/arcadeparty/backend/internal/v1/types"
	"github.com/gin-gonic/gin"
)

// listActiveRooms returns the joinable rooms, the same listing pushed to
// lobby sockets.
func (s *Server) listActiveRooms(c *gin.Context) {
	rooms := s.rooms.ListJoinable(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"count": len(rooms),
		"rooms": rooms,
	})
}

// listRooms returns every live room regardless of joinability, with
// operational detail.
func (s *Server) listRooms(c *gin.Context) {
	live := s.rooms.Rooms()
	details := make([]types.RoomDetails, 0, len(live))
	for _, r := range live {
		details = append(details, r.Details())
	}
	sort.Slice(details, func(i, j int) bool { return details[i].Id < details[j].Id })
	c.JSON(http.StatusOK, gin.H{
		"count": len(details),
		"rooms": details,
	})
}

func (s *Server) getRoom(c *gin.Context) {
	id := types.RoomIdType(c.Param("roomId"))
	r, ok := s.rooms.Room(id)
	if !ok {
		respondError(c, types.NewErrorf(types.ErrNotFound, "Room %s not found", id))
		return
	}
	c.JSON(http.StatusOK, r.Snapshot(c.Request.Context()))
}

func (s *Server) getRoomPlayers(c *gin.Context) {
	id := types.RoomIdType(c.Param("roomId"))
	r, ok := s.rooms.Room(id)
	if !ok {
		respondError(c, types.NewErrorf(types.ErrNotFound, "Room %s not found", id))
		return
	}
	snapshot := r.Snapshot(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"roomId":  id,
		"count":   len(snapshot.Players),
		"players": snapshot.Players,
	})
}

type createRoomShellRequest struct {
	ProfileId types.ProfileIdType `json:"profileId"`
}

// createRoomShell reserves a room id for a host who has not connected yet.
// The shell expires on the host grace schedule if nobody claims it.
func (s *Server) createRoomShell(c *gin.Context) {
	var req createRoomShellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, types.NewError(types.ErrInvalid, "Malformed request body"))
		return
	}
	roomId, err := s.rooms.CreateRoomShell(c.Request.Context(), req.ProfileId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"roomId": roomId})
}
