package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/arcadeparty/backend/internal/v1/types"
	"github.com/gin-gonic/gin"
)

func (s *Server) winsByGame(c *gin.Context) {
	game := types.GameType(c.Param("gameType"))
	if !types.IsValidGame(game) {
		respondError(c, types.NewErrorf(types.ErrInvalid, "Unknown game %q", game))
		return
	}
	s.serveWins(c, func(ctx context.Context) (json.RawMessage, error) {
		return s.wins.WinsByGame(ctx, game)
	})
}

func (s *Server) winsByPlayer(c *gin.Context) {
	id := types.ProfileIdType(c.Param("id"))
	s.serveWins(c, func(ctx context.Context) (json.RawMessage, error) {
		return s.wins.WinsByPlayer(ctx, id)
	})
}

func (s *Server) winsByRoom(c *gin.Context) {
	roomId := types.RoomIdType(c.Param("roomId"))
	game := types.GameType(c.Param("gameType"))
	if !types.IsValidGame(game) {
		respondError(c, types.NewErrorf(types.ErrInvalid, "Unknown game %q", game))
		return
	}
	s.serveWins(c, func(ctx context.Context) (json.RawMessage, error) {
		return s.wins.WinsByRoom(ctx, roomId, game)
	})
}

// serveWins relays the store's JSON untouched so the aggregation shape stays
// whatever the match service returns.
func (s *Server) serveWins(c *gin.Context, read func(context.Context) (json.RawMessage, error)) {
	data, err := read(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}
