package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/arcadeparty/backend/internal/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWinsByGame_RelaysStoreDocument(t *testing.T) {
	api := newTestAPI()
	api.wins.byGame[types.GamePong] = json.RawMessage(`[{"playerId":"p-1","wins":3}]`)

	w := perform(t, api.router, http.MethodGet, "/api/wins/pong", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `[{"playerId":"p-1","wins":3}]`, w.Body.String())
}

func TestWinsByGame_UnknownGame(t *testing.T) {
	api := newTestAPI()

	w := perform(t, api.router, http.MethodGet, "/api/wins/chess", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, `Unknown game "chess"`, resp.Error)
}

func TestWinsByGame_NoHistory(t *testing.T) {
	api := newTestAPI()

	w := perform(t, api.router, http.MethodGet, "/api/wins/snake", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp errorResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, "No match history found", resp.Error)
}

func TestWinsByPlayer(t *testing.T) {
	api := newTestAPI()
	api.wins.byPlayer["p-1"] = json.RawMessage(`{"playerId":"p-1","total":7}`)

	w := perform(t, api.router, http.MethodGet, "/api/wins/player/p-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"playerId":"p-1","total":7}`, w.Body.String())
}

func TestWinsByRoom(t *testing.T) {
	api := newTestAPI()
	api.wins.byRoom["123456/memory"] = json.RawMessage(`[{"playerId":"p-2","wins":1}]`)

	w := perform(t, api.router, http.MethodGet, "/api/wins/room/123456/memory", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"playerId":"p-2","wins":1}]`, w.Body.String())
}

func TestWinsByRoom_UnknownGame(t *testing.T) {
	api := newTestAPI()

	w := perform(t, api.router, http.MethodGet, "/api/wins/room/123456/checkers", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWins_UpstreamFailure(t *testing.T) {
	api := newTestAPI()
	api.wins.fail(types.NewError(types.ErrUpstream, "Match service unavailable"))

	w := perform(t, api.router, http.MethodGet, "/api/wins/pong", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}
