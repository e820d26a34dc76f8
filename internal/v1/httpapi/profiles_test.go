package httpapi

import (
	"net/http"
	"testing"

	"github.com/arcadeparty/backend/internal/v1/profile"
	"github.com/arcadeparty/backend/internal/v1/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListProfiles(t *testing.T) {
	api := newTestAPI()
	api.profiles.add("p-1", "Alice", "#FF0000", "🦊")
	api.profiles.add("p-2", "Bob", "#00FF00", "🐙")

	w := perform(t, api.router, http.MethodGet, "/api/user-profiles", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var records []profile.Record
	decodeBody(t, w, &records)
	require.Len(t, records, 2)
	assert.Equal(t, "Alice", records[0].Name)
	assert.Equal(t, "Bob", records[1].Name)
}

func TestListProfiles_UpstreamFailure(t *testing.T) {
	api := newTestAPI()
	api.profiles.fail(types.NewError(types.ErrUpstream, "Profile service unavailable"))

	w := perform(t, api.router, http.MethodGet, "/api/user-profiles", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)

	var resp errorResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, "Profile service unavailable", resp.Error)
}

func TestGetProfile(t *testing.T) {
	api := newTestAPI()
	api.profiles.add("p-1", "Alice", "#FF0000", "🦊")

	w := perform(t, api.router, http.MethodGet, "/api/user-profiles/p-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var record profile.Record
	decodeBody(t, w, &record)
	assert.Equal(t, "p-1", record.Id)
	assert.Equal(t, "Alice", record.Name)
}

func TestGetProfile_Unknown(t *testing.T) {
	api := newTestAPI()

	w := perform(t, api.router, http.MethodGet, "/api/user-profiles/ghost", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateProfile(t *testing.T) {
	api := newTestAPI()

	w := perform(t, api.router, http.MethodPost, "/api/user-profiles", profile.CreateRequest{
		Name:  "Dana",
		Color: "#123456",
		Emoji: "🦄",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var record profile.Record
	decodeBody(t, w, &record)
	assert.NotEmpty(t, record.Id)
	assert.Equal(t, "Dana", record.Name)
	assert.Equal(t, "#123456", record.Color)
}

func TestCreateProfile_NameRequired(t *testing.T) {
	api := newTestAPI()

	w := perform(t, api.router, http.MethodPost, "/api/user-profiles", profile.CreateRequest{
		Name: "   ",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, "name is required", resp.Error)
}

func TestCreateProfile_MalformedBody(t *testing.T) {
	api := newTestAPI()

	w := perform(t, api.router, http.MethodPost, "/api/user-profiles", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateProfile_PatchesOnlySentFields(t *testing.T) {
	api := newTestAPI()
	api.profiles.add("p-1", "Alice", "#FF0000", "🦊")

	w := perform(t, api.router, http.MethodPatch, "/api/user-profiles/p-1", `{"color":"#00FF00"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var record profile.Record
	decodeBody(t, w, &record)
	assert.Equal(t, "#00FF00", record.Color)
	assert.Equal(t, "Alice", record.Name, "fields outside the patch must survive")
	assert.JSONEq(t, `{"color":"#00FF00"}`, string(api.profiles.lastPatch))
}

func TestUpdateProfile_RequiresBody(t *testing.T) {
	api := newTestAPI()
	api.profiles.add("p-1", "Alice", "#FF0000", "🦊")

	w := perform(t, api.router, http.MethodPatch, "/api/user-profiles/p-1", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	decodeBody(t, w, &resp)
	assert.Equal(t, "A JSON patch body is required", resp.Error)
}

func TestDeleteProfile_AlsoDeactivates(t *testing.T) {
	api := newTestAPI()
	api.profiles.add("p-1", "Alice", "#FF0000", "🦊")
	api.server.Sessions().Activate("p-1")

	w := perform(t, api.router, http.MethodDelete, "/api/user-profiles/p-1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Deleted types.ProfileIdType `json:"deleted"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, types.ProfileIdType("p-1"), resp.Deleted)
	assert.False(t, api.server.Sessions().IsActive("p-1"))
	assert.Equal(t, []types.ProfileIdType{"p-1"}, api.profiles.deleted)
}

func TestSearchProfiles_ForwardsQuery(t *testing.T) {
	api := newTestAPI()
	api.profiles.add("p-1", "Alice", "#FF0000", "🦊")

	w := perform(t, api.router, http.MethodGet, "/api/user-profiles/search?name=Ali&limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, api.profiles.lastQuery)
	assert.Equal(t, "Ali", api.profiles.lastQuery.Get("name"))
	assert.Equal(t, "5", api.profiles.lastQuery.Get("limit"))
}

func TestActiveProfiles_Lifecycle(t *testing.T) {
	api := newTestAPI()
	api.profiles.add("p-1", "Alice", "#FF0000", "🦊")
	api.profiles.add("p-2", "Bob", "#00FF00", "🐙")

	for _, id := range []string{"p-1", "p-2"} {
		w := perform(t, api.router, http.MethodPost, "/api/user-profiles/"+id+"/activate", nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := perform(t, api.router, http.MethodPost, "/api/user-profiles/p-2/deactivate", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(t, api.router, http.MethodGet, "/api/user-profiles/active", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count    int              `json:"count"`
		Profiles []profile.Record `json:"profiles"`
	}
	decodeBody(t, w, &resp)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "p-1", resp.Profiles[0].Id)
}

// Active ids the store no longer resolves are skipped, not fatal.
func TestActiveProfiles_SkipsUnresolvable(t *testing.T) {
	api := newTestAPI()
	api.profiles.add("p-1", "Alice", "#FF0000", "🦊")
	api.server.Sessions().Activate("p-1")
	api.server.Sessions().Activate("ghost")

	w := perform(t, api.router, http.MethodGet, "/api/user-profiles/active", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count int `json:"count"`
	}
	decodeBody(t, w, &resp)
	assert.Equal(t, 1, resp.Count)
}
