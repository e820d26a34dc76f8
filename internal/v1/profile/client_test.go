package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/arcadeparty/backend/internal/v1/types"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ types.AppearanceProvider = (*Client)(nil)

func newTestStore(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-api-key", nil), srv
}

func TestGetByID_Success(t *testing.T) {
	client, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user-profiles/p1", r.URL.Path)
		assert.Equal(t, "test-api-key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"p1","name":"Alice","color":"#FF0000","emoji":"🦊"}`))
	})

	record, err := client.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", record.Id)
	assert.Equal(t, "Alice", record.Name)
	assert.Equal(t, "#FF0000", record.Color)
	assert.Equal(t, "🦊", record.Emoji)
}

func TestGetByID_MixedCapitalization(t *testing.T) {
	// The store is known to return either capitalization for the same field.
	client, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Id":"p1","Name":"Alice","Color":"#FF0000","Emoji":"🦊"}`))
	})

	record, err := client.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", record.Name)
	assert.Equal(t, "#FF0000", record.Color)
	assert.Equal(t, "🦊", record.Emoji)
}

func TestGetByID_NotFound(t *testing.T) {
	client, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestGetByID_ServerError(t *testing.T) {
	client, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.GetByID(context.Background(), "p1")
	assert.ErrorIs(t, err, types.ErrUpstream)
}

func TestGetAll(t *testing.T) {
	client, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user-profiles", r.URL.Path)
		w.Write([]byte(`[{"id":"p1","name":"Alice"},{"id":"p2","name":"Bob"}]`))
	})

	records, err := client.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Bob", records[1].Name)
}

func TestCreate(t *testing.T) {
	client, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req CreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Alice", req.Name)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"p1","name":"Alice","color":"#FF0000","emoji":"🦊"}`))
	})

	record, err := client.Create(context.Background(), CreateRequest{Name: "Alice", Color: "#FF0000", Emoji: "🦊"})
	require.NoError(t, err)
	assert.Equal(t, "p1", record.Id)
}

func TestDelete_NotFound(t *testing.T) {
	client, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	})

	err := client.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSearch_ForwardsQuery(t *testing.T) {
	client, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user-profiles/search", r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("name"))
		w.Write([]byte(`[{"id":"p1","name":"Alice"}]`))
	})

	records, err := client.Search(context.Background(), url.Values{"name": {"alice"}})
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int64
	client, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	// gobreaker trips after more than five consecutive failures.
	for i := 0; i < 6; i++ {
		_, err := client.GetByID(context.Background(), "p1")
		assert.ErrorIs(t, err, types.ErrUpstream)
	}
	hitsBeforeOpen := hits.Load()

	_, err := client.GetByID(context.Background(), "p1")
	assert.ErrorIs(t, err, types.ErrUpstream)
	assert.Equal(t, hitsBeforeOpen, hits.Load(), "open breaker should not reach the store")
}

func TestAppearance_ReadsStoreAndCaches(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"id":"p1","name":"Alice","color":"#FF0000","emoji":"🦊"}`))
	}))
	defer srv.Close()

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := NewClient(srv.URL, "key", cache)

	color, emoji := client.Appearance(context.Background(), "p1")
	assert.Equal(t, "#FF0000", color)
	assert.Equal(t, "🦊", emoji)
	assert.Equal(t, int64(1), hits.Load())

	// Second read comes from the cache.
	color, emoji = client.Appearance(context.Background(), "p1")
	assert.Equal(t, "#FF0000", color)
	assert.Equal(t, "🦊", emoji)
	assert.Equal(t, int64(1), hits.Load())

	// After TTL expiry the store is read again.
	mr.FastForward(appearanceTTL + 1)
	client.Appearance(context.Background(), "p1")
	assert.Equal(t, int64(2), hits.Load())
}

func TestAppearance_DefaultsOnStoreFailure(t *testing.T) {
	client, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	color, emoji := client.Appearance(context.Background(), "p1")
	assert.Equal(t, types.DefaultColor, color)
	assert.Equal(t, types.DefaultEmoji, emoji)
}

func TestAppearance_DefaultsOnMissingProfile(t *testing.T) {
	client, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	color, emoji := client.Appearance(context.Background(), "ghost")
	assert.Equal(t, types.DefaultColor, color)
	assert.Equal(t, types.DefaultEmoji, emoji)
}

func TestAppearance_DefaultsForEmptyFields(t *testing.T) {
	client, _ := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"p1","name":"Alice"}`))
	})

	color, emoji := client.Appearance(context.Background(), "p1")
	assert.Equal(t, types.DefaultColor, color)
	assert.Equal(t, types.DefaultEmoji, emoji)
}

func TestUpdate_InvalidatesCachedAppearance(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"p1","name":"Alice","color":"#00FF00","emoji":"🐸"}`))
	}))
	defer srv.Close()

	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	client := NewClient(srv.URL, "key", cache)

	client.Appearance(context.Background(), "p1")
	assert.True(t, mr.Exists(appearanceKeyPrefix+"p1"))

	_, err = client.Update(context.Background(), "p1", json.RawMessage(`{"color":"#0000FF"}`))
	require.NoError(t, err)
	assert.False(t, mr.Exists(appearanceKeyPrefix+"p1"))
}
