// Package profile is the read-through client for the external profile store.
// The store is authoritative for display identity (name, color, emoji); this
// package never caches anything except appearance, and only briefly.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/arcadeparty/backend/internal/v1/logging"
	"github.com/arcadeparty/backend/internal/v1/metrics"
	"github.com/arcadeparty/backend/internal/v1/types"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const requestTimeout = 3 * time.Second

// Record is the canonical profile shape the rest of the server sees.
// The store returns field names in either capitalization ("emoji" or
// "Emoji"); encoding/json matches keys case-insensitively, which absorbs
// the difference at this boundary.
type Record struct {
	Id    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Emoji string `json:"emoji"`
}

// CreateRequest is the body for creating a profile in the store.
type CreateRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Emoji string `json:"emoji,omitempty"`
}

// Client talks to the profile store over HTTP with a circuit breaker and an
// optional Redis appearance cache. A nil cache disables caching.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	cache   *redis.Client
}

// NewClient builds a profile store client. baseURL must not end with a
// slash (config trims it). cache may be nil.
func NewClient(baseURL, apiKey string, cache *redis.Client) *Client {
	st := gobreaker.Settings{
		Name:        "profiles",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateVal)
		},
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
		cb:      gobreaker.NewCircuitBreaker(st),
		cache:   cache,
	}
}

// GetAll returns every profile in the store.
func (c *Client) GetAll(ctx context.Context) ([]Record, error) {
	data, status, err := c.do(ctx, http.MethodGet, "/user-profiles", nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusErr(status, "profile")
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, types.NewErrorf(types.ErrUpstream, "Profile store returned malformed data")
	}
	return records, nil
}

// GetByID returns one profile, or a NotFound error if the store has no
// record for the id.
func (c *Client) GetByID(ctx context.Context, id types.ProfileIdType) (*Record, error) {
	data, status, err := c.do(ctx, http.MethodGet, "/user-profiles/"+url.PathEscape(string(id)), nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, types.NewError(types.ErrNotFound, "Profile not found")
	}
	if status != http.StatusOK {
		return nil, statusErr(status, "profile")
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, types.NewErrorf(types.ErrUpstream, "Profile store returned malformed data")
	}
	return &record, nil
}

// Create adds a new profile to the store.
func (c *Client) Create(ctx context.Context, req CreateRequest) (*Record, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal create request: %w", err)
	}

	data, status, err := c.do(ctx, http.MethodPost, "/user-profiles", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, statusErr(status, "profile")
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, types.NewErrorf(types.ErrUpstream, "Profile store returned malformed data")
	}
	return &record, nil
}

// Update applies a partial patch to a profile. The patch is forwarded to
// the store as-is.
func (c *Client) Update(ctx context.Context, id types.ProfileIdType, patch json.RawMessage) (*Record, error) {
	data, status, err := c.do(ctx, http.MethodPatch, "/user-profiles/"+url.PathEscape(string(id)), patch)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, types.NewError(types.ErrNotFound, "Profile not found")
	}
	if status != http.StatusOK {
		return nil, statusErr(status, "profile")
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, types.NewErrorf(types.ErrUpstream, "Profile store returned malformed data")
	}

	// The appearance may have changed; drop the cached copy so the next
	// snapshot re-reads it.
	c.invalidateAppearance(ctx, id)
	return &record, nil
}

// Delete removes a profile from the store. Deleting an absent profile is
// an error so callers can surface it.
func (c *Client) Delete(ctx context.Context, id types.ProfileIdType) error {
	_, status, err := c.do(ctx, http.MethodDelete, "/user-profiles/"+url.PathEscape(string(id)), nil)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return types.NewError(types.ErrNotFound, "Profile not found")
	}
	if status != http.StatusOK && status != http.StatusNoContent {
		return statusErr(status, "profile")
	}

	c.invalidateAppearance(ctx, id)
	return nil
}

// Search forwards query criteria to the store's search endpoint.
func (c *Client) Search(ctx context.Context, query url.Values) ([]Record, error) {
	path := "/user-profiles/search"
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	data, status, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, statusErr(status, "profile")
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, types.NewErrorf(types.ErrUpstream, "Profile store returned malformed data")
	}
	return records, nil
}

// do performs one HTTP exchange through the circuit breaker. Transport
// failures and 5xx responses count against the breaker; 4xx responses are
// completed exchanges and are returned for the caller to classify.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	type exchange struct {
		data   []byte
		status int
	}

	res, err := c.cb.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("X-Api-Key", c.apiKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("profile store returned status %d", resp.StatusCode)
		}

		return exchange{data: data, status: resp.StatusCode}, nil
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("profiles").Inc()
			logging.Warn(ctx, "Profile store circuit breaker open", zap.String("path", path))
			return nil, 0, types.NewError(types.ErrUpstream, "Profile service is unavailable")
		}
		logging.Error(ctx, "Profile store request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return nil, 0, types.NewError(types.ErrUpstream, "Profile service is unavailable")
	}

	ex := res.(exchange)
	return ex.data, ex.status, nil
}

func statusErr(status int, store string) error {
	switch {
	case status == http.StatusBadRequest:
		return types.NewErrorf(types.ErrInvalid, "Invalid %s request", store)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.NewErrorf(types.ErrUpstream, "Not authorized against the %s store", store)
	default:
		return types.NewErrorf(types.ErrUpstream, "The %s store returned status %d", store, status)
	}
}
