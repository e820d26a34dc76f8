// Package match is the read-only client for the external match history
// store. Win counts are recorded out-of-band by the games themselves; this
// server only reads them through for the stats endpoints.
package match

import (
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
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const requestTimeout = 3 * time.Second

// Client talks to the match store over HTTP with a circuit breaker.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
}

// NewClient builds a match store client. baseURL must not end with a slash.
func NewClient(baseURL, apiKey string) *Client {
	st := gobreaker.Settings{
		Name:        "matches",
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
	}
}

// WinsByGame returns the win table for one game across all players. The
// payload is served to clients as-is.
func (c *Client) WinsByGame(ctx context.Context, game types.GameType) (json.RawMessage, error) {
	return c.get(ctx, "/wins/"+url.PathEscape(string(game)))
}

// WinsByPlayer returns all wins recorded for one profile.
func (c *Client) WinsByPlayer(ctx context.Context, id types.ProfileIdType) (json.RawMessage, error) {
	return c.get(ctx, "/wins/player/"+url.PathEscape(string(id)))
}

// WinsByRoom returns the wins recorded for one game within one room.
func (c *Client) WinsByRoom(ctx context.Context, roomId types.RoomIdType, game types.GameType) (json.RawMessage, error) {
	return c.get(ctx, "/wins/room/"+url.PathEscape(string(roomId))+"/"+url.PathEscape(string(game)))
}

func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	type exchange struct {
		data   []byte
		status int
	}

	res, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("X-Api-Key", c.apiKey)

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
			return nil, fmt.Errorf("match store returned status %d", resp.StatusCode)
		}

		return exchange{data: data, status: resp.StatusCode}, nil
	})

	if err != nil {
		if err == gobreaker.ErrOpenState {
			metrics.CircuitBreakerFailures.WithLabelValues("matches").Inc()
			logging.Warn(ctx, "Match store circuit breaker open", zap.String("path", path))
			return nil, types.NewError(types.ErrUpstream, "Match service is unavailable")
		}
		logging.Error(ctx, "Match store request failed", zap.String("path", path), zap.Error(err))
		return nil, types.NewError(types.ErrUpstream, "Match service is unavailable")
	}

	ex := res.(exchange)
	switch {
	case ex.status == http.StatusOK:
		return json.RawMessage(ex.data), nil
	case ex.status == http.StatusNotFound:
		return nil, types.NewError(types.ErrNotFound, "No match history found")
	default:
		return nil, types.NewErrorf(types.ErrUpstream, "The match store returned status %d", ex.status)
	}
}
