package profile

import (
	"context"
	"encoding/json"
	"time"

	"github.com/arcadeparty/backend/internal/v1/logging"
	"github.com/arcadeparty/backend/internal/v1/metrics"
	"github.com/arcadeparty/backend/internal/v1/types"
	"go.uber.org/zap"
)

const (
	appearanceTTL       = 30 * time.Second
	appearanceKeyPrefix = "profile:appearance:"
)

type cachedAppearance struct {
	Color string `json:"color"`
	Emoji string `json:"emoji"`
}

// Appearance returns the color and emoji for a profile. It never fails:
// any cache miss, store error, or open breaker degrades to the default
// appearance so a flaky profile cannot stall a snapshot.
func (c *Client) Appearance(ctx context.Context, id types.ProfileIdType) (string, string) {
	if cached, ok := c.cacheGet(ctx, id); ok {
		metrics.ProfileLookups.WithLabelValues("cache").Inc()
		return cached.Color, cached.Emoji
	}

	record, err := c.GetByID(ctx, id)
	if err != nil {
		metrics.ProfileLookups.WithLabelValues("fallback").Inc()
		logging.Debug(ctx, "Appearance lookup failed, using defaults",
			zap.String("profile_id", string(id)),
			zap.Error(err))
		return types.DefaultColor, types.DefaultEmoji
	}

	color := record.Color
	if color == "" {
		color = types.DefaultColor
	}
	emoji := record.Emoji
	if emoji == "" {
		emoji = types.DefaultEmoji
	}

	c.cacheSet(ctx, id, cachedAppearance{Color: color, Emoji: emoji})
	metrics.ProfileLookups.WithLabelValues("store").Inc()
	return color, emoji
}

func (c *Client) cacheGet(ctx context.Context, id types.ProfileIdType) (*cachedAppearance, bool) {
	if c.cache == nil {
		return nil, false
	}

	data, err := c.cache.Get(ctx, appearanceKeyPrefix+string(id)).Bytes()
	if err != nil {
		return nil, false // miss or Redis unavailable, either way read through
	}

	var cached cachedAppearance
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}
	return &cached, true
}

func (c *Client) cacheSet(ctx context.Context, id types.ProfileIdType, a cachedAppearance) {
	if c.cache == nil {
		return
	}

	data, err := json.Marshal(a)
	if err != nil {
		return
	}

	if err := c.cache.Set(ctx, appearanceKeyPrefix+string(id), data, appearanceTTL).Err(); err != nil {
		logging.Debug(ctx, "Failed to cache appearance", zap.Error(err))
	}
}

func (c *Client) invalidateAppearance(ctx context.Context, id types.ProfileIdType) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Del(ctx, appearanceKeyPrefix+string(id)).Err(); err != nil {
		logging.Debug(ctx, "Failed to invalidate cached appearance", zap.Error(err))
	}
}
