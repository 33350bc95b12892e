package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"fpl-optimizer/internal/catalog"
	"fpl-optimizer/internal/optimizer"
)

// SolveCache memoizes engine results by input fingerprint. It is a pure
// performance layer: correctness never depends on it, and the singleflight
// group guarantees at most one concurrent solve per identical fingerprint.
type SolveCache struct {
	client *redis.Client
	logger *logrus.Logger
	ttl    time.Duration
	group  singleflight.Group
}

// NewSolveCache creates a cache service. A nil client disables Redis reads
// and writes but keeps the per-fingerprint solve deduplication.
func NewSolveCache(client *redis.Client, logger *logrus.Logger, ttl time.Duration) *SolveCache {
	return &SolveCache{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// Fingerprint derives a stable key from everything a solve depends on.
// encoding/json sorts map keys, so identical inputs hash identically.
func Fingerprint(players []catalog.Player, rules optimizer.Rules, state *optimizer.TeamState) (string, error) {
	payload := struct {
		Players []catalog.Player     `json:"players"`
		Rules   optimizer.Rules      `json:"rules"`
		State   *optimizer.TeamState `json:"state,omitempty"`
	}{Players: players, Rules: rules, State: state}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint solve input: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// GetOrSolve returns the cached result for the fingerprint or computes it,
// collapsing concurrent identical requests into a single solve.
func (c *SolveCache) GetOrSolve(ctx context.Context, fingerprint string, solve func() (*optimizer.Result, error)) (*optimizer.Result, error) {
	if cached := c.get(ctx, fingerprint); cached != nil {
		return cached, nil
	}

	v, err, shared := c.group.Do(fingerprint, func() (interface{}, error) {
		if cached := c.get(ctx, fingerprint); cached != nil {
			return cached, nil
		}
		res, err := solve()
		if err != nil {
			return nil, err
		}
		c.set(ctx, fingerprint, res)
		return res, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.WithField("fingerprint", fingerprint).Debug("Solve shared with concurrent request")
	}
	return v.(*optimizer.Result), nil
}

func (c *SolveCache) get(ctx context.Context, fingerprint string) *optimizer.Result {
	if c.client == nil {
		return nil
	}
	key := cacheKey(fingerprint)
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WithError(err).WithField("cache_key", key).Warn("Cache read failed")
		}
		return nil
	}
	var res optimizer.Result
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		c.logger.WithError(err).WithField("cache_key", key).Warn("Cache entry corrupt, ignoring")
		return nil
	}
	c.logger.WithField("cache_key", key).Debug("Cache hit")
	return &res
}

func (c *SolveCache) set(ctx context.Context, fingerprint string, res *optimizer.Result) {
	if c.client == nil {
		return
	}
	// Only proven-optimal results are worth keeping; a timeout result
	// could be improved by a retry with a larger budget.
	if res.Status != optimizer.StatusOptimal {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to marshal result for cache")
		return
	}
	key := cacheKey(fingerprint)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("cache_key", key).Warn("Cache write failed")
	}
}

func cacheKey(fingerprint string) string {
	return fmt.Sprintf("solve:%s", fingerprint)
}
