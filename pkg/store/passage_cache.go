package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const passageCacheTTL = 15 * time.Minute

// PassageCache keeps the passages behind the most recent answer per
// session, so the UI can re-display sources without re-running retrieval.
// Redis is optional; a nil client turns every call into a no-op.
type PassageCache struct {
	rdb *redis.Client
}

func NewPassageCache(rdb *redis.Client) *PassageCache {
	return &PassageCache{rdb: rdb}
}

func (c *PassageCache) key(sessionID string) string {
	return fmt.Sprintf("session:%s:passages", sessionID)
}

func (c *PassageCache) Put(ctx context.Context, sessionID string, passages []Passage) error {
	if c.rdb == nil {
		return nil
	}
	data, err := json.Marshal(passages)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(sessionID), data, passageCacheTTL).Err()
}

func (c *PassageCache) Get(ctx context.Context, sessionID string) ([]Passage, error) {
	if c.rdb == nil {
		return nil, nil
	}
	data, err := c.rdb.Get(ctx, c.key(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var passages []Passage
	if err := json.Unmarshal(data, &passages); err != nil {
		return nil, err
	}
	return passages, nil
}

func (c *PassageCache) Invalidate(ctx context.Context, sessionID string) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, c.key(sessionID)).Err()
}
