package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/mindcare/platform/services/availability-service/internal/schedule"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "availability:slots:"

	// versionTTL outlives any list entry, so an expired counter never resurrects an old list.
	versionTTL = 24 * time.Hour
)

// SlotCache keeps each therapist's slot list in Redis as one JSON value. Lists are stored under a
// per-therapist version that Invalidate bumps; a fill computed under an older version lands on a
// key no reader looks at. A nil *SlotCache is a valid, always-missing cache.
type SlotCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewSlotCache(rdb redis.Cmdable, ttl time.Duration) *SlotCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if ttl >= versionTTL {
		ttl = versionTTL - time.Minute
	}
	return &SlotCache{rdb: rdb, ttl: ttl}
}

func versionKey(therapistID string) string {
	return keyPrefix + therapistID + ":version"
}

func listKey(therapistID string, version int64) string {
	return keyPrefix + therapistID + ":v" + strconv.FormatInt(version, 10)
}

// Get returns the cached list and the version it was looked up under. Callers filling a miss must
// pass that version to Set, and must read it before loading from the store.
func (c *SlotCache) Get(ctx context.Context, therapistID string) ([]schedule.Slot, int64, bool, error) {
	if c == nil {
		return nil, 0, false, nil
	}
	version, err := c.rdb.Get(ctx, versionKey(therapistID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, err
	}

	raw, err := c.rdb.Get(ctx, listKey(therapistID, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, version, false, nil
	}
	if err != nil {
		return nil, version, false, err
	}
	slots, err := decode(raw)
	if err != nil {
		return nil, version, false, err
	}
	return slots, version, true, nil
}

func (c *SlotCache) Set(ctx context.Context, therapistID string, version int64, slots []schedule.Slot) error {
	if c == nil {
		return nil
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, listKey(therapistID, version), raw, c.ttl).Err()
}

// Invalidate moves the therapist to a new version. The previous list is left to expire.
func (c *SlotCache) Invalidate(ctx context.Context, therapistID string) error {
	if c == nil {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, versionKey(therapistID))
		p.Expire(ctx, versionKey(therapistID), versionTTL)
		return nil
	})
	return err
}

func decode(raw []byte) ([]schedule.Slot, error) {
	slots := []schedule.Slot{}
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// ReadyCheck pings Redis.
func ReadyCheck(rdb redis.Cmdable) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
