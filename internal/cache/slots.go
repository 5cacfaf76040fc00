// Package cache provides a read-through redis cache for public slot pages.
// Slot listings are the hot path; bookings invalidate the organizer's pages
// so stale slots never outlive a commit.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rohan-patnaik/opencalendly-sub000/internal/models"
)

const keyPrefix = "slots"

// SlotCache caches computed slot pages with a TTL.
type SlotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewSlotCache wires the cache. A zero ttl defaults to 60 seconds.
func NewSlotCache(rdb *redis.Client, ttl time.Duration) *SlotCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &SlotCache{rdb: rdb, ttl: ttl}
}

// Key builds the cache key for one slot page.
func Key(organizerID, eventTypeID, rangeStart string, days int) string {
	return fmt.Sprintf("%s:%s:%s:%s:%d", keyPrefix, organizerID, eventTypeID, rangeStart, days)
}

// Get returns the cached page, or (nil, false) on miss or any redis error.
// Cache failures degrade to recomputation, never to request failure.
func (c *SlotCache) Get(ctx context.Context, key string) ([]models.AvailabilitySlot, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var slots []models.AvailabilitySlot
	if err := json.Unmarshal(data, &slots); err != nil {
		return nil, false
	}
	return slots, true
}

// Set stores the page. Errors are dropped for the same reason Get's are.
func (c *SlotCache) Set(ctx context.Context, key string, slots []models.AvailabilitySlot) {
	data, err := json.Marshal(slots)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, key, data, c.ttl)
}

// InvalidateOrganizer drops every cached page for an organizer. Called after
// commit, cancel and reschedule.
func (c *SlotCache) InvalidateOrganizer(ctx context.Context, organizerID string) {
	pattern := fmt.Sprintf("%s:%s:*", keyPrefix, organizerID)
	iter := c.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		c.rdb.Del(ctx, iter.Val())
	}
}
