package availability

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultCacheTTL bounds how stale a cached availability answer may be.
const DefaultCacheTTL = 5 * time.Minute

// Cache stores encoded availability answers. Implementations must be safe for
// concurrent use. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// SlotsKey identifies one availability answer; an empty staffID means every staff member.
func SlotsKey(day time.Time, serviceID, staffID string) string {
	if staffID == "" {
		staffID = "all"
	}
	return DayPrefix(day) + serviceID + ":" + staffID
}

// DayPrefix is shared by every SlotsKey of the calendar date.
func DayPrefix(day time.Time) string {
	return "avail:" + day.Format(DateLayout) + ":"
}

func DatesKey(serviceID string, today time.Time) string {
	return "dates:" + serviceID + ":" + today.Format(DateLayout)
}

// MemoryCache is a process-local Cache. Expired entries are dropped when read.
type MemoryCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

func NewMemoryCache(now func() time.Time) *MemoryCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryCache{now: now, entries: map[string]memoryEntry{}}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{value: append([]byte(nil), value...), expires: c.now().Add(ttl)}
	return nil
}

func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

// Len counts stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
