package memory

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// CodeCache wraps a room repository and caches the code to room id mapping
// with a TTL. Codes never change, so only the mapping is cached; the room row
// itself is always read from the wrapped repository.
type CodeCache struct {
	app.RoomRepository

	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedCode
}

type cachedCode struct {
	roomID    string
	expiresAt time.Time
}

func NewCodeCache(rooms app.RoomRepository, ttl time.Duration) *CodeCache {
	return &CodeCache{
		RoomRepository: rooms,
		ttl:            ttl,
		clock:          time.Now,
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:          make(map[string]cachedCode),
	}
}

func (c *CodeCache) GetByCode(ctx context.Context, code string) (domain.Room, error) {
	if roomID, ok := c.lookup(code); ok {
		room, err := c.RoomRepository.GetByID(ctx, roomID)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, domain.ErrRoomNotFound) {
			return domain.Room{}, err
		}
		c.forget(code)
	}

	result, err, _ := c.sf.Do(code, func() (interface{}, error) {
		room, err := c.RoomRepository.GetByCode(ctx, code)
		if err != nil {
			return domain.Room{}, err
		}
		c.store(code, room.ID)
		return room, nil
	})
	if err != nil {
		return domain.Room{}, err
	}
	return result.(domain.Room), nil
}

// CodeExists answers from the cache when it can; a cached code is always taken.
func (c *CodeCache) CodeExists(ctx context.Context, code string) (bool, error) {
	if _, ok := c.lookup(code); ok {
		return true, nil
	}
	return c.RoomRepository.CodeExists(ctx, code)
}

func (c *CodeCache) lookup(code string) (string, bool) {
	c.mu.RLock()
	entry, ok := c.cache[code]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !entry.expiresAt.After(c.clock()) {
		c.mu.Lock()
		if current, ok := c.cache[code]; ok && !current.expiresAt.After(c.clock()) {
			delete(c.cache, code)
		}
		c.mu.Unlock()
		return "", false
	}
	return entry.roomID, true
}

func (c *CodeCache) store(code, roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	for k, entry := range c.cache {
		if !entry.expiresAt.After(now) {
			delete(c.cache, k)
		}
	}
	c.cache[code] = cachedCode{
		roomID:    roomID,
		expiresAt: now.Add(c.ttlWithJitterLocked()),
	}
}

func (c *CodeCache) forget(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, code)
}

func (c *CodeCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
