package redis

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// CodeCache caches the room code to room id mapping in Redis and falls back to
// the wrapped repository on a miss. Mappings are stored as:
//
//	SET quiz:room-code:{code} {roomID} EX ttl
//
// Shared across instances, so a room created on one node resolves from the
// cache on every other. Cache errors degrade to the wrapped repository.
type CodeCache struct {
	app.RoomRepository

	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewCodeCache(client *redis.Client, rooms app.RoomRepository, ttl time.Duration) *CodeCache {
	return &CodeCache{
		RoomRepository: rooms,
		client:         client,
		ttl:            ttl,
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CodeCache) GetByCode(ctx context.Context, code string) (domain.Room, error) {
	roomID, err := c.client.Get(ctx, c.key(code)).Result()
	if err == nil && roomID != "" {
		room, err := c.RoomRepository.GetByID(ctx, roomID)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, domain.ErrRoomNotFound) {
			return domain.Room{}, err
		}
		_ = c.client.Del(ctx, c.key(code)).Err()
	}

	result, err, _ := c.sf.Do(code, func() (interface{}, error) {
		room, err := c.RoomRepository.GetByCode(ctx, code)
		if err != nil {
			return domain.Room{}, err
		}
		// best-effort fill
		_ = c.client.Set(ctx, c.key(code), room.ID, c.ttlWithJitter()).Err()
		return room, nil
	})
	if err != nil {
		return domain.Room{}, err
	}
	return result.(domain.Room), nil
}

// CodeExists answers from Redis when the code is cached.
func (c *CodeCache) CodeExists(ctx context.Context, code string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(code)).Result()
	if err == nil && n > 0 {
		return true, nil
	}
	return c.RoomRepository.CodeExists(ctx, code)
}

func (c *CodeCache) key(code string) string {
	return "quiz:room-code:" + code
}

func (c *CodeCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
