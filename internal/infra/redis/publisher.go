package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"live-quiz-service/internal/domain"
)

// TopicPattern matches every room topic.
const TopicPattern = "room.*"

// Publisher implements app.Publisher with Redis PUBLISH, one channel per
// room topic. Pair it with a Relay on every instance that serves websocket
// subscribers.
type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, topic string, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Name, err)
	}
	if err := p.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("publish %s on %s: %w", event.Name, topic, err)
	}
	return nil
}
