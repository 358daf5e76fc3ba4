package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sink receives relayed messages; memory.Broadcaster satisfies it.
type Sink interface {
	Deliver(topic string, payload []byte) int
}

// Relay forwards every message published on a room topic into the local
// broadcaster, so websocket subscribers on this instance see events raised
// on any instance.
type Relay struct {
	client *redis.Client
	sink   Sink
	logger *zap.SugaredLogger

	sub  *redis.PubSub
	done chan struct{}
}

func NewRelay(client *redis.Client, sink Sink, logger *zap.SugaredLogger) *Relay {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Relay{client: client, sink: sink, logger: logger}
}

// Start subscribes and returns once Redis has confirmed the subscription.
// Messages are then forwarded in the background until Close or ctx ends.
func (r *Relay) Start(ctx context.Context) error {
	if r.sub != nil {
		return errors.New("relay already started")
	}
	sub := r.client.PSubscribe(ctx, TopicPattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", TopicPattern, err)
	}
	r.sub = sub
	r.done = make(chan struct{})
	go r.forward(ctx, sub.Channel())
	return nil
}

func (r *Relay) forward(ctx context.Context, messages <-chan *redis.Message) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			n := r.sink.Deliver(msg.Channel, []byte(msg.Payload))
			r.logger.Debugw("relayed event", "topic", msg.Channel, "subscribers", n)
		}
	}
}

// Close unsubscribes and waits for the forwarding goroutine to stop.
func (r *Relay) Close() error {
	if r.sub == nil {
		return nil
	}
	err := r.sub.Close()
	<-r.done
	return err
}
