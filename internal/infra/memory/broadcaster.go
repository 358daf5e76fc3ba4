package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"live-quiz-service/internal/domain"
)

// DefaultSubscriberBuffer is the per-subscriber queue length.
const DefaultSubscriberBuffer = 32

// Broadcaster is an in-process topic hub. Each subscriber owns a bounded
// queue; when it is full the oldest queued message is dropped so a slow
// subscriber never blocks publishers. Nothing is retained for subscribers
// that connect later.
type Broadcaster struct {
	buffer int

	mu     sync.Mutex
	topics map[string]map[chan []byte]struct{}
}

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Broadcaster{
		buffer: buffer,
		topics: make(map[string]map[chan []byte]struct{}),
	}
}

// Publish encodes the event once and fans it out to the topic's subscribers.
func (b *Broadcaster) Publish(_ context.Context, topic string, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.Name, err)
	}
	b.Deliver(topic, payload)
	return nil
}

// Deliver fans out an already encoded message and reports how many
// subscribers it reached.
func (b *Broadcaster) Deliver(topic string, payload []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for ch := range subs {
		select {
		case ch <- payload:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- payload
		}
	}
	return len(subs)
}

// Subscribe registers a listener on topic. The caller must invoke the
// returned cancel function to avoid leaks; it closes the channel.
func (b *Broadcaster) Subscribe(topic string) (<-chan []byte, func()) {
	ch := make(chan []byte, b.buffer)

	b.mu.Lock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[chan []byte]struct{})
		b.topics[topic] = subs
	}
	subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if subs, ok := b.topics[topic]; ok {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.topics, topic)
				}
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers reports the number of live subscriptions on topic.
func (b *Broadcaster) Subscribers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}
