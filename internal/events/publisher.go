package events

import (
	"sync"
	"sync/atomic"
)

// GlobalTopic receives every published event.
const GlobalTopic = "*"

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 100

// Publisher fans change events out to subscribers. A topic is a task ID,
// a project ID or GlobalTopic.
type Publisher interface {
	Publish(event Event)
	Subscribe(topic string) <-chan Event
	// Unsubscribe closes ch and stops delivery to it.
	Unsubscribe(topic string, ch <-chan Event)
	Close()
}

// MemoryPublisher is the in-process Publisher used by the engine.
// Delivery never blocks the publisher; a subscriber whose buffer is full
// misses the event and the miss is counted.
type MemoryPublisher struct {
	mu      sync.RWMutex
	topics  map[string][]chan Event
	buffer  int
	closed  bool
	dropped atomic.Uint64
}

// PublisherOption configures a MemoryPublisher.
type PublisherOption func(*MemoryPublisher)

// WithBufferSize sets the subscriber channel capacity.
func WithBufferSize(size int) PublisherOption {
	return func(p *MemoryPublisher) { p.buffer = size }
}

func NewMemoryPublisher(opts ...PublisherOption) *MemoryPublisher {
	p := &MemoryPublisher{topics: make(map[string][]chan Event), buffer: DefaultBufferSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish delivers event to subscribers of its task, of its project and
// of GlobalTopic. A channel subscribed under several matching topics gets
// the event once per topic.
func (p *MemoryPublisher) Publish(event Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	for _, topic := range eventTopics(event) {
		for _, ch := range p.topics[topic] {
			select {
			case ch <- event:
			default:
				p.dropped.Add(1)
			}
		}
	}
}

func eventTopics(e Event) []string {
	topics := make([]string, 0, 3)
	if e.TaskID != "" && e.TaskID != GlobalTopic {
		topics = append(topics, e.TaskID)
	}
	if e.ProjectID != "" && e.ProjectID != GlobalTopic && e.ProjectID != e.TaskID {
		topics = append(topics, e.ProjectID)
	}
	return append(topics, GlobalTopic)
}

// Subscribe registers a buffered channel for topic. After Close it returns
// an already closed channel.
func (p *MemoryPublisher) Subscribe(topic string) <-chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	ch := make(chan Event, p.buffer)
	p.topics[topic] = append(p.topics[topic], ch)
	return ch
}

func (p *MemoryPublisher) Unsubscribe(topic string, ch <-chan Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	subs := p.topics[topic]
	for i := range subs {
		if subs[i] != ch {
			continue
		}
		close(subs[i])
		subs = append(subs[:i], subs[i+1:]...)
		break
	}
	if len(subs) == 0 {
		delete(p.topics, topic)
	} else {
		p.topics[topic] = subs
	}
}

// Close closes every subscriber channel. Later calls are no-ops.
func (p *MemoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, subs := range p.topics {
		for _, ch := range subs {
			close(ch)
		}
	}
	p.topics = nil
}

func (p *MemoryPublisher) SubscriberCount(topic string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.topics[topic])
}

// Dropped reports how many deliveries were skipped because a subscriber
// buffer was full.
func (p *MemoryPublisher) Dropped() uint64 {
	return p.dropped.Load()
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

func (NopPublisher) Subscribe(string) <-chan Event {
	ch := make(chan Event)
	close(ch)
	return ch
}

func (NopPublisher) Unsubscribe(string, <-chan Event) {}

func (NopPublisher) Close() {}
