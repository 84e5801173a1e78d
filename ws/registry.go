package ws

import (
	"sync"

	"bybitconn/models"
)

// Registry is the single source of truth for which topics should be
// subscribed. Insertion order is preserved so replay after a reconnect is
// deterministic; the session converges the wire state to this set every time
// it reaches Active.
type Registry struct {
	mu        sync.Mutex
	order     []string
	consumers map[string]Consumer
}

func NewRegistry() *Registry {
	return &Registry{consumers: make(map[string]Consumer)}
}

// Subscribe records a topic. Returns added=true for a brand new topic and
// replaced=true when an existing topic was re-registered with a different
// consumer. Subscribing an existing topic with the same consumer reports
// (false, false) and changes nothing.
func (r *Registry) Subscribe(topic string, consumer Consumer) (added, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.consumers[topic]
	if exists {
		if current == consumer {
			return false, false
		}
		r.consumers[topic] = consumer
		return false, true
	}
	r.consumers[topic] = consumer
	r.order = append(r.order, topic)
	return true, false
}

// Unsubscribe removes a topic. Returns false when the topic was not present.
func (r *Registry) Unsubscribe(topic string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.consumers[topic]; !exists {
		return false
	}
	delete(r.consumers, topic)
	for i, t := range r.order {
		if t == topic {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Topics returns the desired topic set in insertion order.
func (r *Registry) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Consumer looks up the consumer registered for a topic.
func (r *Registry) Consumer(topic string) (Consumer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.consumers[topic]
	return c, ok
}

// Len returns the number of registered topics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// HasPrivate reports whether any registered topic needs authentication.
func (r *Registry) HasPrivate() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.order {
		if models.IsPrivateTopic(t) {
			return true
		}
	}
	return false
}
