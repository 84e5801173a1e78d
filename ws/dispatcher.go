package ws

import (
	"sync/atomic"

	"bybitconn/logger"
	"bybitconn/models"
)

// Dispatcher routes decoded data messages to the consumer registered for
// their topic. Messages without a consumer (a race during unsubscribe) or
// with a full consumer buffer are dropped and counted, never fatal.
type Dispatcher struct {
	registry *Registry
	log      *logger.Log
	dropped  int64
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry, log: logger.GetLogger()}
}

// Dispatch delivers one message. Returns false when the message was dropped.
func (d *Dispatcher) Dispatch(msg models.WsDataMessage) bool {
	consumer, ok := d.registry.Consumer(msg.Topic)
	if !ok {
		d.drop(msg.Topic, "no consumer registered")
		return false
	}
	select {
	case consumer <- msg:
		return true
	default:
		d.drop(msg.Topic, "consumer buffer full")
		return false
	}
}

// Dropped returns how many messages this dispatcher has discarded.
func (d *Dispatcher) Dropped() int64 {
	return atomic.LoadInt64(&d.dropped)
}

func (d *Dispatcher) drop(topic, reason string) {
	atomic.AddInt64(&d.dropped, 1)
	logger.IncrementDropped()
	d.log.WithComponent("ws_dispatcher").WithFields(logger.Fields{
		"topic":  topic,
		"reason": reason,
	}).Debug("dropped data message")
}
