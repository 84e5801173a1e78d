package ws

import "bybitconn/models"

// ConnectionState tracks where a session is in its lifecycle. Transitions
// are driven only by the session's own goroutine.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateAuthenticating
	StateActive
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Consumer receives the data messages for one topic. Channels double as
// consumer identity: resubscribing with the same channel is a no-op while a
// different channel replaces the previous consumer.
type Consumer chan<- models.WsDataMessage

type commandOp int

const (
	opSubscribe commandOp = iota
	opUnsubscribe
)

// command is the message-passing interface into the session goroutine. The
// ack channel resolves once the exchange has confirmed (or rejected) the
// matching wire request.
type command struct {
	op    commandOp
	topic string
	ack   chan error
}
