// Package ws implements the Bybit v5 websocket session manager: connect,
// authenticate, subscribe, heartbeat, reconnect and dispatch. One Session
// owns one connection and one goroutine; callers talk to it through
// asynchronous subscribe/unsubscribe commands acknowledged via error
// channels.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"bybitconn/config"
	"bybitconn/logger"
	"bybitconn/models"
	"bybitconn/sign"
)

// ErrSessionClosed resolves outstanding acknowledgements when a session is
// closed before the exchange confirmed the request.
var ErrSessionClosed = errors.New("websocket session closed")

// pendingReq tracks one outstanding subscribe/unsubscribe wire request.
type pendingReq struct {
	op     commandOp
	topics []string
}

// waiterKey addresses acknowledgement waiters by topic and direction, so an
// unsubscribe waiter can never be resolved by a subscribe ack.
type waiterKey struct {
	topic string
	op    commandOp
}

// Session manages a single websocket connection. All connection state (the
// socket, pending requests, acknowledged topics) is owned by the session
// goroutine; the Registry is the only structure shared with callers.
type Session struct {
	name      string
	url       string
	private   bool
	apiKey    string
	apiSecret string
	cfg       config.WsConfig
	log       *logger.Log

	registry   *Registry
	dispatcher *Dispatcher

	cmdCh  chan command
	done   chan struct{}
	cancel context.CancelFunc

	mu       sync.Mutex
	running  bool
	fatalErr error

	state atomic.Int32

	// owned by the session goroutine
	waiters map[waiterKey][]chan error
}

// NewSession builds a session for the public or the private stream. A
// private session without credentials is a construction error: retrying
// would never make the key appear.
func NewSession(cfg *config.Config, private bool) (*Session, error) {
	url := cfg.Ws.PublicURL
	name := "ws_public"
	if private {
		if !cfg.Credentials.Configured() {
			return nil, &models.AuthError{Message: "credentials required for private stream"}
		}
		url = cfg.Ws.PrivateURL
		name = "ws_private"
	}
	registry := NewRegistry()
	s := &Session{
		name:       name,
		url:        url,
		private:    private,
		apiKey:     cfg.Credentials.APIKey,
		apiSecret:  cfg.Credentials.APISecret,
		cfg:        cfg.Ws,
		log:        logger.GetLogger(),
		registry:   registry,
		dispatcher: NewDispatcher(registry),
		cmdCh:      make(chan command, 128),
		done:       make(chan struct{}),
		waiters:    make(map[waiterKey][]chan error),
	}
	s.state.Store(int32(StateDisconnected))
	return s, nil
}

// Registry exposes the desired-subscription set, mainly for inspection.
func (s *Session) Registry() *Registry { return s.registry }

// Dispatcher exposes the message router, mainly for its drop counter.
func (s *Session) Dispatcher() *Dispatcher { return s.dispatcher }

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	return ConnectionState(s.state.Load())
}

// Err returns the fatal error that stopped the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fatalErr
}

// Start launches the session goroutine. It returns immediately; connection
// progress is observable through State and the subscribe acknowledgements.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("session %s already started", s.name)
	}
	s.running = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(runCtx)
	return nil
}

// Close shuts the session down from any state. It is idempotent, waits for
// the session goroutine to exit and leaves the state at Disconnected.
func (s *Session) Close() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		s.state.Store(int32(StateDisconnected))
		return
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	<-s.done
	// Commands that raced past the shutdown check still get an answer.
	for {
		select {
		case cmd := <-s.cmdCh:
			cmd.ack <- ErrSessionClosed
		default:
			s.state.Store(int32(StateDisconnected))
			return
		}
	}
}

// Subscribe registers a consumer for a topic. The registry is updated
// immediately, even before any connection exists; the wire frame is sent
// once the session is Active. The returned channel resolves with nil after
// the exchange acknowledges the subscription, or with the rejection error.
func (s *Session) Subscribe(topic string, consumer Consumer) <-chan error {
	ack := make(chan error, 1)
	if !s.private && models.IsPrivateTopic(topic) {
		ack <- &models.AuthError{Message: fmt.Sprintf("topic %s requires the private stream", topic)}
		return ack
	}

	added, replaced := s.registry.Subscribe(topic, consumer)
	if replaced {
		s.log.WithComponent(s.name).WithFields(logger.Fields{"topic": topic}).
			Warn("replacing consumer for already subscribed topic")
	}
	if !added && !replaced {
		// Same topic, same consumer: nothing to do on the wire.
		ack <- nil
		return ack
	}
	if !added {
		// Consumer swap only; the wire subscription is unchanged.
		ack <- nil
		return ack
	}

	s.enqueue(command{op: opSubscribe, topic: topic, ack: ack})
	return ack
}

// SubscribeChan is a convenience wrapper that allocates the consumer channel
// with the configured buffer size.
func (s *Session) SubscribeChan(topic string) (<-chan models.WsDataMessage, <-chan error) {
	ch := make(chan models.WsDataMessage, s.cfg.ConsumerBuffer)
	return ch, s.Subscribe(topic, ch)
}

// Unsubscribe removes a topic. The registry is updated immediately; the wire
// frame follows when the session is Active.
func (s *Session) Unsubscribe(topic string) <-chan error {
	ack := make(chan error, 1)
	if !s.registry.Unsubscribe(topic) {
		ack <- nil
		return ack
	}
	s.enqueue(command{op: opUnsubscribe, topic: topic, ack: ack})
	return ack
}

func (s *Session) enqueue(cmd command) {
	select {
	case <-s.done:
		cmd.ack <- ErrSessionClosed
		return
	default:
	}
	select {
	case s.cmdCh <- cmd:
	default:
		cmd.ack <- fmt.Errorf("session %s command queue full", s.name)
	}
}

func (s *Session) setState(next ConnectionState) {
	prev := ConnectionState(s.state.Swap(int32(next)))
	if prev != next {
		s.log.WithComponent(s.name).WithFields(logger.Fields{
			"from": prev.String(),
			"to":   next.String(),
		}).Debug("state transition")
	}
}

func (s *Session) setFatal(err error) {
	s.mu.Lock()
	s.fatalErr = err
	s.mu.Unlock()
}

// run is the session goroutine: a connect/serve loop with exponential,
// jittered backoff between attempts. Exactly one reconnect can be in flight
// because this loop is the only place that dials.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.setState(StateDisconnected)
	defer s.failOutstanding()

	log := s.log.WithComponent(s.name).WithFields(logger.Fields{"url": s.url})
	backoff := s.cfg.ReconnectMin.Std()

	for {
		if ctx.Err() != nil {
			return
		}
		s.setState(StateConnecting)

		conn, err := s.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("failed to connect websocket, retrying")
			logger.IncrementReconnect()
			s.setState(StateReconnecting)
			if !s.sleep(ctx, withJitter(backoff)) {
				return
			}
			backoff = s.nextBackoff(backoff)
			continue
		}

		if s.private {
			s.setState(StateAuthenticating)
			if err := s.authenticate(conn); err != nil {
				conn.Close()
				if ctx.Err() != nil {
					return
				}
				// A rejected or timed out auth will not fix itself;
				// stop and report instead of hammering the endpoint.
				s.setFatal(err)
				log.WithError(err).Error("websocket authentication failed")
				return
			}
		}

		s.setState(StateActive)
		backoff = s.cfg.ReconnectMin.Std()
		log.Info("websocket session active")

		err = s.serve(ctx, conn)
		conn.Close()
		if errors.Is(err, ErrSessionClosed) || ctx.Err() != nil {
			return
		}

		log.WithError(err).Warn("websocket connection lost, reconnecting")
		logger.IncrementReconnect()
		s.setState(StateReconnecting)
		if !s.sleep(ctx, withJitter(backoff)) {
			return
		}
		backoff = s.nextBackoff(backoff)
	}
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.ConnectTimeout.Std()}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return nil, &models.TransportError{Op: "dial " + s.url, Err: err}
	}
	conn.SetReadLimit(2 << 20)
	return conn, nil
}

// authenticate sends the auth op and waits for its acknowledgement. Both a
// rejection and a timeout are fatal for the session.
func (s *Session) authenticate(conn *websocket.Conn) error {
	expires := time.Now().UnixMilli() + s.cfg.AuthTimeout.Std().Milliseconds() + 1000
	signature, err := sign.WsAuth(s.apiSecret, expires)
	if err != nil {
		return &models.AuthError{Message: err.Error()}
	}

	frame := models.WsRequest{
		Op:   "auth",
		Args: []string{s.apiKey, strconv.FormatInt(expires, 10), signature},
	}
	if err := s.writeJSON(conn, frame); err != nil {
		return &models.TransportError{Op: "auth write", Err: err}
	}

	deadline := time.Now().Add(s.cfg.AuthTimeout.Std())
	if err := conn.SetReadDeadline(deadline); err != nil {
		return &models.TransportError{Op: "auth deadline", Err: err}
	}
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return &models.AuthError{Message: "authentication ack timeout"}
			}
			return &models.TransportError{Op: "auth read", Err: err}
		}
		var reply models.WsFrame
		if err := json.Unmarshal(data, &reply); err != nil {
			continue
		}
		if reply.Kind() != models.FrameAuthAck {
			continue
		}
		if reply.Success == nil || !*reply.Success {
			return &models.AuthError{Message: reply.RetMsg}
		}
		return conn.SetReadDeadline(time.Time{})
	}
}

// serve owns one live connection until it dies or the session closes. It is
// the single writer for the socket and the single reader of command and
// inbound frame channels, so reconnect triggers cannot race each other.
func (s *Session) serve(ctx context.Context, conn *websocket.Conn) error {
	type readResult struct {
		data []byte
		err  error
	}
	readCh := make(chan readResult)
	readerDone := make(chan struct{})
	defer close(readerDone)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			select {
			case readCh <- readResult{data: data, err: err}:
			case <-readerDone:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	// Per-connection wire state. The registry survives reconnects; these do
	// not.
	pending := make(map[string]pendingReq)
	inflight := make(map[string]bool)
	wire := make(map[string]bool)

	if err := s.replay(conn, pending, inflight); err != nil {
		return err
	}

	heartbeat := s.cfg.HeartbeatInterval.Std()
	staleAfter := time.Duration(s.cfg.StaleMultiplier) * heartbeat
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	lastTraffic := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ErrSessionClosed

		case cmd := <-s.cmdCh:
			if err := s.handleCommand(conn, cmd, pending, inflight, wire); err != nil {
				return err
			}

		case res := <-readCh:
			if res.err != nil {
				return &models.TransportError{Op: "read", Err: res.err}
			}
			lastTraffic = time.Now()
			logger.IncrementWsRead()
			if err := s.handleFrame(res.data, pending, inflight, wire); err != nil {
				return err
			}

		case <-ticker.C:
			// The socket is not trusted merely because it has not errored:
			// silence past the stale window means the connection is dead.
			if time.Since(lastTraffic) > staleAfter {
				return &models.TransportError{
					Op:  "heartbeat",
					Err: fmt.Errorf("no traffic for %s", staleAfter),
				}
			}
			if err := s.writeJSON(conn, models.WsRequest{ReqID: reqID(), Op: "ping"}); err != nil {
				return &models.TransportError{Op: "ping", Err: err}
			}
		}
	}
}

// replay re-issues one subscribe per registry topic, batched, in insertion
// order, so the wire state converges to the registry after every reconnect.
func (s *Session) replay(conn *websocket.Conn, pending map[string]pendingReq, inflight map[string]bool) error {
	topics := s.registry.Topics()

	// Waiters for topics the registry no longer wants are satisfied by the
	// fresh connection itself: it never subscribed them.
	wanted := make(map[string]bool, len(topics))
	for _, t := range topics {
		wanted[t] = true
	}
	for key := range s.waiters {
		if !wanted[key.topic] {
			s.resolveWaiters(key.topic, key.op, nil)
		}
	}

	for start := 0; start < len(topics); start += s.cfg.MaxTopicsPerFrame {
		end := start + s.cfg.MaxTopicsPerFrame
		if end > len(topics) {
			end = len(topics)
		}
		chunk := topics[start:end]

		id := reqID()
		if err := s.writeJSON(conn, models.WsRequest{ReqID: id, Op: "subscribe", Args: chunk}); err != nil {
			return &models.TransportError{Op: "subscribe write", Err: err}
		}
		pending[id] = pendingReq{op: opSubscribe, topics: chunk}
		for _, t := range chunk {
			inflight[t] = true
		}
	}
	if len(topics) > 0 {
		s.log.WithComponent(s.name).WithFields(logger.Fields{"topics": topics}).
			Info("replayed subscriptions")
	}
	return nil
}

func (s *Session) handleCommand(conn *websocket.Conn, cmd command, pending map[string]pendingReq, inflight, wire map[string]bool) error {
	switch cmd.op {
	case opSubscribe:
		if wire[cmd.topic] {
			cmd.ack <- nil
			return nil
		}
		s.addWaiter(cmd.topic, opSubscribe, cmd.ack)
		if inflight[cmd.topic] {
			return nil
		}
		id := reqID()
		if err := s.writeJSON(conn, models.WsRequest{ReqID: id, Op: "subscribe", Args: []string{cmd.topic}}); err != nil {
			return &models.TransportError{Op: "subscribe write", Err: err}
		}
		pending[id] = pendingReq{op: opSubscribe, topics: []string{cmd.topic}}
		inflight[cmd.topic] = true

	case opUnsubscribe:
		if !wire[cmd.topic] && !inflight[cmd.topic] {
			cmd.ack <- nil
			return nil
		}
		s.addWaiter(cmd.topic, opUnsubscribe, cmd.ack)
		id := reqID()
		if err := s.writeJSON(conn, models.WsRequest{ReqID: id, Op: "unsubscribe", Args: []string{cmd.topic}}); err != nil {
			return &models.TransportError{Op: "unsubscribe write", Err: err}
		}
		pending[id] = pendingReq{op: opUnsubscribe, topics: []string{cmd.topic}}
		delete(wire, cmd.topic)
		delete(inflight, cmd.topic)
	}
	return nil
}

// handleFrame decodes one inbound message and routes it by its envelope tag.
// A frame that fails to decode is a connection-level protocol error; an
// unknown tag is logged and counted but does not kill the connection.
func (s *Session) handleFrame(data []byte, pending map[string]pendingReq, inflight, wire map[string]bool) error {
	var frame models.WsFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return &models.ProtocolError{Reason: "malformed frame", Err: err}
	}

	switch frame.Kind() {
	case models.FramePong:
		// Traffic bookkeeping already happened; nothing else to do.

	case models.FrameAuthAck:
		// Late auth acks can show up when the server re-sends; ignore.

	case models.FrameSubscriptionAck:
		req, ok := pending[frame.ReqID]
		if !ok {
			s.log.WithComponent(s.name).WithFields(logger.Fields{"req_id": frame.ReqID}).
				Warn("acknowledgement for unknown request")
			return nil
		}
		delete(pending, frame.ReqID)
		for _, topic := range req.topics {
			delete(inflight, topic)
			if req.op == opSubscribe {
				// An unsubscribe issued while this request was in flight
				// supersedes it; only acks for topics the registry still
				// wants may touch the wire state.
				if _, wanted := s.registry.Consumer(topic); wanted {
					wire[topic] = true
				}
			}
			s.resolveWaiters(topic, req.op, nil)
		}

	case models.FrameError:
		req, ok := pending[frame.ReqID]
		if !ok {
			s.log.WithComponent(s.name).WithFields(logger.Fields{
				"req_id":  frame.ReqID,
				"ret_msg": frame.RetMsg,
			}).Warn("error for unknown request")
			return nil
		}
		delete(pending, frame.ReqID)
		reqErr := &models.ExchangeError{Message: frame.RetMsg}
		for _, topic := range req.topics {
			delete(inflight, topic)
			if req.op == opSubscribe {
				// The exchange refused the topic; retrying it on every
				// reconnect would refuse forever.
				s.registry.Unsubscribe(topic)
			}
			s.resolveWaiters(topic, req.op, reqErr)
		}

	case models.FrameData:
		s.dispatcher.Dispatch(models.WsDataMessage{
			Topic: frame.Topic,
			Type:  frame.Type,
			TS:    frame.TS,
			Data:  frame.Data,
		})

	default:
		perr := &models.ProtocolError{Reason: fmt.Sprintf("unknown frame op %q", frame.Op)}
		s.log.WithComponent(s.name).WithError(perr).Warn("ignoring unclassifiable frame")
	}
	return nil
}

func (s *Session) addWaiter(topic string, op commandOp, ack chan error) {
	key := waiterKey{topic: topic, op: op}
	s.waiters[key] = append(s.waiters[key], ack)
}

func (s *Session) resolveWaiters(topic string, op commandOp, err error) {
	key := waiterKey{topic: topic, op: op}
	for _, ack := range s.waiters[key] {
		ack <- err
	}
	delete(s.waiters, key)
}

// failOutstanding resolves every queued command and waiter when the session
// stops, so no caller is left blocked on an acknowledgement.
func (s *Session) failOutstanding() {
	err := s.Err()
	if err == nil {
		err = ErrSessionClosed
	}
	for {
		select {
		case cmd := <-s.cmdCh:
			cmd.ack <- err
		default:
			for key := range s.waiters {
				s.resolveWaiters(key.topic, key.op, err)
			}
			return
		}
	}
}

func (s *Session) writeJSON(conn *websocket.Conn, v interface{}) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout.Std())); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

// sleep waits for the given duration unless the context ends first.
func (s *Session) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (s *Session) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > s.cfg.ReconnectMax.Std() {
		return s.cfg.ReconnectMax.Std()
	}
	return next
}

// withJitter spreads reconnect attempts so a fleet of connectors does not
// stampede the endpoint after an outage.
func withJitter(d time.Duration) time.Duration {
	if d <= 1 {
		return d
	}
	half := int64(d) / 2
	return time.Duration(half + rand.Int63n(half+1))
}

func reqID() string {
	return uuid.NewString()[:8]
}
