package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"bybitconn/config"
	"bybitconn/models"
	"bybitconn/sign"
)

func wsTestConfig(url string) *config.Config {
	return &config.Config{
		Ws: config.WsConfig{
			PublicURL:         url,
			PrivateURL:        url,
			ConnectTimeout:    config.Duration(2 * time.Second),
			AuthTimeout:       config.Duration(2 * time.Second),
			WriteTimeout:      config.Duration(time.Second),
			HeartbeatInterval: config.Duration(30 * time.Millisecond),
			StaleMultiplier:   2,
			ReconnectMin:      config.Duration(10 * time.Millisecond),
			ReconnectMax:      config.Duration(50 * time.Millisecond),
			MaxTopicsPerFrame: 10,
			ConsumerBuffer:    16,
		},
		Credentials: config.CredentialsConfig{
			APIKey:    "test-key",
			APISecret: "test-secret",
		},
	}
}

// newWsServer runs a websocket endpoint whose handler is invoked once per
// connection with a 1-based connection number.
func newWsServer(t *testing.T, handler func(conn *websocket.Conn, connNum int)) (*httptest.Server, string, *int32) {
	t.Helper()
	var upgrader websocket.Upgrader
	var connCount int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()
		handler(conn, int(atomic.AddInt32(&connCount, 1)))
	}))
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http"), &connCount
}

func ackFrame(reqID, op string) map[string]interface{} {
	return map[string]interface{}{"success": true, "op": op, "req_id": reqID}
}

func waitForState(t *testing.T, s *Session, want ConnectionState) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if s.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state never reached %s, stuck at %s", want, s.State())
}

func waitForAck(t *testing.T, ack <-chan error) error {
	t.Helper()
	select {
	case err := <-ack:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("subscribe acknowledgement never resolved")
		return nil
	}
}

// After a dropped connection the session must re-subscribe everything the
// registry holds, in the order the topics were first registered.
func TestReplaysSubscriptionsAfterReconnect(t *testing.T) {
	replayed := make(chan []string, 8)
	srv, url, _ := newWsServer(t, func(conn *websocket.Conn, connNum int) {
		for {
			var req models.WsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req.Op {
			case "subscribe":
				conn.WriteJSON(ackFrame(req.ReqID, "subscribe"))
				if connNum == 1 {
					return // drop the first connection once it is established
				}
				replayed <- req.Args
			case "ping":
				conn.WriteJSON(map[string]string{"op": "pong"})
			}
		}
	})
	defer srv.Close()

	s, err := NewSession(wsTestConfig(url), false)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	topics := []string{
		models.TradeTopic("btcusdt"),
		models.TickerTopic("ethusdt"),
		models.OrderbookTopic(50, "solusdt"),
	}
	ch := make(chan models.WsDataMessage, 16)
	for _, topic := range topics {
		s.Subscribe(topic, ch)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	select {
	case args := <-replayed:
		if len(args) != len(topics) {
			t.Fatalf("replayed %d topics, want %d: %v", len(args), len(topics), args)
		}
		for i, topic := range topics {
			if args[i] != topic {
				t.Errorf("replay position %d: got %s want %s", i, args[i], topic)
			}
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no replay observed after reconnect")
	}
}

func TestHeartbeatKeepsSessionActive(t *testing.T) {
	pings := make(chan struct{}, 64)
	srv, url, connCount := newWsServer(t, func(conn *websocket.Conn, connNum int) {
		for {
			var req models.WsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req.Op {
			case "subscribe":
				conn.WriteJSON(ackFrame(req.ReqID, "subscribe"))
			case "ping":
				conn.WriteJSON(map[string]string{"op": "pong"})
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	})
	defer srv.Close()

	cfg := wsTestConfig(url)
	s, err := NewSession(cfg, false)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	ch := make(chan models.WsDataMessage, 16)
	ack := s.Subscribe(models.TradeTopic("BTCUSDT"), ch)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	if err := waitForAck(t, ack); err != nil {
		t.Fatalf("subscribe rejected: %v", err)
	}
	waitForState(t, s, StateActive)

	// Outlive ten heartbeat cycles; a healthy ping/pong exchange must keep
	// the single connection alive the whole time.
	time.Sleep(12 * cfg.Ws.HeartbeatInterval.Std())
	if got := s.State(); got != StateActive {
		t.Errorf("state degraded to %s", got)
	}
	if n := atomic.LoadInt32(connCount); n != 1 {
		t.Errorf("expected exactly 1 connection, got %d", n)
	}
	if len(pings) == 0 {
		t.Error("no pings observed over ten heartbeat cycles")
	}
}

// A server that swallows pings must be declared stale and replaced by exactly
// one new connection.
func TestStaleConnectionTriggersSingleReconnect(t *testing.T) {
	srv, url, connCount := newWsServer(t, func(conn *websocket.Conn, connNum int) {
		for {
			var req models.WsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req.Op {
			case "subscribe":
				conn.WriteJSON(ackFrame(req.ReqID, "subscribe"))
			case "ping":
				if connNum > 1 {
					conn.WriteJSON(map[string]string{"op": "pong"})
				}
			}
		}
	})
	defer srv.Close()

	cfg := wsTestConfig(url)
	s, err := NewSession(cfg, false)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	ch := make(chan models.WsDataMessage, 16)
	s.Subscribe(models.TickerTopic("BTCUSDT"), ch)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt32(connCount) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := atomic.LoadInt32(connCount); n != 2 {
		t.Fatalf("expected the stale connection to be replaced once, got %d connections", n)
	}

	// The second connection answers pings, so the session must settle there.
	waitForState(t, s, StateActive)
	time.Sleep(6 * cfg.Ws.HeartbeatInterval.Std())
	if n := atomic.LoadInt32(connCount); n != 2 {
		t.Errorf("healthy connection was reconnected again: %d connections", n)
	}
}

// Subscribing the same topic twice with the same consumer before the session
// connects must produce exactly one wire subscription.
func TestDuplicateSubscribeSendsOneFrame(t *testing.T) {
	frames := make(chan []string, 8)
	srv, url, _ := newWsServer(t, func(conn *websocket.Conn, connNum int) {
		for {
			var req models.WsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req.Op {
			case "subscribe":
				conn.WriteJSON(ackFrame(req.ReqID, "subscribe"))
				frames <- req.Args
			case "ping":
				conn.WriteJSON(map[string]string{"op": "pong"})
			}
		}
	})
	defer srv.Close()

	s, err := NewSession(wsTestConfig(url), false)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	topic := models.TradeTopic("BTCUSDT")
	ch := make(chan models.WsDataMessage, 16)
	first := s.Subscribe(topic, ch)
	second := s.Subscribe(topic, ch)

	if err := waitForAck(t, second); err != nil {
		t.Fatalf("duplicate subscribe must resolve as a no-op, got %v", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	if err := waitForAck(t, first); err != nil {
		t.Fatalf("subscribe rejected: %v", err)
	}

	select {
	case args := <-frames:
		if len(args) != 1 || args[0] != topic {
			t.Errorf("unexpected subscribe args: %v", args)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no subscribe frame observed")
	}
	select {
	case args := <-frames:
		t.Errorf("extra subscribe frame sent: %v", args)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPrivateSessionAuthenticates(t *testing.T) {
	srv, url, _ := newWsServer(t, func(conn *websocket.Conn, connNum int) {
		var req models.WsRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.Op != "auth" || len(req.Args) != 3 {
			t.Errorf("first frame must be auth with 3 args, got %+v", req)
			return
		}
		if req.Args[0] != "test-key" {
			t.Errorf("unexpected api key %q", req.Args[0])
		}
		expires, err := strconv.ParseInt(req.Args[1], 10, 64)
		if err != nil {
			t.Errorf("bad expires %q: %v", req.Args[1], err)
		}
		want, _ := sign.WsAuth("test-secret", expires)
		if req.Args[2] != want {
			t.Errorf("auth signature mismatch: got %s want %s", req.Args[2], want)
		}
		conn.WriteJSON(map[string]interface{}{"success": true, "op": "auth"})

		for {
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req.Op {
			case "subscribe":
				conn.WriteJSON(ackFrame(req.ReqID, "subscribe"))
			case "ping":
				conn.WriteJSON(map[string]string{"op": "pong"})
			}
		}
	})
	defer srv.Close()

	s, err := NewSession(wsTestConfig(url), true)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	ch := make(chan models.WsDataMessage, 16)
	ack := s.Subscribe(models.TopicOrder, ch)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	if err := waitForAck(t, ack); err != nil {
		t.Fatalf("private subscribe rejected: %v", err)
	}
	waitForState(t, s, StateActive)
}

// A rejected auth must stop the session instead of retrying forever, and
// resolve outstanding subscribes with the failure.
func TestAuthRejectionIsFatal(t *testing.T) {
	srv, url, connCount := newWsServer(t, func(conn *websocket.Conn, connNum int) {
		var req models.WsRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		conn.WriteJSON(map[string]interface{}{"success": false, "op": "auth", "ret_msg": "invalid api key"})
	})
	defer srv.Close()

	s, err := NewSession(wsTestConfig(url), true)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	ch := make(chan models.WsDataMessage, 16)
	ack := s.Subscribe(models.TopicPosition, ch)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	err = waitForAck(t, ack)
	var authErr *models.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %T: %v", err, err)
	}
	waitForState(t, s, StateDisconnected)
	if s.Err() == nil {
		t.Error("fatal error not recorded")
	}
	if n := atomic.LoadInt32(connCount); n != 1 {
		t.Errorf("auth rejection must not be retried, saw %d connections", n)
	}
	s.Close()
}

func TestExchangeRejectionRemovesTopic(t *testing.T) {
	srv, url, _ := newWsServer(t, func(conn *websocket.Conn, connNum int) {
		for {
			var req models.WsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req.Op {
			case "subscribe":
				conn.WriteJSON(map[string]interface{}{
					"success": false,
					"op":      "subscribe",
					"req_id":  req.ReqID,
					"ret_msg": "error:handler not found",
				})
			case "ping":
				conn.WriteJSON(map[string]string{"op": "pong"})
			}
		}
	})
	defer srv.Close()

	s, err := NewSession(wsTestConfig(url), false)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	topic := models.TradeTopic("NOSUCHPAIR")
	ch := make(chan models.WsDataMessage, 16)
	ack := s.Subscribe(topic, ch)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	err = waitForAck(t, ack)
	var exErr *models.ExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("expected ExchangeError, got %T: %v", err, err)
	}

	// The rejected topic must not come back on the next reconnect.
	deadline := time.Now().Add(time.Second)
	for s.Registry().Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Registry().Len() != 0 {
		t.Errorf("rejected topic still registered: %v", s.Registry().Topics())
	}
}

// An unsubscribe issued while the subscribe ack is still in flight must not
// leave the session believing the topic is on the wire: a later re-subscribe
// has to send a fresh frame, and the unsubscribe ack (not the late subscribe
// ack) resolves the unsubscribe waiter.
func TestUnsubscribeDuringPendingSubscribe(t *testing.T) {
	topic := models.TradeTopic("BTCUSDT")
	gotFirstSub := make(chan struct{})
	resubscribed := make(chan []string, 4)

	srv, url, _ := newWsServer(t, func(conn *websocket.Conn, connNum int) {
		readReq := func() (models.WsRequest, bool) {
			for {
				var req models.WsRequest
				if err := conn.ReadJSON(&req); err != nil {
					return req, false
				}
				if req.Op == "ping" {
					conn.WriteJSON(map[string]string{"op": "pong"})
					continue
				}
				return req, true
			}
		}

		firstSub, ok := readReq()
		if !ok || firstSub.Op != "subscribe" {
			t.Errorf("expected initial subscribe, got %+v", firstSub)
			return
		}
		close(gotFirstSub)

		// Hold the subscribe ack back until the unsubscribe arrives, then
		// deliver both acks in order.
		unsub, ok := readReq()
		if !ok || unsub.Op != "unsubscribe" {
			t.Errorf("expected unsubscribe, got %+v", unsub)
			return
		}
		conn.WriteJSON(ackFrame(firstSub.ReqID, "subscribe"))
		conn.WriteJSON(ackFrame(unsub.ReqID, "unsubscribe"))

		for {
			req, ok := readReq()
			if !ok {
				return
			}
			if req.Op == "subscribe" {
				conn.WriteJSON(ackFrame(req.ReqID, "subscribe"))
				resubscribed <- req.Args
			}
		}
	})
	defer srv.Close()

	s, err := NewSession(wsTestConfig(url), false)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	ch := make(chan models.WsDataMessage, 16)
	first := s.Subscribe(topic, ch)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	select {
	case <-gotFirstSub:
	case <-time.After(3 * time.Second):
		t.Fatal("initial subscribe frame never sent")
	}

	unsubAck := s.Unsubscribe(topic)
	if err := waitForAck(t, unsubAck); err != nil {
		t.Fatalf("unsubscribe rejected: %v", err)
	}
	if err := waitForAck(t, first); err != nil {
		t.Fatalf("initial subscribe rejected: %v", err)
	}

	again := s.Subscribe(topic, ch)
	select {
	case args := <-resubscribed:
		if len(args) != 1 || args[0] != topic {
			t.Errorf("unexpected re-subscribe args: %v", args)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("re-subscribe sent no frame; stale wire state survived the unsubscribe")
	}
	if err := waitForAck(t, again); err != nil {
		t.Fatalf("re-subscribe rejected: %v", err)
	}
}

func TestDataMessagesReachConsumer(t *testing.T) {
	topic := models.TradeTopic("BTCUSDT")
	srv, url, _ := newWsServer(t, func(conn *websocket.Conn, connNum int) {
		for {
			var req models.WsRequest
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req.Op {
			case "subscribe":
				conn.WriteJSON(ackFrame(req.ReqID, "subscribe"))
				conn.WriteJSON(map[string]interface{}{
					"topic": topic,
					"type":  "snapshot",
					"ts":    1700000000000,
					"data":  []map[string]string{{"p": "50000", "v": "0.1"}},
				})
			case "ping":
				conn.WriteJSON(map[string]string{"op": "pong"})
			}
		}
	})
	defer srv.Close()

	s, err := NewSession(wsTestConfig(url), false)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	ch := make(chan models.WsDataMessage, 16)
	s.Subscribe(topic, ch)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Close()

	select {
	case msg := <-ch:
		if msg.Topic != topic || msg.Type != "snapshot" || msg.TS != 1700000000000 {
			t.Errorf("unexpected message: %+v", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("data message never delivered")
	}
}

func TestPrivateTopicRejectedOnPublicSession(t *testing.T) {
	s, err := NewSession(wsTestConfig("ws://127.0.0.1:0"), false)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	ch := make(chan models.WsDataMessage, 1)
	err = waitForAck(t, s.Subscribe(models.TopicWallet, ch))
	var authErr *models.AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %T: %v", err, err)
	}
	if s.Registry().Len() != 0 {
		t.Error("rejected topic must not be registered")
	}
}

func TestPrivateSessionRequiresCredentials(t *testing.T) {
	cfg := wsTestConfig("ws://127.0.0.1:0")
	cfg.Credentials = config.CredentialsConfig{}
	if _, err := NewSession(cfg, true); err == nil {
		t.Fatal("private session without credentials must fail to construct")
	}
}

func TestCloseResolvesOutstandingAcks(t *testing.T) {
	// No server: the session keeps retrying the dial until closed.
	s, err := NewSession(wsTestConfig("ws://127.0.0.1:1"), false)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	ch := make(chan models.WsDataMessage, 1)
	ack := s.Subscribe(models.TradeTopic("BTCUSDT"), ch)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Close()

	if err := waitForAck(t, ack); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
	if s.State() != StateDisconnected {
		t.Errorf("state after close: %s", s.State())
	}
}
