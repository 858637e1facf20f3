package socket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsServer(t *testing.T, onConnect func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		onConnect(conn, r)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testConfig() Config {
	return Config{ConnectTimeout: 2 * time.Second}
}

func TestDial_AssignsID(t *testing.T) {
	authHeader := make(chan string, 1)
	srv := wsServer(t, func(conn *websocket.Conn, r *http.Request) {
		authHeader <- r.Header.Get("Authorization")
		conn.WriteJSON(Event{Event: "connected", ID: "sock-123"})
	})

	ch, err := Dial(context.Background(), wsURL(srv), "tkn", testConfig())
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer ch.Close()

	if got := ch.ID(); got != "sock-123" {
		t.Errorf("ID() = %q, want sock-123", got)
	}
	if got := <-authHeader; got != "Bearer tkn" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tkn")
	}
}

func TestDial_HandshakeRejected(t *testing.T) {
	tests := []struct {
		name  string
		first Event
	}{
		{"wrong event", Event{Event: "hello", ID: "x"}},
		{"missing id", Event{Event: "connected"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := wsServer(t, func(conn *websocket.Conn, r *http.Request) {
				conn.WriteJSON(tt.first)
			})

			_, err := Dial(context.Background(), wsURL(srv), "", testConfig())
			if !errors.Is(err, ErrHandshake) {
				t.Errorf("Dial() error = %v, want ErrHandshake", err)
			}
		})
	}
}

func TestDial_NoConnectedEvent(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn, r *http.Request) {})

	_, err := Dial(context.Background(), wsURL(srv), "", Config{ConnectTimeout: 100 * time.Millisecond})
	if !errors.Is(err, ErrHandshake) {
		t.Errorf("Dial() error = %v, want ErrHandshake", err)
	}
}

func TestDial_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	if _, err := Dial(context.Background(), url, "", testConfig()); err == nil {
		t.Error("expected dial error")
	}
}

func TestChannel_Close(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.WriteJSON(Event{Event: "connected", ID: "sock-1"})
	})

	ch, err := Dial(context.Background(), wsURL(srv), "", testConfig())
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}

	ch.Close()
	ch.Close()

	select {
	case <-ch.Done():
	case <-time.After(time.Second):
		t.Fatal("Done() not closed after Close()")
	}
	if got := ch.ID(); got != "" {
		t.Errorf("ID() after close = %q, want empty", got)
	}
}

func TestChannel_ServerDisconnect(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.WriteJSON(Event{Event: "connected", ID: "sock-1"})
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
		conn.Close()
	})

	ch, err := Dial(context.Background(), wsURL(srv), "", testConfig())
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}

	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after server disconnect")
	}
}

func TestChannel_NilSafe(t *testing.T) {
	var ch *Channel
	if got := ch.ID(); got != "" {
		t.Errorf("nil ID() = %q, want empty", got)
	}
	if err := ch.Close(); err != nil {
		t.Errorf("nil Close() = %v", err)
	}
}

func TestChannel_SurvivesNonEventFrames(t *testing.T) {
	sent := make(chan struct{})
	srv := wsServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.WriteJSON(Event{Event: "connected", ID: "sock-1"})
		conn.WriteMessage(websocket.TextMessage, []byte("hello"))
		conn.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		conn.WriteMessage(websocket.TextMessage, []byte(`{"foo":1}`))
		conn.WriteJSON(Event{Event: "orders_register"})
		close(sent)
	})

	ch, err := Dial(context.Background(), wsURL(srv), "", testConfig())
	if err != nil {
		t.Fatalf("Dial() failed: %v", err)
	}
	defer ch.Close()

	<-sent
	select {
	case <-ch.Done():
		t.Fatal("channel closed after non-event frames")
	case <-time.After(200 * time.Millisecond):
	}
	if got := ch.ID(); got != "sock-1" {
		t.Errorf("ID() = %q, want sock-1", got)
	}
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name    string
		msgType int
		data    string
		want    string
		ok      bool
	}{
		{"event", websocket.TextMessage, `{"event":"message_added"}`, "message_added", true},
		{"padded event", websocket.TextMessage, " \n{\"event\":\"update_order\"}", "update_order", true},
		{"plain text", websocket.TextMessage, "pong", "", false},
		{"object without event", websocket.TextMessage, `{"id":"x"}`, "", false},
		{"broken json", websocket.TextMessage, `{"event":`, "", false},
		{"binary", websocket.BinaryMessage, `{"event":"connected"}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := decodeEvent(tt.msgType, []byte(tt.data))
			if ok != tt.ok || ev.Event != tt.want {
				t.Errorf("decodeEvent() = %q, %v, want %q, %v", ev.Event, ok, tt.want, tt.ok)
			}
		})
	}
}
