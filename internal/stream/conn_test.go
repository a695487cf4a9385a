package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thientangreen/mirror-module/internal/auth"
)

// wsTestServer — mock WebSocket-сервера каталога.
type wsTestServer struct {
	srv       *httptest.Server
	upgrader  websocket.Upgrader
	dials     atomic.Int64
	authParam atomic.Value // последний query-параметр authorization
	subscribe atomic.Value // последний кадр подписки

	// события, отправляемые каждому подключившемуся клиенту
	events []Message
}

func newWSTestServer(events []Message) *wsTestServer {
	ts := &wsTestServer{events: events}
	ts.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.dials.Add(1)
		ts.authParam.Store(r.URL.Query().Get("authorization"))

		ws, err := ts.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()

		// Кадр подписки от клиента
		var sub Message
		if err := ws.ReadJSON(&sub); err != nil {
			return
		}
		ts.subscribe.Store(sub)

		// Подтверждение и события
		_ = ws.WriteJSON(Message{Event: "subscribed"})
		for _, ev := range ts.events {
			_ = ws.WriteJSON(ev)
		}

		// Держим соединение, пока клиент не закроет
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	return ts
}

func (ts *wsTestServer) wsURL(entity string) string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws/" + entity
}

func (ts *wsTestServer) Close() { ts.srv.Close() }

func rawJSON(s string) json.RawMessage { return json.RawMessage(s) }

func TestConn_ConnectSubscribeDispatch(t *testing.T) {
	ts := newWSTestServer([]Message{
		{Event: "product:created", Data: rawJSON(`{"product_id": "p1"}`)},
		{Event: "product:updated", Data: rawJSON(`{"product_id": "p1", "status": "Tốt"}`)},
	})
	defer ts.Close()

	creds := auth.NewCredentials(testLogger())
	creds.Set("tok-ws")

	type received struct {
		entity, action string
	}
	got := make(chan received, 10)

	conn := NewConn("product", ts.wsURL("product"), creds,
		ReconnectPolicy{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond},
		func(entity, action string, _ json.RawMessage) {
			got <- received{entity, action}
		},
		nil, testLogger(),
	)

	conn.Start(context.Background())
	defer conn.Stop()

	// Ждём оба события
	for _, want := range []received{{"product", "created"}, {"product", "updated"}} {
		select {
		case ev := <-got:
			if ev != want {
				t.Errorf("получено событие %+v, ожидается %+v", ev, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("событие %+v не получено", want)
		}
	}

	// Токен передан query-параметром authorization
	if auth, _ := ts.authParam.Load().(string); auth != "Bearer tok-ws" {
		t.Errorf("authorization = %q, ожидается Bearer tok-ws", auth)
	}

	// Первый кадр — подписка на комнату коллекции
	sub, _ := ts.subscribe.Load().(Message)
	if sub.Event != "subscribe" {
		t.Errorf("кадр подписки: event = %q, ожидается subscribe", sub.Event)
	}
	var room string
	_ = json.Unmarshal(sub.Data, &room)
	if room != "product-room" {
		t.Errorf("кадр подписки: data = %q, ожидается product-room", room)
	}
}

func TestConn_NoCredentialsNoDial(t *testing.T) {
	ts := newWSTestServer(nil)
	defer ts.Close()

	creds := auth.NewCredentials(testLogger())

	conn := NewConn("product", ts.wsURL("product"), creds,
		ReconnectPolicy{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond},
		func(_, _ string, _ json.RawMessage) {},
		nil, testLogger(),
	)

	conn.Start(context.Background())
	defer conn.Stop()

	// Без токена подключение не устанавливается
	time.Sleep(200 * time.Millisecond)
	if n := ts.dials.Load(); n != 0 {
		t.Fatalf("без учётных данных выполнено %d подключений, ожидается 0", n)
	}

	// Токен появился — подключение устанавливается
	creds.Set("tok-late")
	deadline := time.After(2 * time.Second)
	for ts.dials.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("после появления токена подключение не установлено")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestConn_ReconnectAfterDrop(t *testing.T) {
	var dials atomic.Int64
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := dials.Add(1)
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		var sub Message
		_ = ws.ReadJSON(&sub)
		if n == 1 {
			// Первое подключение рвём сразу после подписки
			ws.Close()
			return
		}
		defer ws.Close()
		_ = ws.WriteJSON(Message{Event: "product:created", Data: rawJSON(`{"product_id": "p1"}`)})
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	creds := auth.NewCredentials(testLogger())
	creds.Set("tok")

	got := make(chan struct{}, 1)
	conn := NewConn("product", "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/product", creds,
		ReconnectPolicy{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond},
		func(_, _ string, _ json.RawMessage) {
			select {
			case got <- struct{}{}:
			default:
			}
		},
		nil, testLogger(),
	)

	conn.Start(context.Background())
	defer conn.Stop()

	// После разрыва первого подключения событие приходит по второму
	select {
	case <-got:
	case <-time.After(3 * time.Second):
		t.Fatal("событие после переподключения не получено")
	}
	if dials.Load() < 2 {
		t.Errorf("выполнено %d подключений, ожидается минимум 2", dials.Load())
	}
}
