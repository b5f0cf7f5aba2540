package ws_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/regionpulse/regionpulse/server/internal/api"
	"github.com/regionpulse/regionpulse/server/internal/dataset"
	wsHub "github.com/regionpulse/regionpulse/server/internal/ws"
)

// --- helpers ----------------------------------------------------------------

func newQuerier(recs ...dataset.Record) *api.Handler {
	h := api.New(api.Options{DefaultThresholdMs: 180})
	if recs != nil {
		h.SetDataset(dataset.New(recs, "test"))
	}
	return h
}

func usEast() []dataset.Record {
	return []dataset.Record{
		{Region: "us-east", LatencyMs: 100, UptimePct: 99.9},
		{Region: "us-east", LatencyMs: 300, UptimePct: 99.5},
	}
}

// startHub starts a test HTTP server with the hub as its handler.
// The hub's Run loop is started with a cancellable context.
// Returns the ws:// URL, the hub, and a cancel function.
func startHub(t *testing.T, q wsHub.Querier) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(q)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

// dial connects a WebSocket client to wsURL and returns the connection.
func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// roundTrip sends one text frame and decodes the reply.
func roundTrip(t *testing.T, conn *websocket.Conn, frame string) wsHub.Message {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m wsHub.Message
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal %s: %v", msg, err)
	}
	return m
}

// --- tests ------------------------------------------------------------------

func TestHub_AnswersQuery(t *testing.T) {
	wsURL, _, _ := startHub(t, newQuerier(usEast()...))
	conn := dial(t, wsURL)

	m := roundTrip(t, conn, `{"regions":["us-east","eu-west"],"threshold_ms":150}`)
	if m.Event != wsHub.EventResult {
		t.Fatalf("event: got %q, want result (error %q)", m.Event, m.Error)
	}
	if m.Data == nil || len(m.Data.Regions) != 2 {
		t.Fatalf("data: got %+v", m.Data)
	}
	got := m.Data.Regions[0]
	if got.AvgLatency != 200 || got.P95Latency != 290 || got.AvgUptime != 99.7 || got.Breaches != 1 {
		t.Errorf("us-east: got %+v", got)
	}
	if m.Data.Regions[1].Region != "eu-west" || m.Data.Regions[1].AvgLatency != 0 {
		t.Errorf("eu-west: got %+v", m.Data.Regions[1])
	}
}

func TestHub_RepliesInOrder(t *testing.T) {
	wsURL, _, _ := startHub(t, newQuerier(usEast()...))
	conn := dial(t, wsURL)

	for _, threshold := range []string{"50", "150", "400"} {
		if err := conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"regions":["us-east"],"threshold_ms":`+threshold+`}`)); err != nil {
			t.Fatalf("WriteMessage: %v", err)
		}
	}

	want := []int{2, 1, 0}
	for i, w := range want {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("reply %d: %v", i, err)
		}
		var m wsHub.Message
		json.Unmarshal(msg, &m) //nolint:errcheck
		if m.Data == nil || m.Data.Regions[0].Breaches != w {
			t.Errorf("reply %d: got %s, want breaches %d", i, msg, w)
		}
	}
}

func TestHub_MalformedFrame(t *testing.T) {
	wsURL, _, _ := startHub(t, newQuerier(usEast()...))
	conn := dial(t, wsURL)

	m := roundTrip(t, conn, `{"regions":null}`)
	if m.Event != wsHub.EventError {
		t.Fatalf("event: got %q, want error", m.Event)
	}
	if !strings.HasPrefix(m.Error, "malformed input") {
		t.Errorf("error: got %q", m.Error)
	}

	// The connection stays usable after an error reply.
	if m := roundTrip(t, conn, `{"regions":["us-east"]}`); m.Event != wsHub.EventResult {
		t.Errorf("follow-up event: got %q, want result", m.Event)
	}
}

func TestHub_NotReady(t *testing.T) {
	wsURL, _, _ := startHub(t, newQuerier())
	conn := dial(t, wsURL)

	m := roundTrip(t, conn, `{"regions":["us-east"]}`)
	if m.Event != wsHub.EventError || m.Error != "dataset loading" {
		t.Errorf("got %+v, want dataset loading error", m)
	}
}

func TestHub_CountClients_MultipleClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, newQuerier(usEast()...))

	for i := 0; i < 3; i++ {
		conn := dial(t, wsURL)
		roundTrip(t, conn, `{"regions":[]}`) // ensures the client is registered
	}

	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}
}

func TestHub_CountClients_DecreasesOnDisconnect(t *testing.T) {
	wsURL, hub, _ := startHub(t, newQuerier(usEast()...))

	conn := dial(t, wsURL)
	roundTrip(t, conn, `{"regions":[]}`)

	if n := hub.Count(); n != 1 {
		t.Errorf("Count before disconnect: got %d, want 1", n)
	}

	conn.Close()
	time.Sleep(50 * time.Millisecond) // let readPump detect the close

	if n := hub.Count(); n != 0 {
		t.Errorf("Count after disconnect: got %d, want 0", n)
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, newQuerier(usEast()...))

	conn := dial(t, wsURL)
	roundTrip(t, conn, `{"regions":[]}`)

	cancel() // signal shutdown

	// The client observes a close frame.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("ReadMessage after cancel: got %v, want going-away close", err)
	}
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(newQuerier())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	// Plain HTTP GET without WebSocket upgrade headers -> 400
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}

func TestHub_ThroughAPIRouter(t *testing.T) {
	h := newQuerier(usEast()...)
	hub := wsHub.New(h)
	h.Handle("/ws/latency", hub)

	srv := httptest.NewServer(h)
	defer srv.Close()

	conn := dial(t, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/latency")
	if m := roundTrip(t, conn, `{"regions":["us-east"]}`); m.Event != wsHub.EventResult {
		t.Errorf("event: got %q, want result", m.Event)
	}
}
