package hub

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-snapocr/internal/log"
)

func TestNewHub(t *testing.T) {
	h := New("test", log.Discard())
	if h.ClientCount() != 0 {
		t.Error("ClientCount should be 0 initially")
	}
	if h.IsRunning() {
		t.Error("hub should not run before Run")
	}
}

func TestBroadcastWithoutClients(t *testing.T) {
	h := New("test", log.Discard())
	// Queue is buffered; must not block without a running loop.
	for i := 0; i < 300; i++ {
		h.Broadcast(NewJSONMessage([]byte(`{}`)))
	}
}

func TestRunStops(t *testing.T) {
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	if !h.IsRunning() {
		t.Error("IsRunning = false while running")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if NewClient(h, nil) != nil {
		t.Error("NewClient on stopped hub should return nil")
	}
}

func TestEventMessage(t *testing.T) {
	msg, err := NewEventMessage("session", map[string]string{"status": "idle"})
	if err != nil {
		t.Fatal(err)
	}
	var ev struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != "session" || ev.Data["status"] != "idle" || msg.Type != JSONMessage {
		t.Errorf("got %+v", ev)
	}
}

func TestWebSocketBroadcast(t *testing.T) {
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", fiberws.New(func(c *fiberws.Conn) {
		if client := NewClient(h, c); client != nil {
			client.Run()
		}
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go app.Listener(ln)
	defer app.Shutdown()

	// Sent before anyone connects; replayed on connect.
	if err := h.Publish("session", map[string]string{"status": "idle"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if string(data) != `{"type":"session","data":{"status":"idle"}}` {
		t.Errorf("replayed message = %s", data)
	}

	h.Publish("session", map[string]string{"status": "done"})
	_, data, err = ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if string(data) != `{"type":"session","data":{"status":"done"}}` {
		t.Errorf("broadcast message = %s", data)
	}

	if h.ClientCount() != 1 {
		t.Errorf("ClientCount = %d, want 1", h.ClientCount())
	}

	ws.Close()
	time.Sleep(100 * time.Millisecond)
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0 after disconnect", h.ClientCount())
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`{"type":"cancel"}`, "cancel", false},
		{`{"type":"stop","extra":1}`, "stop", false},
		{`{}`, "", true},
		{`cancel`, "", true},
	}
	for _, tc := range tests {
		cmd, err := ParseCommand([]byte(tc.in))
		if (err != nil) != tc.wantErr || cmd.Type != tc.want {
			t.Errorf("ParseCommand(%s) = %+v, %v", tc.in, cmd, err)
		}
	}
}

func TestClientFrames(t *testing.T) {
	h := New("test", log.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	type frame struct {
		client string
		data   string
	}
	frames := make(chan frame, 4)
	h.Handle(func(c *Client, data []byte) {
		frames <- frame{c.ID, string(data)}
	})

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws", fiberws.New(func(c *fiberws.Conn) {
		if client := NewClient(h, c); client != nil {
			client.Run()
		}
	}))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go app.Listener(ln)
	defer app.Shutdown()

	ws, _, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	if err != nil {
		t.Fatalf("WebSocket dial error: %v", err)
	}
	defer ws.Close()

	// Binary frames are not commands.
	ws.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3})
	ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"cancel"}`))

	select {
	case f := <-frames:
		if f.data != `{"type":"cancel"}` || f.client == "" {
			t.Errorf("frame = %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}

	h.Broadcast(NewBinaryMessage([]byte{9, 9}))
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("Read error: %v", err)
	}
	if kind != websocket.BinaryMessage || len(data) != 2 {
		t.Errorf("got frame type %d %v", kind, data)
	}
}
