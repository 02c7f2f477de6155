package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketSlotFeed(t *testing.T) {
	env := newTestEnv(t)
	room := env.createRoom(t, 2)
	server := httptest.NewServer(env.mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws/room/" + room.Code
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect the status snapshot first.
	_, payload := readNext(conn, t, "status")
	if payload["available"] != true {
		t.Fatalf("expected available room, got %v", payload)
	}

	ctx := context.Background()
	if _, err := env.admission.JoinRoom(ctx, room.Code, "s1", ""); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := env.admission.CompleteQuiz(ctx, "s1"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, payload = readNext(conn, t, "slots")
	if payload["completed"] != float64(1) || payload["slotsRemaining"] != float64(1) {
		t.Fatalf("unexpected slot update: %v", payload)
	}
}

func TestWebSocketUnknownRoom(t *testing.T) {
	env := newTestEnv(t)
	server := httptest.NewServer(env.mux)
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[len("http"):]+"/ws/room/NOPE22", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, payload := readNext(conn, t, "status")
	if payload["available"] != false {
		t.Fatalf("expected unavailable room, got %v", payload)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}
