package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestPushedStatusShortCircuitsPolling(t *testing.T) {
	upgrader := websocket.Upgrader{}

	mux := http.NewServeMux()
	mux.HandleFunc("/push", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		time.Sleep(10 * time.Millisecond)
		_ = conn.WriteJSON(pushEvent{Type: "command_status", CorrelationID: "c-push", State: StateCompleted})
		// Keep the socket open until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := map[string]any{"jsonrpc": "2.0"}
		switch req.Method {
		case "session.open":
			resp["result"] = map[string]any{"session_id": "s-push"}
		case "command.status":
			// Always pending: only the push channel can finish the wait.
			resp["result"] = map[string]any{"state": "pending"}
		case "session.close":
			resp["result"] = map[string]any{}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.PushURL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/push"
	cfg.StatusPollInterval = time.Hour // make a poll-based finish impossible
	c := NewClient(cfg)
	if err := c.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := c.AwaitCompletion(ctx, "c-push")
	if err != nil {
		t.Fatalf("AwaitCompletion: %v", err)
	}
	if state != StateCompleted {
		t.Errorf("state = %q, want completed", state)
	}
}
