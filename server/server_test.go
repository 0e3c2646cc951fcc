package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/becomeliminal/mnemo/agent"
	"github.com/becomeliminal/mnemo/core"
	"github.com/becomeliminal/mnemo/directory"
	"github.com/becomeliminal/mnemo/memory"
	"github.com/becomeliminal/mnemo/memory/embedder/mock"
	"github.com/becomeliminal/mnemo/memory/store/chromem"
	"github.com/becomeliminal/mnemo/server"
)

type cannedGenerator struct{}

func (cannedGenerator) Generate(ctx context.Context, systemContext string, history []core.Turn, memories []memory.Scored) (string, error) {
	return "canned response", nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := chromem.New()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	mgr := memory.NewManager(store, mock.New(), nil, nil)
	dir, err := directory.New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	ag := agent.New(dir, mgr, cannedGenerator{}, nil)
	ts := httptest.NewServer(server.New(ag).Routes())
	t.Cleanup(ts.Close)
	return ts
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Status = %d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Body = %v", body)
	}
}

func TestServer_WSRequiresUser(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("Expected dial to fail without user parameter")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %+v", resp)
	}
}

func TestServer_WSTurnExchange(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?user=alice"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(server.TurnRequest{Text: "I am vegetarian"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var turn server.TurnResponse
	if err := conn.ReadJSON(&turn); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if turn.Response != "canned response" {
		t.Errorf("Response = %q", turn.Response)
	}
	if turn.Stored != 1 {
		t.Errorf("Stored = %d, want 1 (the vegetarian preference)", turn.Stored)
	}

	// Empty text is rejected without closing the connection
	if err := conn.WriteJSON(server.TurnRequest{Text: "  "}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	var errResp server.ErrorResponse
	if err := conn.ReadJSON(&errResp); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	if errResp.Error == "" {
		t.Error("Expected an error payload for empty text")
	}
}
