// Package server exposes the agent over a websocket chat endpoint. Each
// connection identifies a user by display name, gets its own session, and
// exchanges one JSON message per turn.
package server

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/becomeliminal/mnemo/agent"
	"github.com/becomeliminal/mnemo/memory"
)

// TurnRequest is one inbound client message.
type TurnRequest struct {
	Text string `json:"text"`
}

// TurnResponse is one outbound server message.
type TurnResponse struct {
	Response string   `json:"response"`
	Memories []string `json:"memories,omitempty"`
	Stored   int      `json:"stored"`
}

// ErrorResponse reports a failed turn without closing the connection.
type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	writeTimeout = 10 * time.Second
	readTimeout  = 5 * time.Minute
	maxMessage   = 64 << 10
)

// Server serves the chat surface.
type Server struct {
	agent    *agent.Agent
	upgrader websocket.Upgrader
}

// New creates a server around an agent.
func New(a *agent.Agent) *Server {
	return &Server{
		agent: a,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Same-origin browsers only; non-browser clients omit Origin
				// and are allowed.
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleWS upgrades the connection and serves turns until the client leaves.
// The user is identified by the required "user" query parameter; every
// connection gets a fresh session.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	displayName := strings.TrimSpace(r.URL.Query().Get("user"))
	if displayName == "" {
		http.Error(w, "query parameter user is required", http.StatusBadRequest)
		return
	}

	user, err := s.agent.Directory().GetOrCreateUser(displayName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sess, err := s.agent.Directory().StartSession(user.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	log.Printf("[SERVER] User %s connected on session %s", displayName, sess.ID)

	conn.SetReadLimit(maxMessage)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		var req TurnRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[SERVER] Read error on session %s: %v", sess.ID, err)
			}
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			s.write(conn, sess.ID, ErrorResponse{Error: "empty message"})
			continue
		}

		result, err := s.agent.ProcessTurn(r.Context(), user.ID, sess.ID, req.Text)
		if err != nil {
			log.Printf("[SERVER] Turn failed on session %s: %v", sess.ID, err)
			s.write(conn, sess.ID, ErrorResponse{Error: err.Error()})
			continue
		}

		s.write(conn, sess.ID, TurnResponse{
			Response: result.Response,
			Memories: formatMemories(result.Retrieved),
			Stored:   len(result.Stored),
		})
	}
}

func (s *Server) write(conn *websocket.Conn, sessionID string, v any) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteJSON(v); err != nil {
		log.Printf("[SERVER] Write error on session %s: %v", sessionID, err)
	}
}

func formatMemories(scored []memory.Scored) []string {
	if len(scored) == 0 {
		return nil
	}
	out := make([]string, len(scored))
	for i, m := range scored {
		out[i] = m.Format()
	}
	return out
}
