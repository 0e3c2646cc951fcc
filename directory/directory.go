// Package directory tracks users and their chat sessions. Records persist as
// JSON files under a data directory and survive restarts; the in-memory maps
// are the working copy and every mutation writes through to disk.
package directory

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/becomeliminal/mnemo/core"
)

const (
	usersFile    = "users.json"
	sessionsFile = "sessions.json"

	// DefaultStaleAfter is the inactivity age past which CleanupStale
	// removes a session.
	DefaultStaleAfter = 24 * time.Hour
)

// User is a registered user. DisplayName is what the user typed; ID is the
// generated identity everything else keys on.
type User struct {
	ID          string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
	SessionIDs  []string  `json:"session_ids"`
}

// Session is one conversation belonging to a user.
type Session struct {
	ID           string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	MessageCount int       `json:"message_count"`
}

// Stats summarizes the directory.
type Stats struct {
	Users          int
	Sessions       int
	ActiveLastHour int
}

// Directory is the registry. Safe for concurrent use.
type Directory struct {
	mu       sync.Mutex
	dataDir  string
	users    map[string]*User    // user id -> user
	byName   map[string]string   // display name -> user id
	sessions map[string]*Session // session id -> session
}

// New opens (or creates) a directory rooted at dataDir.
func New(dataDir string) (*Directory, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	d := &Directory{
		dataDir:  dataDir,
		users:    make(map[string]*User),
		byName:   make(map[string]string),
		sessions: make(map[string]*Session),
	}
	if err := d.load(); err != nil {
		return nil, err
	}
	return d, nil
}

// GetOrCreateUser finds the user with this display name, creating one on
// first sight. Lookup by name is how returning users reclaim their identity
// across restarts.
func (d *Directory) GetOrCreateUser(displayName string) (*User, error) {
	if displayName == "" {
		return nil, core.Validationf("display name must not be empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.byName[displayName]; ok {
		return d.users[id].clone(), nil
	}

	u := &User{
		ID:          uuid.NewString(),
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	d.users[u.ID] = u
	d.byName[displayName] = u.ID
	if err := d.saveUsers(); err != nil {
		return nil, err
	}
	log.Printf("[DIRECTORY] Created user %s (%s)", displayName, u.ID)
	return u.clone(), nil
}

// StartSession creates a new session for an existing user.
func (d *Directory) StartSession(userID string) (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok {
		return nil, core.Validationf("unknown user %s", userID)
	}

	now := time.Now().UTC()
	s := &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	d.sessions[s.ID] = s
	u.SessionIDs = append(u.SessionIDs, s.ID)

	if err := d.saveSessions(); err != nil {
		return nil, err
	}
	if err := d.saveUsers(); err != nil {
		return nil, err
	}
	log.Printf("[DIRECTORY] Started session %s for user %s", s.ID, userID)
	return s.clone(), nil
}

// Touch bumps a session's activity timestamp and message count. One call per
// completed exchange.
func (d *Directory) Touch(sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[sessionID]
	if !ok {
		return core.Validationf("unknown session %s", sessionID)
	}
	s.LastActiveAt = time.Now().UTC()
	s.MessageCount++
	return d.saveSessions()
}

// Session looks up a session by ID.
func (d *Directory) Session(sessionID string) (*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[sessionID]
	if !ok {
		return nil, core.Validationf("unknown session %s", sessionID)
	}
	return s.clone(), nil
}

// ListSessions returns a user's sessions, most recently active first.
func (d *Directory) ListSessions(userID string) ([]*Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[userID]; !ok {
		return nil, core.Validationf("unknown user %s", userID)
	}

	var sessions []*Session
	for _, s := range d.sessions {
		if s.UserID == userID {
			sessions = append(sessions, s.clone())
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastActiveAt.After(sessions[j].LastActiveAt)
	})
	return sessions, nil
}

// ListUsers returns all users, oldest first.
func (d *Directory) ListUsers() []*User {
	d.mu.Lock()
	defer d.mu.Unlock()

	users := make([]*User, 0, len(d.users))
	for _, u := range d.users {
		users = append(users, u.clone())
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users
}

// CleanupStale removes sessions idle longer than maxAge and returns the
// removed sessions. It touches only the registry: long-term memory partitions
// for removed sessions stay intact until an explicit forget.
func (d *Directory) CleanupStale(maxAge time.Duration) ([]*Session, error) {
	if maxAge <= 0 {
		maxAge = DefaultStaleAfter
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := time.Now().UTC().Add(-maxAge)
	var removed []*Session
	for id, s := range d.sessions {
		if s.LastActiveAt.Before(cutoff) {
			removed = append(removed, s.clone())
			delete(d.sessions, id)
			if u, ok := d.users[s.UserID]; ok {
				u.SessionIDs = removeString(u.SessionIDs, id)
			}
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}

	if err := d.saveSessions(); err != nil {
		return nil, err
	}
	if err := d.saveUsers(); err != nil {
		return nil, err
	}
	log.Printf("[DIRECTORY] Cleaned up %d stale sessions", len(removed))
	return removed, nil
}

// RemoveSession deletes one session from the registry.
func (d *Directory) RemoveSession(sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[sessionID]
	if !ok {
		return core.Validationf("unknown session %s", sessionID)
	}
	delete(d.sessions, sessionID)
	if u, ok := d.users[s.UserID]; ok {
		u.SessionIDs = removeString(u.SessionIDs, sessionID)
	}
	if err := d.saveSessions(); err != nil {
		return err
	}
	return d.saveUsers()
}

// Stats counts users, sessions, and sessions active within the last hour.
func (d *Directory) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := Stats{Users: len(d.users), Sessions: len(d.sessions)}
	hourAgo := time.Now().UTC().Add(-time.Hour)
	for _, s := range d.sessions {
		if s.LastActiveAt.After(hourAgo) {
			stats.ActiveLastHour++
		}
	}
	return stats
}

func (d *Directory) load() error {
	var users []*User
	if err := readJSON(filepath.Join(d.dataDir, usersFile), &users); err != nil {
		return fmt.Errorf("load users: %w", err)
	}
	for _, u := range users {
		d.users[u.ID] = u
		d.byName[u.DisplayName] = u.ID
	}

	var sessions []*Session
	if err := readJSON(filepath.Join(d.dataDir, sessionsFile), &sessions); err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	for _, s := range sessions {
		d.sessions[s.ID] = s
	}
	return nil
}

// saveUsers and saveSessions write through to disk. Callers hold d.mu.

func (d *Directory) saveUsers() error {
	users := make([]*User, 0, len(d.users))
	for _, u := range d.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return writeJSON(filepath.Join(d.dataDir, usersFile), users)
}

func (d *Directory) saveSessions() error {
	sessions := make([]*Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return writeJSON(filepath.Join(d.dataDir, sessionsFile), sessions)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeJSON writes atomically via rename so a crash mid-write never leaves a
// truncated file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func (u *User) clone() *User {
	c := *u
	c.SessionIDs = append([]string(nil), u.SessionIDs...)
	return &c
}

func (s *Session) clone() *Session {
	c := *s
	return &c
}
