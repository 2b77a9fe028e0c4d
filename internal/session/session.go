package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Record summarises one completed research run.
type Record struct {
	Timestamp  time.Time `json:"timestamp"`
	Query      string    `json:"query"`
	ReportType string    `json:"report_type"`
	ReportFile string    `json:"report_file"`
	ReportPath string    `json:"report_path"`
	Duration   float64   `json:"duration_seconds"`
}

// Session is the history of one process lifetime, persisted as
// session_<ID>.json next to the reports. Append and Save are safe for
// concurrent use.
type Session struct {
	ID      string   `json:"id"`
	Records []Record `json:"records"`

	mu sync.Mutex
}

// New starts a session stamped with the current time.
func New(now time.Time) *Session {
	return &Session{ID: now.Format("20060102_150405")}
}

// Append adds a run record to the session history.
func (s *Session) Append(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Records = append(s.Records, r)
}

// Save writes the session file under dir. Sessions with no records are not
// persisted.
func (s *Session) Save(dir string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Records) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating session dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding session: %w", err)
	}
	path := filepath.Join(dir, "session_"+s.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing session: %w", err)
	}
	return path, nil
}

// Load reads one session file.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", path, err)
	}
	return &s, nil
}

// List loads every session under dir, newest first.
func List(dir string) ([]*Session, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading session dir: %w", err)
	}
	var sessions []*Session
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "session_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		s, err := Load(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID > sessions[j].ID })
	return sessions, nil
}
