package session

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestSessionSaveAndLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	s := New(now)
	if s.ID != "20260826_100000" {
		t.Fatalf("unexpected session id: %s", s.ID)
	}

	s.Append(Record{
		Timestamp:  now,
		Query:      "renewable energy outlook",
		ReportType: "detailed",
		ReportFile: "research_20260826_100001.md",
		ReportPath: filepath.Join(dir, "research_20260826_100001.md"),
		Duration:   12.5,
	})

	path, err := s.Save(dir)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if filepath.Base(path) != "session_20260826_100000.json" {
		t.Fatalf("unexpected session filename: %s", path)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.ID != s.ID || len(loaded.Records) != 1 {
		t.Fatalf("roundtrip mismatch: %+v", loaded)
	}
	if loaded.Records[0].Query != "renewable energy outlook" {
		t.Fatalf("record query lost: %+v", loaded.Records[0])
	}
	if loaded.Records[0].Duration != 12.5 {
		t.Fatalf("record duration lost: %+v", loaded.Records[0])
	}
}

func TestEmptySessionNotPersisted(t *testing.T) {
	t.Parallel()

	s := New(time.Now())
	path, err := s.Save(t.TempDir())
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if path != "" {
		t.Fatalf("empty session should not be written, got %s", path)
	}
}

func TestConcurrentAppendAndSave(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := New(time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC))

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Append(Record{Timestamp: time.Now(), Query: fmt.Sprintf("query %d", i)})
			if _, err := s.Save(dir); err != nil {
				t.Errorf("save: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if len(s.Records) != writers {
		t.Fatalf("expected %d records, got %d", writers, len(s.Records))
	}
	loaded, err := Load(filepath.Join(dir, "session_"+s.ID+".json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded.Records) == 0 {
		t.Fatal("persisted session lost its records")
	}
}

func TestListNewestFirst(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, ts := range []time.Time{
		time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC),
	} {
		s := New(ts)
		s.Append(Record{Timestamp: ts, Query: "q"})
		if _, err := s.Save(dir); err != nil {
			t.Fatal(err)
		}
	}

	sessions, err := List(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != "20260826_090000" {
		t.Fatalf("expected newest first, got %s", sessions[0].ID)
	}
}

func TestListMissingDir(t *testing.T) {
	t.Parallel()

	sessions, err := List(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if sessions != nil {
		t.Fatalf("expected no sessions, got %v", sessions)
	}
}
