package reminders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/wolfman30/bloodlab-platform/internal/records"
)

const eventsKind = "reminder"

// JSONStore keeps events in a single JSON file with an in-memory dedup index.
type JSONStore struct {
	mu     sync.Mutex
	path   string
	events []Event
	byKey  map[string]int
	byID   map[string]int
}

// NewJSONStore opens (or creates) reminders.json under dir.
func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &records.StorageError{Op: "open", Kind: eventsKind, Err: err}
	}
	s := &JSONStore{path: filepath.Join(dir, "reminders.json")}
	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, &records.StorageError{Op: "open", Kind: eventsKind, Err: err}
	case len(raw) > 0:
		if err := json.Unmarshal(raw, &s.events); err != nil {
			return nil, &records.StorageError{Op: "open", Kind: eventsKind, Err: fmt.Errorf("decode %s: %w", s.path, err)}
		}
	}
	s.reindex()
	return s, nil
}

func (s *JSONStore) reindex() {
	s.byKey = make(map[string]int, len(s.events))
	s.byID = make(map[string]int, len(s.events))
	for i, ev := range s.events {
		s.byKey[ev.DedupKey] = i
		s.byID[ev.ID] = i
	}
}

func (s *JSONStore) persist(events []Event) error {
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".reminders-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *JSONStore) Insert(ctx context.Context, ev Event) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[ev.DedupKey]; ok {
		return false, nil
	}
	next := append(append([]Event(nil), s.events...), ev)
	if err := s.persist(next); err != nil {
		return false, &records.StorageError{Op: "insert", Kind: eventsKind, Err: err}
	}
	s.events = next
	s.byKey[ev.DedupKey] = len(next) - 1
	s.byID[ev.ID] = len(next) - 1
	return true, nil
}

func (s *JSONStore) ListDue(ctx context.Context, now time.Time) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Event
	for _, ev := range s.events {
		if !ev.Sent && !ev.ScheduledAt.After(now) {
			due = append(due, ev)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].ScheduledAt.Before(due[j].ScheduledAt) })
	return due, nil
}

func (s *JSONStore) MarkSent(ctx context.Context, id string, d Delivery) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok || s.events[i].Sent {
		return ErrClosed
	}
	next := append([]Event(nil), s.events...)
	d.apply(&next[i])
	if err := s.persist(next); err != nil {
		return &records.StorageError{Op: "update", Kind: eventsKind, Err: err}
	}
	s.events = next
	return nil
}

func (s *JSONStore) List(ctx context.Context) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	out := append([]Event(nil), s.events...)
	s.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
