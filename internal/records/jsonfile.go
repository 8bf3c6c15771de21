package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// NewJSONStore opens a store that keeps one JSON array file per kind under dir.
func NewJSONStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageError{Op: "open", Kind: "store", Err: err}
	}
	return &Store{
		Users:    newJSONCollection(filepath.Join(dir, "users.json"), "user", func(u User) string { return u.ID }),
		Tests:    newJSONCollection(filepath.Join(dir, "tests.json"), "test", func(t Test) string { return t.ID }),
		Bookings: newJSONCollection(filepath.Join(dir, "bookings.json"), "booking", func(b Booking) string { return b.ID }),
	}, nil
}

// jsonCollection caches the file contents and rewrites the whole file on
// every mutation. The cache only changes after the file write succeeds.
type jsonCollection[T any] struct {
	mu     sync.Mutex
	path   string
	kind   string
	idOf   func(T) string
	items  []T
	loaded bool
}

func newJSONCollection[T any](path, kind string, idOf func(T) string) *jsonCollection[T] {
	return &jsonCollection[T]{path: path, kind: kind, idOf: idOf}
}

func (c *jsonCollection[T]) load() error {
	if c.loaded {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		c.items = nil
		c.loaded = true
		return nil
	}
	if err != nil {
		return err
	}
	var items []T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("decode %s: %w", c.path, err)
		}
	}
	c.items = items
	c.loaded = true
	return nil
}

func (c *jsonCollection[T]) persist(items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	c.items = items
	return nil
}

func (c *jsonCollection[T]) indexOf(id string) int {
	for i, item := range c.items {
		if c.idOf(item) == id {
			return i
		}
	}
	return -1
}

func (c *jsonCollection[T]) List(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return nil, storageErr("list", c.kind, err)
	}
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out, nil
}

func (c *jsonCollection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return zero, storageErr("get", c.kind, err)
	}
	if i := c.indexOf(id); i >= 0 {
		return c.items[i], nil
	}
	return zero, ErrNotFound
}

func (c *jsonCollection[T]) Insert(ctx context.Context, rec T) error {
	return c.InsertMany(ctx, []T{rec})
}

func (c *jsonCollection[T]) InsertMany(ctx context.Context, recs []T) error {
	if len(recs) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return storageErr("insert", c.kind, err)
	}
	seen := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		id := c.idOf(rec)
		if _, dup := seen[id]; dup || c.indexOf(id) >= 0 {
			return fmt.Errorf("%w: %s %s", ErrDuplicateID, c.kind, id)
		}
		seen[id] = struct{}{}
	}
	next := make([]T, 0, len(c.items)+len(recs))
	next = append(next, c.items...)
	next = append(next, recs...)
	return storageErr("insert", c.kind, c.persist(next))
}

func (c *jsonCollection[T]) Update(ctx context.Context, id string, fn func(*T) error) (T, error) {
	var zero T
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return zero, storageErr("update", c.kind, err)
	}
	i := c.indexOf(id)
	if i < 0 {
		return zero, ErrNotFound
	}
	rec, err := cloneRecord(c.items[i])
	if err != nil {
		return zero, storageErr("update", c.kind, err)
	}
	if err := fn(&rec); err != nil {
		return zero, err
	}
	next := make([]T, len(c.items))
	copy(next, c.items)
	next[i] = rec
	if err := c.persist(next); err != nil {
		return zero, storageErr("update", c.kind, err)
	}
	return rec, nil
}

func (c *jsonCollection[T]) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return storageErr("delete", c.kind, err)
	}
	i := c.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	next := make([]T, 0, len(c.items)-1)
	next = append(next, c.items[:i]...)
	next = append(next, c.items[i+1:]...)
	return storageErr("delete", c.kind, c.persist(next))
}

// cloneRecord deep-copies rec so that update callbacks cannot reach the cache
// through shared maps or pointers.
func cloneRecord[T any](rec T) (T, error) {
	var out T
	data, err := json.Marshal(rec)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}
