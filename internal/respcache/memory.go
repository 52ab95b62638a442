package respcache

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryStore is a bounded in-process Store. Least recently used entries are
// evicted once size is reached.
type MemoryStore struct {
	items *lru.Cache[string, memoryEntry]
	now   func() time.Time
}

// NewMemoryStore builds a MemoryStore holding at most size entries.
func NewMemoryStore(size int) (*MemoryStore, error) {
	items, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, fmt.Errorf("respcache: memory store: %w", err)
	}
	return &MemoryStore{items: items, now: time.Now}, nil
}

// Get returns the entry for key unless it is missing or expired.
func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	item, ok := s.items.Get(key)
	if !ok {
		return Entry{}, false, nil
	}
	if !item.expiresAt.IsZero() && !s.now().Before(item.expiresAt) {
		s.items.Remove(key)
		return Entry{}, false, nil
	}
	return item.entry, true, nil
}

// Set stores entry under key. A non-positive ttl never expires.
func (s *MemoryStore) Set(_ context.Context, key string, entry Entry, ttl time.Duration) error {
	item := memoryEntry{entry: Entry{
		Status:      entry.Status,
		ContentType: entry.ContentType,
		Body:        append([]byte(nil), entry.Body...),
	}}
	if ttl > 0 {
		item.expiresAt = s.now().Add(ttl)
	}
	s.items.Add(key, item)
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	removed := 0
	for _, key := range s.items.Keys() {
		if strings.HasPrefix(key, prefix) && s.items.Remove(key) {
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	return s.items.Len()
}

var _ Store = (*MemoryStore)(nil)
