package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Store loads and saves the whole collection. There are no partial reads or
// writes and no locking: concurrent writers racing between Load and Save
// lose updates, the last Save wins.
type Store interface {
	Load(ctx context.Context) (Collection, error)
	Save(ctx context.Context, c Collection) error
}

// encodeCollection renders the collection as two-space indented JSON.
func encodeCollection(c Collection) ([]byte, error) {
	b, err := json.MarshalIndent(c.normalize(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tasks: %w", err)
	}
	return append(b, '\n'), nil
}

// decodeCollection validates raw against the collection schema before decoding it.
func decodeCollection(raw []byte) (Collection, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("decode tasks: empty document")
	}
	if err := validateDocument(raw); err != nil {
		return nil, err
	}
	var c Collection
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return c.normalize(), nil
}

// MemoryStore keeps a private copy of the collection in process memory.
type MemoryStore struct {
	mu sync.Mutex
	c  Collection
}

func NewMemoryStore(seed ...Task) *MemoryStore {
	return &MemoryStore{c: Collection(seed).clone().normalize()}
}

func (s *MemoryStore) Load(ctx context.Context) (Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.c.clone().normalize(), nil
}

func (s *MemoryStore) Save(ctx context.Context, c Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c = c.clone().normalize()
	return nil
}

// Len reports how many tasks are stored.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.c)
}
