package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"slidesmith/deck"
)

// ErrNotFound is returned for unknown presentation ids.
var ErrNotFound = errors.New("presentation not found")

// PresentationStore is the key-value persistence boundary for presentation
// records. Implementations must be safe for concurrent use; note that
// read-modify-write sequences across Get/Put are still the caller's problem
// (single-process deployment assumption, same as the in-memory cache).
type PresentationStore interface {
	Get(id string) (*deck.Presentation, error)
	Put(p *deck.Presentation) error
	Delete(id string) error
	Exists(id string) bool
	Close() error
}

// FileStore keeps one JSON file per presentation id in a directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, WrapError("store", "NewFileStore", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *FileStore) Get(id string) (*deck.Presentation, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, WrapError("store", "Get", err)
	}
	var p deck.Presentation
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, WrapError("store", "Get", fmt.Errorf("corrupt record %s: %w", id, err))
	}
	return &p, nil
}

func (s *FileStore) Put(p *deck.Presentation) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return WrapError("store", "Put", err)
	}
	// Write-then-rename so a crash mid-write never leaves a truncated record.
	tmp := s.path(p.ID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return WrapError("store", "Put", err)
	}
	if err := os.Rename(tmp, s.path(p.ID)); err != nil {
		return WrapError("store", "Put", err)
	}
	return nil
}

func (s *FileStore) Delete(id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return WrapError("store", "Delete", err)
	}
	return nil
}

func (s *FileStore) Exists(id string) bool {
	_, err := os.Stat(s.path(id))
	return err == nil
}

func (s *FileStore) Close() error { return nil }

// CachedStore layers an in-memory map over a backend store. The cache is
// lost on restart; the backend stays the source of truth.
type CachedStore struct {
	mu      sync.RWMutex
	cache   map[string]*deck.Presentation
	backend PresentationStore
}

func NewCachedStore(backend PresentationStore) *CachedStore {
	return &CachedStore{
		cache:   make(map[string]*deck.Presentation),
		backend: backend,
	}
}

func (s *CachedStore) Get(id string) (*deck.Presentation, error) {
	s.mu.RLock()
	p, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := s.backend.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cache[id] = p
	s.mu.Unlock()
	return p, nil
}

func (s *CachedStore) Put(p *deck.Presentation) error {
	if err := s.backend.Put(p); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache[p.ID] = p
	s.mu.Unlock()
	return nil
}

func (s *CachedStore) Delete(id string) error {
	s.mu.Lock()
	delete(s.cache, id)
	s.mu.Unlock()
	return s.backend.Delete(id)
}

func (s *CachedStore) Exists(id string) bool {
	s.mu.RLock()
	_, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return true
	}
	return s.backend.Exists(id)
}

func (s *CachedStore) Close() error {
	return s.backend.Close()
}

// newStoreBackend picks the backend from configuration: "sqlite" for the
// single-file database, anything else for one-JSON-file-per-id.
func newStoreBackend(backend, storageRoot, presentationsDir string) (PresentationStore, error) {
	switch backend {
	case "sqlite":
		dbPath := filepath.Join(storageRoot, "presentations.db")
		log.Printf("[STORE] using sqlite backend at %s", dbPath)
		return NewSQLiteStore(dbPath)
	default:
		log.Printf("[STORE] using file backend at %s", presentationsDir)
		return NewFileStore(presentationsDir)
	}
}
