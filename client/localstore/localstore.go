package localstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Well-known slots, mirroring what the web frontend keeps in browser
// storage.
const (
	KeyCart  = "cart"
	KeyToken = "token"
	KeyUser  = "user"
)

// Store is a small durable key-value store backed by a single JSON file,
// the local equivalent of browser localStorage. Writers from several
// processes are not reconciled: the last write wins, whole file.
type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) read() (map[string]json.RawMessage, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("reading store file: %w", err)
	}

	entries := map[string]json.RawMessage{}
	if len(b) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("decoding store file: %w", err)
	}

	return entries, nil
}

func (s *Store) write(entries map[string]json.RawMessage) error {
	b, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encoding store file: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating store directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("writing store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing store file: %w", err)
	}

	return nil
}

// Get decodes the value under key into v, reporting whether the key was
// present at all.
func (s *Store) Get(key string, v interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return false, err
	}

	raw, ok := entries[key]
	if !ok {
		return false, nil
	}

	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("decoding value of %q: %w", key, err)
	}

	return true, nil
}

func (s *Store) Set(key string, v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding value of %q: %w", key, err)
	}
	entries[key] = raw

	return s.write(entries)
}

func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}

	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)

	return s.write(entries)
}
