package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type MemoryCredentialStore struct {
	mu      sync.Mutex
	entries map[string]StoredCredential
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{entries: map[string]StoredCredential{}}
}

func (s *MemoryCredentialStore) Get(_ context.Context, key string) (StoredCredential, bool, error) {
	if s == nil {
		return StoredCredential{}, false, fmt.Errorf("core: credential store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return StoredCredential{}, false, fmt.Errorf("core: credential key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.entries[key]
	if !ok {
		return StoredCredential{}, false, nil
	}
	return credential.Clone(), true, nil
}

func (s *MemoryCredentialStore) Save(_ context.Context, key string, credential StoredCredential) error {
	if s == nil {
		return fmt.Errorf("core: credential store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("core: credential key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = credential.Clone()
	return nil
}

func (s *MemoryCredentialStore) Delete(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("core: credential store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, strings.TrimSpace(key))
	return nil
}

func (s *MemoryCredentialStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
