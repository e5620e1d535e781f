package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goliatone/go-easygoogle/core"
	"github.com/goliatone/go-easygoogle/security"
)

const fileExtension = ".json"

// CredentialStore writes one file per storage key under dir. Files are
// replaced with an atomic rename and are readable only by the owner.
type CredentialStore struct {
	dir     string
	codec   core.CredentialCodec
	secrets core.SecretProvider
}

type Option func(*CredentialStore)

func WithCodec(codec core.CredentialCodec) Option {
	return func(s *CredentialStore) {
		if codec != nil {
			s.codec = codec
		}
	}
}

func WithSecretProvider(secrets core.SecretProvider) Option {
	return func(s *CredentialStore) {
		s.secrets = secrets
	}
}

func NewCredentialStore(dir string, opts ...Option) (*CredentialStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("filestore: directory is required")
	}
	store := &CredentialStore{
		dir:   filepath.Clean(dir),
		codec: core.JSONCredentialCodec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *CredentialStore) Dir() string {
	if s == nil {
		return ""
	}
	return s.dir
}

// Path returns the file holding the credential stored under key.
func (s *CredentialStore) Path(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("filestore: storage key is required")
	}
	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("filestore: storage key %q is not a valid file name", key)
	}
	return filepath.Join(s.dir, key+fileExtension), nil
}

func (s *CredentialStore) Get(ctx context.Context, key string) (core.StoredCredential, bool, error) {
	if s == nil {
		return core.StoredCredential{}, false, fmt.Errorf("filestore: credential store is not configured")
	}
	path, err := s.Path(key)
	if err != nil {
		return core.StoredCredential{}, false, err
	}
	payload, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return core.StoredCredential{}, false, nil
	}
	if err != nil {
		return core.StoredCredential{}, false, fmt.Errorf("filestore: read %s: %w", path, err)
	}
	if s.secrets == nil && security.IsEnvelope(payload) {
		return core.StoredCredential{}, false, fmt.Errorf("filestore: %s is encrypted and no encryption key is configured", path)
	}
	credential, err := core.OpenCredential(ctx, s.codec, s.secrets, payload)
	if err != nil {
		return core.StoredCredential{}, false, fmt.Errorf("filestore: %s: %w", path, err)
	}
	return credential, true, nil
}

func (s *CredentialStore) Save(ctx context.Context, key string, credential core.StoredCredential) error {
	if s == nil {
		return fmt.Errorf("filestore: credential store is not configured")
	}
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	payload, err := core.SealCredential(ctx, s.codec, s.secrets, credential)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("filestore: create credentials directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+strings.TrimSpace(key)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("filestore: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("filestore: write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("filestore: chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("filestore: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("filestore: rename credential file: %w", err)
	}
	return nil
}

func (s *CredentialStore) Delete(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("filestore: credential store is not configured")
	}
	path, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("filestore: remove %s: %w", path, err)
	}
	return nil
}

var _ core.CredentialStore = (*CredentialStore)(nil)
