package keyringstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-easygoogle/core"
	"github.com/zalando/go-keyring"
)

const servicePrefix = "easygoogle:"

// CredentialStore keeps credentials in the operating system keychain, one
// secret per storage key under a per-application service name.
type CredentialStore struct {
	service string
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

// keyringEntry wraps the sealed payload since keychain values are strings.
type keyringEntry struct {
	Format  string `json:"format"`
	Version int    `json:"version"`
	Payload string `json:"payload"`
}

func NewCredentialStore(appName string, opts ...Option) *CredentialStore {
	store := &CredentialStore{
		service: ServiceName(appName),
		codec:   core.JSONCredentialCodec{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func ServiceName(appName string) string {
	return servicePrefix + core.AppSlug(appName)
}

func (s *CredentialStore) Service() string {
	if s == nil {
		return ""
	}
	return s.service
}

func (s *CredentialStore) Get(ctx context.Context, key string) (core.StoredCredential, bool, error) {
	if s == nil {
		return core.StoredCredential{}, false, fmt.Errorf("keyringstore: credential store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return core.StoredCredential{}, false, fmt.Errorf("keyringstore: storage key is required")
	}
	secret, err := keyring.Get(s.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return core.StoredCredential{}, false, nil
	}
	if err != nil {
		return core.StoredCredential{}, false, fmt.Errorf("keyringstore: read %s: %w", key, err)
	}

	var entry keyringEntry
	if err := json.Unmarshal([]byte(secret), &entry); err != nil {
		return core.StoredCredential{}, false, fmt.Errorf("keyringstore: decode entry: %w", err)
	}
	payload, err := base64.StdEncoding.DecodeString(entry.Payload)
	if err != nil {
		return core.StoredCredential{}, false, fmt.Errorf("keyringstore: decode payload: %w", err)
	}
	codec, err := core.CodecForFormat(entry.Format, s.codec)
	if err != nil {
		return core.StoredCredential{}, false, err
	}
	credential, err := core.OpenCredential(ctx, codec, s.secrets, payload)
	if err != nil {
		return core.StoredCredential{}, false, err
	}
	return credential, true, nil
}

func (s *CredentialStore) Save(ctx context.Context, key string, credential core.StoredCredential) error {
	if s == nil {
		return fmt.Errorf("keyringstore: credential store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("keyringstore: storage key is required")
	}
	payload, err := core.SealCredential(ctx, s.codec, s.secrets, credential)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(keyringEntry{
		Format:  s.codec.Format(),
		Version: s.codec.Version(),
		Payload: base64.StdEncoding.EncodeToString(payload),
	})
	if err != nil {
		return fmt.Errorf("keyringstore: encode entry: %w", err)
	}
	if err := keyring.Set(s.service, key, string(encoded)); err != nil {
		return fmt.Errorf("keyringstore: write %s: %w", key, err)
	}
	return nil
}

func (s *CredentialStore) Delete(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("keyringstore: credential store is not configured")
	}
	err := keyring.Delete(s.service, strings.TrimSpace(key))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyringstore: delete %s: %w", key, err)
	}
	return nil
}

var _ core.CredentialStore = (*CredentialStore)(nil)
