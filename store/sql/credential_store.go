package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-easygoogle/core"
	"github.com/goliatone/go-easygoogle/security"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CredentialStore keeps one row per app and storage key in
// easygoogle_credentials. Storage keys do not carry the app name, so every
// query is scoped to appName.
type CredentialStore struct {
	db      *bun.DB
	repo    repository.Repository[*credentialRecord]
	codec   core.CredentialCodec
	secrets core.SecretProvider
	appName string
}

type Option func(*CredentialStore)

func WithCodec(codec core.CredentialCodec) Option {
	return func(s *CredentialStore) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// WithSecretProvider encrypts payloads at rest.
func WithSecretProvider(secrets core.SecretProvider) Option {
	return func(s *CredentialStore) {
		s.secrets = secrets
	}
}

func WithAppName(appName string) Option {
	return func(s *CredentialStore) {
		s.appName = strings.TrimSpace(appName)
	}
}

// NewCredentialStore accepts a *bun.DB or a persistence client exposing DB().
func NewCredentialStore(client any, opts ...Option) (*CredentialStore, error) {
	db, err := dbFromClient(client)
	if err != nil {
		return nil, err
	}
	repo := repository.NewRepository[*credentialRecord](db, credentialHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid credential repository wiring: %w", err)
		}
	}
	store := &CredentialStore{
		db:      db,
		repo:    repo,
		codec:   core.JSONCredentialCodec{},
		appName: core.DefaultAppName,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *CredentialStore) Get(ctx context.Context, key string) (core.StoredCredential, bool, error) {
	if s == nil || s.repo == nil {
		return core.StoredCredential{}, false, fmt.Errorf("sqlstore: credential store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return core.StoredCredential{}, false, fmt.Errorf("sqlstore: storage key is required")
	}
	record, found, err := s.find(ctx, key)
	if err != nil || !found {
		return core.StoredCredential{}, false, err
	}
	codec, err := core.CodecForFormat(record.PayloadFormat, s.codec)
	if err != nil {
		return core.StoredCredential{}, false, err
	}
	credential, err := core.OpenCredential(ctx, codec, s.secrets, record.Payload)
	if err != nil {
		return core.StoredCredential{}, false, err
	}
	return credential, true, nil
}

func (s *CredentialStore) Save(ctx context.Context, key string, credential core.StoredCredential) error {
	if s == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("sqlstore: storage key is required")
	}
	payload, err := core.SealCredential(ctx, s.codec, s.secrets, credential)
	if err != nil {
		return err
	}
	keyID := ""
	if s.secrets != nil {
		if metadata, metaErr := security.ParseEnvelopeMetadata(payload); metaErr == nil {
			keyID = metadata.KeyID
		}
	}

	now := time.Now().UTC()
	current, found, err := s.find(ctx, key)
	if err != nil {
		return err
	}
	if found {
		current.Payload = payload
		current.PayloadFormat = s.codec.Format()
		current.PayloadVersion = s.codec.Version()
		current.Scopes = core.NormalizeScopes(credential.Scopes)
		current.EncryptionKeyID = keyID
		current.ExpiresAt = expiryPointer(credential.Expiry)
		current.UpdatedAt = now
		_, err = s.repo.Update(ctx, current, repository.UpdateByID(current.ID))
		return err
	}

	_, err = s.repo.Create(ctx, &credentialRecord{
		ID:              uuid.NewString(),
		StorageKey:      key,
		AppName:         s.appName,
		Payload:         payload,
		PayloadFormat:   s.codec.Format(),
		PayloadVersion:  s.codec.Version(),
		Scopes:          core.NormalizeScopes(credential.Scopes),
		EncryptionKeyID: keyID,
		ExpiresAt:       expiryPointer(credential.Expiry),
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	return err
}

func (s *CredentialStore) Delete(ctx context.Context, key string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: credential store is not configured")
	}
	_, err := s.db.NewDelete().
		Model((*credentialRecord)(nil)).
		Where("app_name = ?", s.appName).
		Where("storage_key = ?", strings.TrimSpace(key)).
		Exec(ctx)
	return err
}

func (s *CredentialStore) find(ctx context.Context, key string) (*credentialRecord, bool, error) {
	records, _, err := s.repo.List(ctx,
		repository.SelectBy("app_name", "=", s.appName),
		repository.SelectBy("storage_key", "=", key),
		repository.OrderBy("updated_at DESC"),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 {
		return nil, false, nil
	}
	return records[0], true, nil
}
