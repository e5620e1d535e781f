package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// CredentialStore persists one credential per storage key. Get reports
// found=false, without error, when nothing is stored under key.
type CredentialStore interface {
	Get(ctx context.Context, key string) (StoredCredential, bool, error)
	Save(ctx context.Context, key string, credential StoredCredential) error
	Delete(ctx context.Context, key string) error
}

type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

type CredentialCodec interface {
	Format() string
	Version() int
	Encode(credential StoredCredential) ([]byte, error)
	Decode(payload []byte) (StoredCredential, error)
}
