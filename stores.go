package easygoogle

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/goliatone/go-easygoogle/core"
	"github.com/goliatone/go-easygoogle/migrations"
	"github.com/goliatone/go-easygoogle/security"
	filestore "github.com/goliatone/go-easygoogle/store/file"
	keyringstore "github.com/goliatone/go-easygoogle/store/keyring"
	sqlstore "github.com/goliatone/go-easygoogle/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

type storeOptions struct {
	secrets core.SecretProvider
}

type StoreOption func(*storeOptions)

// WithStoreSecretProvider takes precedence over store.encryption_key.
func WithStoreSecretProvider(secrets core.SecretProvider) StoreOption {
	return func(o *storeOptions) {
		if secrets != nil {
			o.secrets = secrets
		}
	}
}

// OpenCredentialStore builds the store selected by cfg.Store. The returned
// close function releases database connections and is never nil.
func OpenCredentialStore(ctx context.Context, cfg core.Config, opts ...StoreOption) (core.CredentialStore, func() error, error) {
	options := storeOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	noop := func() error { return nil }

	secrets := options.secrets
	if secrets == nil && strings.TrimSpace(cfg.Store.EncryptionKey) != "" {
		rotating, err := security.NewRotatingSecretProviderFromStrings(cfg.Store.EncryptionKey, cfg.Store.RetiredEncryptionKeys...)
		if err != nil {
			return nil, noop, core.CredentialStoreError(err, "invalid credential encryption key")
		}
		secrets = rotating
	}
	codec := cfg.Store.CredentialCodec()

	var (
		store   core.CredentialStore
		closeFn = noop
	)
	switch cfg.Store.Driver {
	case core.StoreDriverMemory:
		store = core.NewMemoryCredentialStore()
	case core.StoreDriverKeyring:
		store = keyringstore.NewCredentialStore(cfg.AppName,
			keyringstore.WithCodec(codec),
			keyringstore.WithSecretProvider(secrets),
		)
	case core.StoreDriverSQLite, core.StoreDriverPostgres:
		client, err := openPersistence(ctx, cfg.Store)
		if err != nil {
			return nil, noop, core.CredentialStoreError(err, "could not open credential database")
		}
		sqlStore, err := sqlstore.NewCredentialStore(client,
			sqlstore.WithCodec(codec),
			sqlstore.WithSecretProvider(secrets),
			sqlstore.WithAppName(cfg.AppName),
		)
		if err != nil {
			_ = client.Close()
			return nil, noop, core.CredentialStoreError(err, "could not open credential store")
		}
		store = sqlStore
		closeFn = client.Close
	case core.StoreDriverFile, "":
		fileStore, err := filestore.NewCredentialStore(cfg.CredentialsDir(),
			filestore.WithCodec(codec),
			filestore.WithSecretProvider(secrets),
		)
		if err != nil {
			return nil, noop, core.CredentialStoreError(err, "could not open credential store")
		}
		store = fileStore
	default:
		return nil, noop, core.BadInputError(fmt.Sprintf("unknown credential store driver %q", cfg.Store.Driver))
	}

	if cfg.Store.OmitAccessToken {
		store = refreshOnlyStore{next: store}
	}
	return store, closeFn, nil
}

// refreshOnlyStore drops the access token before every save.
type refreshOnlyStore struct {
	next core.CredentialStore
}

func (s refreshOnlyStore) Get(ctx context.Context, key string) (core.StoredCredential, bool, error) {
	return s.next.Get(ctx, key)
}

func (s refreshOnlyStore) Save(ctx context.Context, key string, credential core.StoredCredential) error {
	return s.next.Save(ctx, key, credential.WithoutAccessToken())
}

func (s refreshOnlyStore) Delete(ctx context.Context, key string) error {
	return s.next.Delete(ctx, key)
}

type persistenceConfig struct {
	driver string
	server string
}

func (c persistenceConfig) GetDebug() bool {
	return false
}

func (c persistenceConfig) GetDriver() string {
	return c.driver
}

func (c persistenceConfig) GetServer() string {
	return c.server
}

func (c persistenceConfig) GetPingTimeout() time.Duration {
	return 5 * time.Second
}

func (c persistenceConfig) GetOtelIdentifier() string {
	return "go-easygoogle"
}

func openPersistence(ctx context.Context, cfg core.StoreConfig) (*persistence.Client, error) {
	var (
		driver     string
		dialect    string
		bunDialect schema.Dialect
	)
	switch cfg.Driver {
	case core.StoreDriverPostgres:
		driver, dialect, bunDialect = "postgres", migrations.DialectPostgres, pgdialect.New()
	case core.StoreDriverSQLite:
		driver, dialect, bunDialect = "sqlite3", migrations.DialectSQLite, sqlitedialect.New()
	default:
		return nil, fmt.Errorf("easygoogle: driver %q is not a sql driver", cfg.Driver)
	}

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Driver == core.StoreDriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(persistenceConfig{driver: driver, server: cfg.DSN}, sqlDB, bunDialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	_, err = migrations.Register(ctx, func(_ context.Context, registered string, _ string, fsys fs.FS) error {
		if registered != dialect {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	},
		migrations.WithSource(GetMigrationsFS()),
		migrations.WithValidationTargets(dialect),
	)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
