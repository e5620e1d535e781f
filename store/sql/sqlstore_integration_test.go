package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/goliatone/go-easygoogle/core"
	easygooglemigrations "github.com/goliatone/go-easygoogle/migrations"
	"github.com/goliatone/go-easygoogle/security"
	sqlstore "github.com/goliatone/go-easygoogle/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-easygoogle-tests"
}

func testCredential() core.StoredCredential {
	return core.StoredCredential{
		Token:        "access-1",
		RefreshToken: "refresh-1",
		ClientID:     "client-123",
		ClientSecret: "shhh",
		Scopes:       []string{"https://www.googleapis.com/auth/drive"},
		TokenURI:     "https://oauth2.googleapis.com/token",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"easygoogle_credentials",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "easygoogle_credentials" {
		t.Fatalf("expected easygoogle_credentials table, got %q", tableName)
	}
}

func TestCredentialStore_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewCredentialStore(client, sqlstore.WithAppName("Reports"))
	if err != nil {
		t.Fatalf("new credential store: %v", err)
	}
	key := core.Identity{ClientID: "client-123", User: "default_user"}.StorageKey()

	if _, found, err := store.Get(ctx, key); err != nil || found {
		t.Fatalf("expected empty store, got found=%v err=%v", found, err)
	}
	if err := store.Save(ctx, key, testCredential()); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, found, err := store.Get(ctx, key)
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if loaded.Token != "access-1" || loaded.RefreshToken != "refresh-1" || !loaded.Expiry.Equal(testCredential().Expiry) {
		t.Fatalf("unexpected credential %#v", loaded)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, found, err := store.Get(ctx, key); err != nil || found {
		t.Fatalf("expected credential removed, got found=%v err=%v", found, err)
	}
	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("expected delete of missing key to succeed: %v", err)
	}
}

func TestCredentialStore_PartitionsByAppName(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	reports, err := sqlstore.NewCredentialStore(client, sqlstore.WithAppName("Reports"))
	if err != nil {
		t.Fatalf("new reports store: %v", err)
	}
	billing, err := sqlstore.NewCredentialStore(client, sqlstore.WithAppName("Billing"))
	if err != nil {
		t.Fatalf("new billing store: %v", err)
	}
	key := core.Identity{ClientID: "client-123", User: "alice"}.StorageKey()

	if err := reports.Save(ctx, key, testCredential()); err != nil {
		t.Fatalf("save reports: %v", err)
	}
	if _, found, err := billing.Get(ctx, key); err != nil || found {
		t.Fatalf("expected billing to miss the reports credential, got found=%v err=%v", found, err)
	}

	other := testCredential()
	other.Token = "billing-access"
	if err := billing.Save(ctx, key, other); err != nil {
		t.Fatalf("save billing: %v", err)
	}
	loaded, found, err := reports.Get(ctx, key)
	if err != nil || !found {
		t.Fatalf("get reports: found=%v err=%v", found, err)
	}
	if loaded.Token != "access-1" {
		t.Fatalf("expected reports credential untouched, got %q", loaded.Token)
	}

	if err := billing.Delete(ctx, key); err != nil {
		t.Fatalf("delete billing: %v", err)
	}
	if _, found, err := reports.Get(ctx, key); err != nil || !found {
		t.Fatalf("expected reports credential to survive billing delete, got found=%v err=%v", found, err)
	}
}

func TestCredentialStore_SaveOverwritesSingleRow(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	store, err := sqlstore.NewCredentialStore(client)
	if err != nil {
		t.Fatalf("new credential store: %v", err)
	}
	if err := store.Save(ctx, "key-1", testCredential()); err != nil {
		t.Fatalf("save: %v", err)
	}
	updated := testCredential()
	updated.Token = "access-2"
	updated.Scopes = append(updated.Scopes, "https://www.googleapis.com/auth/spreadsheets")
	if err := store.Save(ctx, "key-1", updated); err != nil {
		t.Fatalf("save again: %v", err)
	}

	var count int
	if err := client.DB().NewRaw(
		"SELECT COUNT(*) FROM easygoogle_credentials WHERE storage_key = ?", "key-1",
	).Scan(ctx, &count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one row per storage key, got %d", count)
	}

	loaded, _, err := store.Get(ctx, "key-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Token != "access-2" || len(loaded.Scopes) != 2 {
		t.Fatalf("expected overwritten credential, got %#v", loaded)
	}
}

func TestCredentialStore_EncryptsPayloadAndReadsAfterRotation(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	oldKey, err := security.NewRotatingSecretProviderFromStrings("old-key")
	if err != nil {
		t.Fatalf("old provider: %v", err)
	}
	store, err := sqlstore.NewCredentialStore(client, sqlstore.WithSecretProvider(oldKey), sqlstore.WithCodec(core.CompactCredentialCodec{}))
	if err != nil {
		t.Fatalf("new credential store: %v", err)
	}
	if err := store.Save(ctx, "key-1", testCredential()); err != nil {
		t.Fatalf("save: %v", err)
	}

	var payload []byte
	var keyID string
	if err := client.DB().NewRaw(
		"SELECT payload, encryption_key_id FROM easygoogle_credentials WHERE storage_key = ?", "key-1",
	).Scan(ctx, &payload, &keyID); err != nil {
		t.Fatalf("read row: %v", err)
	}
	if !security.IsEnvelope(payload) {
		t.Fatalf("expected encrypted payload, got %q", payload)
	}
	if keyID != oldKey.KeyID() {
		t.Fatalf("expected key id %q, got %q", oldKey.KeyID(), keyID)
	}

	rotated, err := security.NewRotatingSecretProviderFromStrings("new-key", "old-key")
	if err != nil {
		t.Fatalf("rotated provider: %v", err)
	}
	reader, err := sqlstore.NewCredentialStore(client, sqlstore.WithSecretProvider(rotated))
	if err != nil {
		t.Fatalf("reader store: %v", err)
	}
	loaded, found, err := reader.Get(ctx, "key-1")
	if err != nil || !found {
		t.Fatalf("get after rotation: found=%v err=%v", found, err)
	}
	if loaded.RefreshToken != "refresh-1" {
		t.Fatalf("unexpected credential %#v", loaded)
	}
}

func TestNewCredentialStore_RejectsUnsupportedClient(t *testing.T) {
	if _, err := sqlstore.NewCredentialStore(nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
	if _, err := sqlstore.NewCredentialStore("not a db"); err == nil {
		t.Fatalf("expected error for unsupported client")
	}
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:easygoogle-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = easygooglemigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != easygooglemigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	},
		easygooglemigrations.WithSource(os.DirFS("../..")),
		easygooglemigrations.WithValidationTargets(easygooglemigrations.DialectSQLite),
	)
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
