package sqlstore

import (
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type credentialRecord struct {
	bun.BaseModel `bun:"table:easygoogle_credentials,alias:egc"`

	ID              string     `bun:"id,pk"`
	StorageKey      string     `bun:"storage_key,notnull"`
	AppName         string     `bun:"app_name,notnull"`
	Payload         []byte     `bun:"payload,notnull"`
	PayloadFormat   string     `bun:"payload_format,notnull"`
	PayloadVersion  int        `bun:"payload_version,notnull"`
	Scopes          []string   `bun:"scopes,type:jsonb,notnull"`
	EncryptionKeyID string     `bun:"encryption_key_id,notnull"`
	ExpiresAt       *time.Time `bun:"expires_at,nullzero"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// credentialHandlers looks records up by storage key; the uuid primary key
// is an implementation detail of the table.
func credentialHandlers() repository.ModelHandlers[*credentialRecord] {
	return repository.ModelHandlers[*credentialRecord]{
		NewRecord: func() *credentialRecord { return &credentialRecord{} },
		GetID: func(record *credentialRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			id, err := uuid.Parse(strings.TrimSpace(record.ID))
			if err != nil {
				return uuid.Nil
			}
			return id
		},
		SetID: func(record *credentialRecord, id uuid.UUID) {
			if record != nil {
				record.ID = id.String()
			}
		},
		GetIdentifier: func() string { return "storage_key" },
		GetIdentifierValue: func(record *credentialRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.StorageKey)
		},
	}
}

func expiryPointer(value time.Time) *time.Time {
	if value.IsZero() {
		return nil
	}
	utc := value.UTC()
	return &utc
}

// dbFromClient unwraps a go-persistence-bun client or takes a *bun.DB as is.
func dbFromClient(client any) (*bun.DB, error) {
	if client == nil {
		return nil, fmt.Errorf("sqlstore: database client is required")
	}
	if db, ok := client.(*bun.DB); ok {
		return db, nil
	}
	provider, ok := client.(interface{ DB() *bun.DB })
	if !ok {
		return nil, fmt.Errorf("sqlstore: cannot use %T as a database client", client)
	}
	db := provider.DB()
	if db == nil {
		return nil, fmt.Errorf("sqlstore: database client has no bun db")
	}
	return db, nil
}
