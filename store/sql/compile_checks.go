package sqlstore

import "github.com/goliatone/go-easygoogle/core"

var _ core.CredentialStore = (*CredentialStore)(nil)
