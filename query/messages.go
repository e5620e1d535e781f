package query

import (
	"strings"

	"github.com/goliatone/go-easygoogle/core"
)

const (
	TypeResolveScopes  = "easygoogle.query.scopes.resolve"
	TypeDescribeAPI    = "easygoogle.query.api.describe"
	TypeLoadCredential = "easygoogle.query.credential.load"
)

type ResolveScopesMessage struct {
	Request core.ResolveScopesRequest
}

func (ResolveScopesMessage) Type() string { return TypeResolveScopes }

func (m ResolveScopesMessage) Validate() error {
	if len(core.NormalizeScopes(m.Request.Scopes)) == 0 {
		return queryValidationError("scopes", "at least one scope is required")
	}
	return nil
}

type DescribeAPIMessage struct {
	Request core.DescribeAPIRequest
}

func (DescribeAPIMessage) Type() string { return TypeDescribeAPI }

func (m DescribeAPIMessage) Validate() error {
	if strings.TrimSpace(m.Request.Name) == "" {
		return queryValidationError("name", "api name is required")
	}
	return nil
}

type LoadCredentialMessage struct {
	Lookup core.CredentialLookup
}

func (LoadCredentialMessage) Type() string { return TypeLoadCredential }

func (m LoadCredentialMessage) Validate() error {
	if m.Lookup.User != "" && strings.TrimSpace(m.Lookup.User) == "" {
		return queryValidationError("user", "user must not be blank")
	}
	return nil
}
