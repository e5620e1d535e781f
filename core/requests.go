package core

import "time"

type AuthorizeRequest struct {
	User   string
	Scopes []string
	// Mode overrides the configured auth mode for this request only.
	Mode AuthMode
}

type AuthorizeResult struct {
	StorageKey string
	User       string
	Scopes     []string
	APIs       []string
	Expiry     time.Time
}

type ForgetRequest struct {
	User string
}

type SetCredentialRequest struct {
	User       string
	Scopes     []string
	Credential StoredCredential
}

type CredentialLookup struct {
	User   string
	Scopes []string
}

// CredentialStatus describes a stored credential without exposing tokens.
type CredentialStatus struct {
	StorageKey      string
	User            string
	Found           bool
	Scopes          []string
	Covered         bool
	HasRefreshToken bool
	Expiry          time.Time
}

type ResolveScopesRequest struct {
	Scopes []string
}

type APIDescriptor struct {
	Tag       string
	Name      string
	Versions  []string
	Preferred string
	// PreferredError is set when no single preferred version exists.
	PreferredError string
}

type ScopeResolution struct {
	Scopes     []string
	APIs       []APIDescriptor
	Unresolved []string
}

type DescribeAPIRequest struct {
	Name    string
	Version string
}

type APIDescription struct {
	Name              string
	Version           string
	Title             string
	Description       string
	RootURL           string
	DocumentationLink string
	Scopes            []string
}
