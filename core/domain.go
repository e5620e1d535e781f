package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

type AuthMode string

const (
	AuthModeConsole AuthMode = "CONSOLE"
	AuthModeBrowser AuthMode = "BROWSER"
	AuthModeSilent  AuthMode = "SILENT"
	AuthModeManual  AuthMode = "MANUAL"
)

func ParseAuthMode(value string) (AuthMode, error) {
	mode := AuthMode(strings.ToUpper(strings.TrimSpace(value)))
	if !mode.Valid() {
		return "", fmt.Errorf("core: invalid auth mode %q", value)
	}
	return mode, nil
}

func (m AuthMode) Valid() bool {
	switch m {
	case AuthModeConsole, AuthModeBrowser, AuthModeSilent, AuthModeManual:
		return true
	default:
		return false
	}
}

// ListensForCallback reports whether the mode receives the authorization
// code through the loopback listener.
func (m AuthMode) ListensForCallback() bool {
	return m == AuthModeBrowser || m == AuthModeSilent
}

// ScopePolicy decides which scopes are requested when a cached credential
// does not cover a new request.
type ScopePolicy string

const (
	ScopePolicyUnion   ScopePolicy = "union"
	ScopePolicyReplace ScopePolicy = "replace"
)

func (p ScopePolicy) Valid() bool {
	return p == ScopePolicyUnion || p == ScopePolicyReplace
}

type Identity struct {
	AppName  string
	User     string
	ClientID string
}

// StorageKey is the hex sha256 of "<client_id>-<user>".
func (i Identity) StorageKey() string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(i.ClientID) + "-" + strings.TrimSpace(i.User)))
	return hex.EncodeToString(sum[:])
}

func (i Identity) Validate() error {
	if strings.TrimSpace(i.ClientID) == "" {
		return fmt.Errorf("core: identity client id is required")
	}
	if strings.TrimSpace(i.User) == "" {
		return fmt.Errorf("core: identity user is required")
	}
	return nil
}

// AppSlug turns an application name into a directory friendly token:
// alphanumerics, spaces, dashes and underscores are kept, lowercased, and
// spaces become underscores.
func AppSlug(appName string) string {
	var builder strings.Builder
	for _, r := range strings.TrimSpace(appName) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			builder.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			builder.WriteRune(r + ('a' - 'A'))
		case r == ' ':
			builder.WriteRune('_')
		}
	}
	slug := builder.String()
	if slug == "" {
		return "default"
	}
	return slug
}

type StoredCredential struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	IDToken      string    `json:"id_token"`
	ClientID     string    `json:"client_id"`
	ClientSecret string    `json:"client_secret"`
	Scopes       []string  `json:"scopes"`
	TokenURI     string    `json:"token_uri"`
	TokenType    string    `json:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry,omitzero"`
}

// CredentialFromToken captures the token material returned by an
// authorization flow or a refresh.
func CredentialFromToken(token *oauth2.Token, config *oauth2.Config, scopes []string) StoredCredential {
	out := StoredCredential{Scopes: NormalizeScopes(scopes)}
	if config != nil {
		out.ClientID = config.ClientID
		out.ClientSecret = config.ClientSecret
		out.TokenURI = config.Endpoint.TokenURL
	}
	if token == nil {
		return out
	}
	out.Token = token.AccessToken
	out.RefreshToken = token.RefreshToken
	out.TokenType = token.TokenType
	out.Expiry = token.Expiry
	if idToken, ok := token.Extra("id_token").(string); ok {
		out.IDToken = idToken
	}
	return out
}

func (c StoredCredential) OAuth2Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  c.Token,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
	if c.IDToken != "" {
		token = token.WithExtra(map[string]any{"id_token": c.IDToken})
	}
	return token
}

// HasScopes reports whether the stored scope set is a superset of required.
func (c StoredCredential) HasScopes(required []string) bool {
	granted := make(map[string]struct{}, len(c.Scopes))
	for _, scope := range c.Scopes {
		granted[strings.TrimSpace(scope)] = struct{}{}
	}
	for _, scope := range required {
		trimmed := strings.TrimSpace(scope)
		if trimmed == "" {
			continue
		}
		if _, ok := granted[trimmed]; !ok {
			return false
		}
	}
	return true
}

// WithoutAccessToken drops the short lived access token so only the
// refresh token and metadata are persisted.
func (c StoredCredential) WithoutAccessToken() StoredCredential {
	out := c.Clone()
	out.Token = ""
	out.Expiry = time.Time{}
	return out
}

func (c StoredCredential) Clone() StoredCredential {
	out := c
	out.Scopes = slices.Clone(c.Scopes)
	return out
}

func (c StoredCredential) Validate() error {
	if strings.TrimSpace(c.ClientID) == "" {
		return fmt.Errorf("core: credential client id is required")
	}
	if strings.TrimSpace(c.Token) == "" && strings.TrimSpace(c.RefreshToken) == "" {
		return fmt.Errorf("core: credential requires an access or refresh token")
	}
	return nil
}

// NormalizeScopes trims, drops empties and dedupes while preserving order.
func NormalizeScopes(scopes []string) []string {
	if len(scopes) == 0 {
		return []string{}
	}
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, scope := range scopes {
		trimmed := strings.TrimSpace(scope)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// UnionScopes returns the sorted union of the given scope lists.
func UnionScopes(lists ...[]string) []string {
	merged := []string{}
	for _, list := range lists {
		merged = append(merged, list...)
	}
	out := NormalizeScopes(merged)
	slices.Sort(out)
	return out
}
