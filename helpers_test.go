package easygoogle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/goliatone/go-easygoogle/auth"
	"github.com/goliatone/go-easygoogle/core"
	"github.com/goliatone/go-easygoogle/registry"
	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/oauth2"
)

const (
	driveScope  = "https://www.googleapis.com/auth/drive"
	sheetsScope = "https://www.googleapis.com/auth/spreadsheets"
)

const testRegistryJSON = `{
  "drive": {
    "apis": [
      {"name": "drive", "version": "v2", "preferred": false},
      {"name": "drive", "version": "v3", "preferred": true}
    ],
    "scope": "https://www.googleapis.com/auth/drive"
  },
  "spreadsheets": {
    "apis": [
      {"name": "sheets", "version": "v4", "preferred": true},
      {"name": "drive", "version": "v3", "preferred": true}
    ],
    "scope": "https://www.googleapis.com/auth/spreadsheets"
  }
}`

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Parse([]byte(testRegistryJSON))
	if err != nil {
		t.Fatalf("parse registry: %v", err)
	}
	return reg
}

// baseOptions isolates tests from EASYGOOGLE_* variables in the environment.
func baseOptions(t *testing.T, extra ...Option) []Option {
	t.Helper()
	opts := []Option{
		WithConfigProvider(core.NewCfgxConfigProvider(core.StaticConfigLoader{})),
		WithRegistry(testRegistry(t)),
	}
	return append(opts, extra...)
}

type tokenEndpoint struct {
	mu     sync.Mutex
	forms  []url.Values
	status int
	access string
}

func (e *tokenEndpoint) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.forms)
}

func (e *tokenEndpoint) lastForm() url.Values {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.forms) == 0 {
		return nil
	}
	return e.forms[len(e.forms)-1]
}

func newTokenServer(t *testing.T, access string) (*httptest.Server, *tokenEndpoint) {
	t.Helper()
	endpoint := &tokenEndpoint{status: http.StatusOK, access: access}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		endpoint.mu.Lock()
		endpoint.forms = append(endpoint.forms, r.PostForm)
		status := endpoint.status
		access := endpoint.access
		endpoint.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid_grant"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": access,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(server.Close)
	return server, endpoint
}

func testClientSecrets(t *testing.T, tokenURL string) *auth.ClientSecrets {
	t.Helper()
	secrets, err := auth.ClientSecretsFromMap(map[string]any{
		"installed": map[string]any{
			"client_id":     "client-123.apps.googleusercontent.com",
			"client_secret": "shhh",
			"auth_uri":      "https://accounts.example.com/o/oauth2/auth",
			"token_uri":     tokenURL,
			"redirect_uris": []string{"http://localhost"},
		},
	})
	if err != nil {
		t.Fatalf("client secrets: %v", err)
	}
	return secrets
}

type stubFlow struct {
	mu      sync.Mutex
	configs []*oauth2.Config
	token   *oauth2.Token
	err     error
}

func (f *stubFlow) Authorize(_ context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, config)
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

func (f *stubFlow) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.configs)
}

func newStubFlow() *stubFlow {
	token := (&oauth2.Token{
		AccessToken:  "flow-access",
		RefreshToken: "flow-refresh",
		TokenType:    "Bearer",
	}).WithExtra(map[string]any{"id_token": "flow-id"})
	return &stubFlow{token: token}
}

func assertTextCode(t *testing.T, err error, code string) {
	t.Helper()
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected rich error with %s, got %v", code, err)
	}
	if rich.TextCode != code {
		t.Fatalf("expected %s, got %s (%v)", code, rich.TextCode, err)
	}
}
