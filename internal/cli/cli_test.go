package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	easygoogle "github.com/goliatone/go-easygoogle"
	"github.com/goliatone/go-easygoogle/core"
	"github.com/goliatone/go-easygoogle/registry"
	"golang.org/x/oauth2"
	discoveryv1 "google.golang.org/api/discovery/v1"
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
      {"name": "sheets", "version": "v4", "preferred": true}
    ],
    "scope": "https://www.googleapis.com/auth/spreadsheets"
  }
}`

type stubFlow struct {
	mu    sync.Mutex
	calls int
}

func (f *stubFlow) Authorize(context.Context, *oauth2.Config) (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &oauth2.Token{
		AccessToken:  "cli-access",
		RefreshToken: "cli-refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

type describeFetcher struct{}

func (describeFetcher) ListAPIs(context.Context) ([]*discoveryv1.DirectoryListItems, error) {
	return nil, nil
}

func (describeFetcher) GetRest(_ context.Context, name string, version string, _ ...string) (*discoveryv1.RestDescription, error) {
	return &discoveryv1.RestDescription{
		Name:    name,
		Version: version,
		Title:   "Drive API",
		RootUrl: "https://www.googleapis.com/",
		Auth: &discoveryv1.RestDescriptionAuth{
			Oauth2: &discoveryv1.RestDescriptionAuthOauth2{
				Scopes: map[string]discoveryv1.RestDescriptionAuthOauth2Scopes{
					"https://www.googleapis.com/auth/drive": {Description: "full"},
				},
			},
		},
	}, nil
}

type fixture struct {
	dir      string
	registry string
	secrets  string
	store    *core.MemoryCredentialStore
	flow     *stubFlow
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:      dir,
		registry: filepath.Join(dir, "registry.json"),
		secrets:  filepath.Join(dir, "client_secrets.json"),
		store:    core.NewMemoryCredentialStore(),
		flow:     &stubFlow{},
	}
	if err := os.WriteFile(f.registry, []byte(testRegistryJSON), 0o600); err != nil {
		t.Fatalf("write registry: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "refreshed",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	t.Cleanup(server.Close)

	secrets, err := json.Marshal(map[string]any{
		"installed": map[string]any{
			"client_id":     "client-123.apps.googleusercontent.com",
			"client_secret": "shhh",
			"auth_uri":      "https://accounts.example.com/o/oauth2/auth",
			"token_uri":     server.URL,
			"redirect_uris": []string{"http://localhost"},
		},
	})
	if err != nil {
		t.Fatalf("marshal secrets: %v", err)
	}
	if err := os.WriteFile(f.secrets, secrets, 0o600); err != nil {
		t.Fatalf("write secrets: %v", err)
	}
	return f
}

func (f *fixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	c := New(&out, &logs, log.InfoLevel,
		easygoogle.WithConfigProvider(core.NewCfgxConfigProvider(core.StaticConfigLoader{})),
		easygoogle.WithCredentialStore(f.store),
		easygoogle.WithFlow(f.flow),
		easygoogle.WithDiscoveryFetcher(describeFetcher{}),
	)
	c.In = strings.NewReader("")
	root := c.RootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--registry", f.registry}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestResolveCommand_PrintsScopesAndAPIs(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "resolve", "spreadsheets", "drive", "https://mail.google.com/")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, want := range []string{
		"https://www.googleapis.com/auth/drive",
		"https://www.googleapis.com/auth/spreadsheets",
		"https://mail.google.com/",
		"preferred=v3",
		"sheets",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestResolveCommand_RequiresArgs(t *testing.T) {
	f := newFixture(t)
	if _, err := f.run(t, "resolve"); err == nil {
		t.Fatalf("expected missing argument error")
	}
}

func TestRegistryShowCommand(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "registry", "show")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "drive\t") || !strings.HasPrefix(lines[1], "spreadsheets\t") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRegistryGenerateCommand_WritesFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/discovery/v1/apis", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"kind": "discovery#directoryList",
			"items": []map[string]any{
				{"name": "drive", "version": "v3", "title": "Drive", "preferred": true},
			},
		})
	})
	mux.HandleFunc("/discovery/v1/apis/drive/v3/rest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":    "drive",
			"version": "v3",
			"auth": map[string]any{
				"oauth2": map[string]any{
					"scopes": map[string]any{
						"https://www.googleapis.com/auth/drive": map[string]any{"description": "full"},
					},
				},
			},
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	output := filepath.Join(t.TempDir(), "generated.json")
	var out, logs bytes.Buffer
	c := New(&out, &logs, log.InfoLevel)
	c.discoveryEndpoint = server.URL + "/discovery/v1/"
	root := c.RootCommand()
	root.SetArgs([]string{"registry", "generate", "--output", output})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("generate: %v", err)
	}

	reg, err := registry.Load(output)
	if err != nil {
		t.Fatalf("load generated: %v", err)
	}
	entry, ok := reg.Lookup("drive")
	if !ok || entry.Scope != "https://www.googleapis.com/auth/drive" {
		t.Fatalf("unexpected entry %#v", entry)
	}
	if !strings.Contains(logs.String(), "registry generated") {
		t.Fatalf("expected log line, got %q", logs.String())
	}
}

func TestAuthCommands_LoginStatusForget(t *testing.T) {
	f := newFixture(t)

	out, err := f.run(t, "--secrets", f.secrets, "--user", "alice", "auth", "login", "drive")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "authorized alice") || !strings.Contains(out, "https://www.googleapis.com/auth/drive") {
		t.Fatalf("unexpected login output:\n%s", out)
	}
	if f.flow.calls != 1 || f.store.Len() != 1 {
		t.Fatalf("expected one flow and one stored credential, got %d/%d", f.flow.calls, f.store.Len())
	}

	out, err = f.run(t, "--secrets", f.secrets, "--user", "alice", "auth", "status", "drive")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "credential for alice") || !strings.Contains(out, "covers requested scopes: true") {
		t.Fatalf("unexpected status output:\n%s", out)
	}

	if _, err := f.run(t, "--secrets", f.secrets, "--user", "alice", "auth", "forget"); err != nil {
		t.Fatalf("forget: %v", err)
	}
	out, err = f.run(t, "--secrets", f.secrets, "--user", "alice", "auth", "status")
	if err != nil {
		t.Fatalf("status after forget: %v", err)
	}
	if !strings.Contains(out, "no credential stored for alice") {
		t.Fatalf("unexpected status output:\n%s", out)
	}
}

func TestAuthLogin_RequiresSecrets(t *testing.T) {
	f := newFixture(t)
	if _, err := f.run(t, "auth", "login", "drive"); err == nil {
		t.Fatalf("expected secrets error")
	}
}

func TestAuthLogin_RejectsUnknownMode(t *testing.T) {
	f := newFixture(t)
	if _, err := f.run(t, "--secrets", f.secrets, "--mode", "carrier-pigeon", "auth", "login", "drive"); err == nil {
		t.Fatalf("expected mode error")
	}
}

func TestDescribeCommand_UsesPreferredVersion(t *testing.T) {
	f := newFixture(t)
	out, err := f.run(t, "describe", "drive")
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if !strings.HasPrefix(out, "drive v3\n") || !strings.Contains(out, "title:  Drive API") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	out, err = f.run(t, "describe", "drive", "v2")
	if err != nil {
		t.Fatalf("describe v2: %v", err)
	}
	if !strings.HasPrefix(out, "drive v2\n") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
