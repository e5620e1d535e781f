package core

import (
	"context"
	"testing"
	"time"
)

func envLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func TestEnvConfigLoader_MapsVariables(t *testing.T) {
	loader := EnvConfigLoader{Lookup: envLookup(map[string]string{
		EnvDefaultAppName:   "Reports Bot",
		EnvDefaultAppDir:    "/var/lib/reports",
		EnvDefaultHostname:  "127.0.0.1",
		EnvDefaultPort:      "8089",
		EnvDefaultMode:      "silent",
		EnvEnforceAuthMode:  "ENFORCE",
		EnvStoreDriver:      "SQLite",
		EnvStoreDSN:         "file:creds.db",
		EnvStoreToken:       "false",
		EnvDiscoveryTTL:     "10m",
		EnvCallbackTimeout:  "30s",
		EnvScopePolicy:      "REPLACE",
		EnvDiscoveryDisable: "true",
	})}

	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if raw["app_name"] != "Reports Bot" || raw["port"] != 8089 || raw["auth_mode"] != "SILENT" {
		t.Fatalf("unexpected raw config: %#v", raw)
	}
	if raw["enforce_auth_mode"] != true {
		t.Fatalf("expected enforce flag, got %#v", raw["enforce_auth_mode"])
	}
	store, ok := raw["store"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested store map")
	}
	if store["driver"] != "sqlite" || store["omit_access_token"] != true {
		t.Fatalf("unexpected store config: %#v", store)
	}
	discovery := raw["discovery"].(map[string]any)
	if discovery["cache_ttl"] != 10*time.Minute || discovery["disabled"] != true {
		t.Fatalf("unexpected discovery config: %#v", discovery)
	}
	if raw["scope_policy"] != "replace" || raw["callback_timeout"] != 30*time.Second {
		t.Fatalf("unexpected policy/timeout: %#v", raw)
	}
}

func TestEnvConfigLoader_EnforceRequiresExactValue(t *testing.T) {
	raw, err := EnvConfigLoader{Lookup: envLookup(map[string]string{
		EnvEnforceAuthMode: "yes",
	})}.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	if raw["enforce_auth_mode"] != false {
		t.Fatalf("expected enforce flag to be false, got %#v", raw["enforce_auth_mode"])
	}
}

func TestEnvConfigLoader_RejectsInvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"port":    {EnvDefaultPort: "http"},
		"mode":    {EnvDefaultMode: "auth-opt-2"},
		"token":   {EnvStoreToken: "maybe"},
		"ttl":     {EnvDiscoveryTTL: "soon"},
		"timeout": {EnvCallbackTimeout: "later"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := (EnvConfigLoader{Lookup: envLookup(env)}).LoadRaw(context.Background()); err == nil {
				t.Fatalf("expected error for %v", env)
			}
		})
	}
}

func TestResolveConfig_DefaultsOnly(t *testing.T) {
	cfg, err := ResolveConfig(context.Background(), nil, nil, Config{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.AppName != DefaultAppName || cfg.AuthMode != AuthModeBrowser || cfg.Hostname != DefaultHostname {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if cfg.Port != 0 || cfg.Store.Driver != StoreDriverFile || cfg.ScopePolicy != ScopePolicyUnion {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
}

func TestResolveConfig_RuntimeOverridesLoaded(t *testing.T) {
	provider := NewCfgxConfigProvider(StaticConfigLoader{Values: map[string]any{
		"app_name":  "Loaded",
		"auth_mode": "CONSOLE",
		"port":      9000,
	}})
	cfg, err := ResolveConfig(context.Background(), provider, GoOptionsResolver{}, Config{
		AuthMode: AuthModeSilent,
		User:     "alice@example.com",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.AppName != "Loaded" || cfg.Port != 9000 {
		t.Fatalf("expected loaded values to survive, got %#v", cfg)
	}
	if cfg.AuthMode != AuthModeSilent || cfg.User != "alice@example.com" {
		t.Fatalf("expected runtime overrides, got %#v", cfg)
	}
}

func TestConfigOverlay_KeepsFieldsTheOverrideLeavesZero(t *testing.T) {
	base := Config{User: "alice", AuthMode: AuthModeConsole, Port: 8080}
	got := base.Overlay(Config{
		AppName: "Reports",
		Store:   StoreConfig{Driver: StoreDriverMemory},
	})
	if got.User != "alice" || got.AuthMode != AuthModeConsole || got.Port != 8080 {
		t.Fatalf("expected earlier fields to survive, got %#v", got)
	}
	if got.AppName != "Reports" || got.Store.Driver != StoreDriverMemory {
		t.Fatalf("expected override fields applied, got %#v", got)
	}

	got = got.Overlay(Config{User: "bob"})
	if got.User != "bob" || got.AppName != "Reports" {
		t.Fatalf("expected later user to win, got %#v", got)
	}
}

func TestResolveConfig_ValidatesResult(t *testing.T) {
	_, err := ResolveConfig(context.Background(), nil, nil, Config{
		Store: StoreConfig{Driver: StoreDriverPostgres},
	})
	if err == nil {
		t.Fatalf("expected missing dsn validation error")
	}
}

func TestConfigCredentialsDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AppDir = "/tmp/app"
	cfg.AppName = "Reports Bot"
	if got := cfg.CredentialsDir(); got != "/tmp/app/.credentials/reports_bot" {
		t.Fatalf("unexpected credentials dir %q", got)
	}
}

func TestEnvConfigLoader_SplitsRetiredKeys(t *testing.T) {
	raw, err := EnvConfigLoader{Lookup: envLookup(map[string]string{
		EnvCredentialsKey: "current",
		EnvRetiredKeys:    " old-1, ,old-2 ",
	})}.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	store := raw["store"].(map[string]any)
	keys, ok := store["retired_encryption_keys"].([]string)
	if !ok || len(keys) != 2 || keys[0] != "old-1" || keys[1] != "old-2" {
		t.Fatalf("unexpected retired keys %#v", store["retired_encryption_keys"])
	}
}

func TestConfigValidate_RetiredKeysNeedCurrentKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.RetiredEncryptionKeys = []string{"old"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
	cfg.Store.EncryptionKey = "current"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
