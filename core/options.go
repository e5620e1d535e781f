package core

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

const (
	EnvDefaultMode      = "EASYGOOGLE_DEFAULT_MODE"
	EnvDefaultAppDir    = "EASYGOOGLE_DEFAULT_APP_DIR"
	EnvDefaultAppName   = "EASYGOOGLE_DEFAULT_APP_NAME"
	EnvDefaultHostname  = "EASYGOOGLE_DEFAULT_HOSTNAME"
	EnvDefaultPort      = "EASYGOOGLE_DEFAULT_PORT"
	EnvDefaultUser      = "EASYGOOGLE_DEFAULT_USER"
	EnvEnforceAuthMode  = "EASYGOOGLE_ENFORCE_AUTH_MODE"
	EnvRegistryPath     = "EASYGOOGLE_REGISTRY_PATH"
	EnvScopePolicy      = "EASYGOOGLE_SCOPE_POLICY"
	EnvCallbackTimeout  = "EASYGOOGLE_CALLBACK_TIMEOUT"
	EnvStoreDriver      = "EASYGOOGLE_STORE_DRIVER"
	EnvStoreDSN         = "EASYGOOGLE_STORE_DSN"
	EnvStoreCodec       = "EASYGOOGLE_STORE_CODEC"
	EnvStoreToken       = "EASYGOOGLE_STORE_TOKEN"
	EnvCredentialsKey   = "EASYGOOGLE_CREDENTIALS_KEY"
	EnvRetiredKeys      = "EASYGOOGLE_CREDENTIALS_RETIRED_KEYS"
	EnvDiscoveryTTL     = "EASYGOOGLE_DISCOVERY_CACHE_TTL"
	EnvDiscoveryDisable = "EASYGOOGLE_DISCOVERY_DISABLED"

	enforceAuthModeValue = "ENFORCE"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

// ResolveConfig layers defaults, the provider's loaded values and runtime
// overrides, in that order of precedence.
func ResolveConfig(ctx context.Context, provider ConfigProvider, resolver OptionsResolver, runtime Config) (Config, error) {
	defaults := DefaultConfig()
	loaded := defaults
	if provider != nil {
		cfg, err := provider.Load(ctx, defaults)
		if err != nil {
			return Config{}, err
		}
		loaded = cfg
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

type StaticConfigLoader struct {
	Values map[string]any
}

func (l StaticConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// EnvConfigLoader reads the EASYGOOGLE_* variables. Lookup defaults to
// os.LookupEnv.
type EnvConfigLoader struct {
	Lookup func(key string) (string, bool)
}

func (l EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) (string, bool) {
		value, ok := lookup(key)
		if !ok {
			return "", false
		}
		value = strings.TrimSpace(value)
		return value, value != ""
	}

	raw := map[string]any{}
	store := map[string]any{}
	discovery := map[string]any{}

	if value, ok := get(EnvDefaultAppName); ok {
		raw["app_name"] = value
	}
	if value, ok := get(EnvDefaultAppDir); ok {
		raw["app_dir"] = value
	}
	if value, ok := get(EnvDefaultHostname); ok {
		raw["hostname"] = value
	}
	if value, ok := get(EnvDefaultPort); ok {
		port, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("core: %s must be an integer: %w", EnvDefaultPort, err)
		}
		raw["port"] = port
	}
	if value, ok := get(EnvDefaultMode); ok {
		mode, err := ParseAuthMode(value)
		if err != nil {
			return nil, err
		}
		raw["auth_mode"] = string(mode)
	}
	if value, ok := get(EnvEnforceAuthMode); ok {
		raw["enforce_auth_mode"] = value == enforceAuthModeValue
	}
	if value, ok := get(EnvDefaultUser); ok {
		raw["user"] = value
	}
	if value, ok := get(EnvRegistryPath); ok {
		raw["registry_path"] = value
	}
	if value, ok := get(EnvScopePolicy); ok {
		raw["scope_policy"] = strings.ToLower(value)
	}
	if value, ok := get(EnvCallbackTimeout); ok {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("core: %s: %w", EnvCallbackTimeout, err)
		}
		raw["callback_timeout"] = timeout
	}
	if value, ok := get(EnvStoreDriver); ok {
		store["driver"] = strings.ToLower(value)
	}
	if value, ok := get(EnvStoreDSN); ok {
		store["dsn"] = value
	}
	if value, ok := get(EnvStoreCodec); ok {
		store["codec"] = strings.ToLower(value)
	}
	if value, ok := get(EnvStoreToken); ok {
		keep, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("core: %s must be a boolean: %w", EnvStoreToken, err)
		}
		store["omit_access_token"] = !keep
	}
	if value, ok := get(EnvCredentialsKey); ok {
		store["encryption_key"] = value
	}
	if value, ok := get(EnvRetiredKeys); ok {
		keys := []string{}
		for _, key := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(key); trimmed != "" {
				keys = append(keys, trimmed)
			}
		}
		store["retired_encryption_keys"] = keys
	}
	if value, ok := get(EnvDiscoveryTTL); ok {
		ttl, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("core: %s: %w", EnvDiscoveryTTL, err)
		}
		discovery["cache_ttl"] = ttl
	}
	if value, ok := get(EnvDiscoveryDisable); ok {
		disabled, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("core: %s must be a boolean: %w", EnvDiscoveryDisable, err)
		}
		discovery["disabled"] = disabled
	}

	if len(store) > 0 {
		raw["store"] = store
	}
	if len(discovery) > 0 {
		raw["discovery"] = discovery
	}
	return raw, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(target map[string]any, key string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			target[key] = value
		}
	}

	setString(layer, "app_name", cfg.AppName)
	setString(layer, "app_dir", cfg.AppDir)
	setString(layer, "hostname", cfg.Hostname)
	setString(layer, "auth_mode", string(cfg.AuthMode))
	setString(layer, "user", cfg.User)
	setString(layer, "registry_path", cfg.RegistryPath)
	setString(layer, "scope_policy", string(cfg.ScopePolicy))
	if includeZero || cfg.Port != 0 {
		layer["port"] = cfg.Port
	}
	if includeZero || cfg.EnforceAuthMode {
		layer["enforce_auth_mode"] = cfg.EnforceAuthMode
	}
	if includeZero || cfg.CallbackTimeout != 0 {
		layer["callback_timeout"] = cfg.CallbackTimeout
	}

	store := map[string]any{}
	setString(store, "driver", cfg.Store.Driver)
	setString(store, "dsn", cfg.Store.DSN)
	setString(store, "codec", cfg.Store.Codec)
	setString(store, "encryption_key", cfg.Store.EncryptionKey)
	if len(cfg.Store.RetiredEncryptionKeys) > 0 {
		store["retired_encryption_keys"] = slices.Clone(cfg.Store.RetiredEncryptionKeys)
	}
	if includeZero || cfg.Store.OmitAccessToken {
		store["omit_access_token"] = cfg.Store.OmitAccessToken
	}
	if len(store) > 0 {
		layer["store"] = store
	}

	discovery := map[string]any{}
	if includeZero || cfg.Discovery.CacheTTL != 0 {
		discovery["cache_ttl"] = cfg.Discovery.CacheTTL
	}
	if includeZero || cfg.Discovery.Disabled {
		discovery["disabled"] = cfg.Discovery.Disabled
	}
	if len(discovery) > 0 {
		layer["discovery"] = discovery
	}
	return layer
}
