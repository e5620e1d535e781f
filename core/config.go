package core

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

const (
	DefaultAppName         = "Google Client Library - Go"
	DefaultAppDir          = "."
	DefaultHostname        = "localhost"
	DefaultUser            = "default_user"
	DefaultCallbackTimeout = 5 * time.Minute
	DefaultDiscoveryTTL    = time.Hour
)

const (
	StoreDriverFile     = "file"
	StoreDriverMemory   = "memory"
	StoreDriverKeyring  = "keyring"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"

	StoreCodecJSON    = "json"
	StoreCodecCompact = "compact"
)

type Config struct {
	AppName         string          `koanf:"app_name" mapstructure:"app_name"`
	AppDir          string          `koanf:"app_dir" mapstructure:"app_dir"`
	Hostname        string          `koanf:"hostname" mapstructure:"hostname"`
	Port            int             `koanf:"port" mapstructure:"port"`
	AuthMode        AuthMode        `koanf:"auth_mode" mapstructure:"auth_mode"`
	EnforceAuthMode bool            `koanf:"enforce_auth_mode" mapstructure:"enforce_auth_mode"`
	User            string          `koanf:"user" mapstructure:"user"`
	RegistryPath    string          `koanf:"registry_path" mapstructure:"registry_path"`
	ScopePolicy     ScopePolicy     `koanf:"scope_policy" mapstructure:"scope_policy"`
	CallbackTimeout time.Duration   `koanf:"callback_timeout" mapstructure:"callback_timeout"`
	Store           StoreConfig     `koanf:"store" mapstructure:"store"`
	Discovery       DiscoveryConfig `koanf:"discovery" mapstructure:"discovery"`
}

type StoreConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Codec  string `koanf:"codec" mapstructure:"codec"`
	// OmitAccessToken persists only the refresh token and metadata.
	OmitAccessToken bool   `koanf:"omit_access_token" mapstructure:"omit_access_token"`
	EncryptionKey   string `koanf:"encryption_key" mapstructure:"encryption_key"`
	// RetiredEncryptionKeys still decrypt payloads sealed before a rotation.
	RetiredEncryptionKeys []string `koanf:"retired_encryption_keys" mapstructure:"retired_encryption_keys"`
}

type DiscoveryConfig struct {
	CacheTTL time.Duration `koanf:"cache_ttl" mapstructure:"cache_ttl"`
	Disabled bool          `koanf:"disabled" mapstructure:"disabled"`
}

func DefaultConfig() Config {
	return Config{
		AppName:         DefaultAppName,
		AppDir:          DefaultAppDir,
		Hostname:        DefaultHostname,
		AuthMode:        AuthModeBrowser,
		User:            DefaultUser,
		ScopePolicy:     ScopePolicyUnion,
		CallbackTimeout: DefaultCallbackTimeout,
		Store: StoreConfig{
			Driver: StoreDriverFile,
			Codec:  StoreCodecJSON,
		},
		Discovery: DiscoveryConfig{
			CacheTTL: DefaultDiscoveryTTL,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.AppName) == "" {
		return fmt.Errorf("core: app_name is required")
	}
	if strings.TrimSpace(c.Hostname) == "" {
		return fmt.Errorf("core: hostname is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("core: port %d is invalid", c.Port)
	}
	if !c.AuthMode.Valid() {
		return fmt.Errorf("core: auth_mode %q is invalid", c.AuthMode)
	}
	if !c.ScopePolicy.Valid() {
		return fmt.Errorf("core: scope_policy %q is invalid", c.ScopePolicy)
	}
	if c.CallbackTimeout < 0 {
		return fmt.Errorf("core: callback_timeout must not be negative")
	}
	if len(c.Store.RetiredEncryptionKeys) > 0 && strings.TrimSpace(c.Store.EncryptionKey) == "" {
		return fmt.Errorf("core: store.retired_encryption_keys require store.encryption_key")
	}
	switch c.Store.Codec {
	case "", StoreCodecJSON, StoreCodecCompact:
	default:
		return fmt.Errorf("core: store.codec %q is invalid", c.Store.Codec)
	}
	switch c.Store.Driver {
	case StoreDriverFile, StoreDriverMemory, StoreDriverKeyring:
	case StoreDriverSQLite, StoreDriverPostgres:
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("core: store.dsn is required for driver %q", c.Store.Driver)
		}
	default:
		return fmt.Errorf("core: store.driver %q is invalid", c.Store.Driver)
	}
	return nil
}

// Overlay returns c with every non-zero field of override applied on top.
func (c Config) Overlay(override Config) Config {
	out := c
	overlayString(&out.AppName, override.AppName)
	overlayString(&out.AppDir, override.AppDir)
	overlayString(&out.Hostname, override.Hostname)
	overlayString(&out.User, override.User)
	overlayString(&out.RegistryPath, override.RegistryPath)
	if override.Port != 0 {
		out.Port = override.Port
	}
	if override.AuthMode != "" {
		out.AuthMode = override.AuthMode
	}
	if override.EnforceAuthMode {
		out.EnforceAuthMode = true
	}
	if override.ScopePolicy != "" {
		out.ScopePolicy = override.ScopePolicy
	}
	if override.CallbackTimeout != 0 {
		out.CallbackTimeout = override.CallbackTimeout
	}

	overlayString(&out.Store.Driver, override.Store.Driver)
	overlayString(&out.Store.DSN, override.Store.DSN)
	overlayString(&out.Store.Codec, override.Store.Codec)
	overlayString(&out.Store.EncryptionKey, override.Store.EncryptionKey)
	if override.Store.OmitAccessToken {
		out.Store.OmitAccessToken = true
	}
	if len(override.Store.RetiredEncryptionKeys) > 0 {
		out.Store.RetiredEncryptionKeys = slices.Clone(override.Store.RetiredEncryptionKeys)
	}

	if override.Discovery.CacheTTL != 0 {
		out.Discovery.CacheTTL = override.Discovery.CacheTTL
	}
	if override.Discovery.Disabled {
		out.Discovery.Disabled = true
	}
	return out
}

func overlayString(target *string, value string) {
	if strings.TrimSpace(value) != "" {
		*target = value
	}
}

// CredentialsDir is the per-application directory holding credential files.
func (c Config) CredentialsDir() string {
	appDir := strings.TrimSpace(c.AppDir)
	if appDir == "" {
		appDir = DefaultAppDir
	}
	return filepath.Join(appDir, ".credentials", AppSlug(c.AppName))
}

// CredentialCodec returns the codec used to write new payloads.
func (c StoreConfig) CredentialCodec() CredentialCodec {
	if c.Codec == StoreCodecCompact {
		return CompactCredentialCodec{}
	}
	return JSONCredentialCodec{}
}
