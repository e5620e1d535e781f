package easygoogle

import (
	"io"
	"net/http"
	"slices"

	"github.com/goliatone/go-easygoogle/auth"
	"github.com/goliatone/go-easygoogle/core"
	"github.com/goliatone/go-easygoogle/discovery"
	"github.com/goliatone/go-easygoogle/registry"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type Config = core.Config

type Option func(*builder)

type builder struct {
	runtimeConfig   core.Config
	logger          core.Logger
	loggerProvider  core.LoggerProvider
	configProvider  core.ConfigProvider
	optionsResolver core.OptionsResolver
	credentialStore core.CredentialStore
	secretProvider  core.SecretProvider
	registry        *registry.Registry
	httpClient      *http.Client
	manualScopes    []string
	delegation      bool
	discovery       discovery.Fetcher
	discoveryCache  repositorycache.CacheService
	in              io.Reader
	out             io.Writer
	openBrowser     auth.BrowserOpener
	flow            auth.Authorizer
	findDefault     auth.DefaultCredentialsFinder
}

func WithLogger(logger core.Logger) Option {
	return func(b *builder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *builder) {
		b.loggerProvider = provider
	}
}

// WithConfig sets runtime overrides, the highest precedence layer. Zero
// fields leave earlier overrides such as WithUser in place.
func WithConfig(cfg core.Config) Option {
	return func(b *builder) {
		b.runtimeConfig = b.runtimeConfig.Overlay(cfg)
	}
}

func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(b *builder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver core.OptionsResolver) Option {
	return func(b *builder) {
		b.optionsResolver = resolver
	}
}

func WithCredentialStore(store core.CredentialStore) Option {
	return func(b *builder) {
		b.credentialStore = store
	}
}

// WithSecretProvider encrypts credentials in stores opened from config.
func WithSecretProvider(provider core.SecretProvider) Option {
	return func(b *builder) {
		b.secretProvider = provider
	}
}

func WithRegistry(reg *registry.Registry) Option {
	return func(b *builder) {
		b.registry = reg
	}
}

func WithAuthMode(mode core.AuthMode) Option {
	return func(b *builder) {
		b.runtimeConfig.AuthMode = mode
	}
}

func WithUser(user string) Option {
	return func(b *builder) {
		b.runtimeConfig.User = user
	}
}

func WithAppName(appName string) Option {
	return func(b *builder) {
		b.runtimeConfig.AppName = appName
	}
}

func WithAppDir(appDir string) Option {
	return func(b *builder) {
		b.runtimeConfig.AppDir = appDir
	}
}

func WithHostname(hostname string) Option {
	return func(b *builder) {
		b.runtimeConfig.Hostname = hostname
	}
}

func WithPort(port int) Option {
	return func(b *builder) {
		b.runtimeConfig.Port = port
	}
}

func WithScopePolicy(policy core.ScopePolicy) Option {
	return func(b *builder) {
		b.runtimeConfig.ScopePolicy = policy
	}
}

// WithManualScopes requests scope URLs that are not in the registry.
func WithManualScopes(scopes ...string) Option {
	return func(b *builder) {
		b.manualScopes = append(b.manualScopes, scopes...)
	}
}

// WithHTTPClient sets the base transport used for token exchanges, API
// calls and discovery requests.
func WithHTTPClient(client *http.Client) Option {
	return func(b *builder) {
		b.httpClient = client
	}
}

// WithDelegation allows service accounts to impersonate users.
func WithDelegation(enabled bool) Option {
	return func(b *builder) {
		b.delegation = enabled
	}
}

func WithDiscoveryFetcher(fetcher discovery.Fetcher) Option {
	return func(b *builder) {
		b.discovery = fetcher
	}
}

func WithDiscoveryCache(cacheService repositorycache.CacheService) Option {
	return func(b *builder) {
		b.discoveryCache = cacheService
	}
}

// WithConsoleIO sets where URLs are printed and console codes are read.
func WithConsoleIO(in io.Reader, out io.Writer) Option {
	return func(b *builder) {
		b.in = in
		b.out = out
	}
}

func WithBrowserOpener(opener auth.BrowserOpener) Option {
	return func(b *builder) {
		b.openBrowser = opener
	}
}

// WithFlow replaces the installed application flow.
func WithFlow(flow auth.Authorizer) Option {
	return func(b *builder) {
		b.flow = flow
	}
}

func WithDefaultCredentialsFinder(finder auth.DefaultCredentialsFinder) Option {
	return func(b *builder) {
		b.findDefault = finder
	}
}

func newBuilder(opts []Option) builder {
	b := builder{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&b)
	}
	b.manualScopes = slices.Clone(b.manualScopes)
	return b
}
