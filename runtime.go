package easygoogle

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goliatone/go-easygoogle/auth"
	"github.com/goliatone/go-easygoogle/core"
	"github.com/goliatone/go-easygoogle/discovery"
	"github.com/goliatone/go-easygoogle/registry"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	glog "github.com/goliatone/go-logger/glog"
	"golang.org/x/oauth2"
)

// runtime carries what every controller shares once options and config are
// resolved.
type runtime struct {
	cfg         core.Config
	logger      core.Logger
	resolver    *registry.Resolver
	httpClient  *http.Client
	flow        auth.Authorizer
	findDefault auth.DefaultCredentialsFinder
	documents   *documentSource
	manual      []string
	delegation  bool

	store        core.CredentialStore
	storeOpened  bool
	closeStore   func() error
	builderStore core.CredentialStore
	secrets      core.SecretProvider
}

func newRuntime(ctx context.Context, opts []Option) (*runtime, error) {
	b := newBuilder(opts)

	provider, logger := core.ResolveLogger("easygoogle", b.loggerProvider, b.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("easygoogle"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if b.configProvider == nil {
		b.configProvider = core.NewCfgxConfigProvider(core.EnvConfigLoader{})
	}
	if b.optionsResolver == nil {
		b.optionsResolver = core.GoOptionsResolver{}
	}

	defaults := core.DefaultConfig()
	loaded, err := b.configProvider.Load(ctx, defaults)
	if err != nil {
		return nil, core.MapError(err)
	}
	cfg, err := b.optionsResolver.Resolve(defaults, loaded, b.runtimeConfig)
	if err != nil {
		return nil, core.MapError(err)
	}
	if loaded.EnforceAuthMode && b.runtimeConfig.AuthMode != "" && b.runtimeConfig.AuthMode != loaded.AuthMode {
		core.LogWarn(ctx, logger, "auth mode is enforced, ignoring requested mode", map[string]any{
			"requested": string(b.runtimeConfig.AuthMode),
			"enforced":  string(loaded.AuthMode),
		})
		cfg.AuthMode = loaded.AuthMode
	}

	reg := b.registry
	if reg == nil {
		reg, err = registry.LoadOrDefault(cfg.RegistryPath)
		if err != nil {
			return nil, core.MapError(err)
		}
	}
	resolver, err := registry.NewResolver(reg, registry.WithLogger(namedLogger(provider, logger, "easygoogle.registry")))
	if err != nil {
		return nil, core.MapError(err)
	}

	flow := b.flow
	if flow == nil {
		flow = auth.NewInstalledFlow(auth.FlowConfig{
			Mode:            cfg.AuthMode,
			Hostname:        cfg.Hostname,
			Port:            cfg.Port,
			CallbackTimeout: cfg.CallbackTimeout,
			OpenBrowser:     b.openBrowser,
			Out:             b.out,
			In:              b.in,
			HTTPClient:      b.httpClient,
			Logger:          namedLogger(provider, logger, "easygoogle.auth"),
		})
	}
	findDefault := b.findDefault
	if findDefault == nil {
		findDefault = auth.FindDefaultCredentials
	}

	return &runtime{
		cfg:          cfg,
		logger:       logger,
		resolver:     resolver,
		httpClient:   b.httpClient,
		flow:         flow,
		findDefault:  findDefault,
		documents:    newDocumentSource(cfg.Discovery, b.discovery, b.discoveryCache, b.httpClient, logger),
		manual:       core.NormalizeScopes(b.manualScopes),
		delegation:   b.delegation,
		builderStore: b.credentialStore,
		secrets:      b.secretProvider,
	}, nil
}

func namedLogger(provider core.LoggerProvider, fallback core.Logger, name string) core.Logger {
	if provider != nil {
		if named := provider.GetLogger(name); named != nil {
			return named
		}
	}
	return fallback
}

// resolve maps requested scope names through the registry and adds the
// manual scopes.
func (rt *runtime) resolve(ctx context.Context, scopes []string) (registry.ResolvedAPIs, []string, error) {
	apis, err := rt.resolver.Resolve(ctx, scopes)
	if err != nil {
		return registry.ResolvedAPIs{}, nil, err
	}
	return apis, core.UnionScopes(apis.Scopes(), rt.manual), nil
}

// credentialStore returns the configured store, opening one from config on
// first use.
func (rt *runtime) credentialStore(ctx context.Context) (core.CredentialStore, error) {
	if rt.storeOpened {
		return rt.store, nil
	}
	if rt.builderStore != nil {
		rt.store = rt.builderStore
		rt.closeStore = func() error { return nil }
		rt.storeOpened = true
		return rt.store, nil
	}
	store, closeFn, err := OpenCredentialStore(ctx, rt.cfg, WithStoreSecretProvider(rt.secrets))
	if err != nil {
		return nil, err
	}
	rt.store = store
	rt.closeStore = closeFn
	rt.storeOpened = true
	core.LogDebug(ctx, rt.logger, "credential store opened", map[string]any{"driver": rt.cfg.Store.Driver})
	return store, nil
}

func (rt *runtime) close() error {
	if rt == nil || !rt.storeOpened || rt.closeStore == nil {
		return nil
	}
	rt.storeOpened = false
	return rt.closeStore()
}

// tokenContext carries the base HTTP client to the oauth2 package. It is
// detached from ctx cancellation because token sources outlive the call
// that created them.
func (rt *runtime) tokenContext(ctx context.Context) context.Context {
	ctx = context.WithoutCancel(ctx)
	if rt.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, rt.httpClient)
	}
	return ctx
}

// documentSource builds the discovery document cache on first use.
type documentSource struct {
	cfg        core.DiscoveryConfig
	fetcher    discovery.Fetcher
	cache      repositorycache.CacheService
	httpClient *http.Client
	logger     core.Logger
	documents  *discovery.Documents
}

func newDocumentSource(
	cfg core.DiscoveryConfig,
	fetcher discovery.Fetcher,
	cacheService repositorycache.CacheService,
	httpClient *http.Client,
	logger core.Logger,
) *documentSource {
	return &documentSource{
		cfg:        cfg,
		fetcher:    fetcher,
		cache:      cacheService,
		httpClient: httpClient,
		logger:     logger,
	}
}

func (s *documentSource) get(ctx context.Context) (*discovery.Documents, error) {
	if s == nil {
		return nil, fmt.Errorf("easygoogle: discovery is not configured")
	}
	if s.cfg.Disabled {
		return nil, core.BadInputError("discovery is disabled")
	}
	if s.documents != nil {
		return s.documents, nil
	}
	if s.fetcher == nil {
		client, err := discovery.NewClient(ctx, discovery.ClientConfig{
			HTTPClient: s.httpClient,
			Logger:     s.logger,
		})
		if err != nil {
			return nil, err
		}
		s.fetcher = client
	}
	if s.cache == nil && s.cfg.CacheTTL > 0 {
		config := repositorycache.DefaultConfig()
		config.TTL = s.cfg.CacheTTL
		cacheService, err := repositorycache.NewCacheService(config)
		if err != nil {
			return nil, fmt.Errorf("easygoogle: discovery cache: %w", err)
		}
		s.cache = cacheService
	}
	documents, err := discovery.NewDocuments(s.fetcher, s.cache, s.logger)
	if err != nil {
		return nil, err
	}
	s.documents = documents
	return documents, nil
}
