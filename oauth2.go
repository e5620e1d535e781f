package easygoogle

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/goliatone/go-easygoogle/auth"
	"github.com/goliatone/go-easygoogle/core"
	"github.com/goliatone/go-easygoogle/registry"
	"golang.org/x/oauth2"
)

// CloudPlatformScope is requested by the default credential constructors.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// OAuth2 acquires user credentials for an installed application and caches
// them per identity.
type OAuth2 struct {
	rt       *runtime
	secrets  *auth.ClientSecrets
	apis     registry.ResolvedAPIs
	scopes   []string
	identity core.Identity
}

// NewOAuth2 resolves scopes and prepares the identity. A nil secrets value
// falls back to application default credentials.
func NewOAuth2(ctx context.Context, secrets *auth.ClientSecrets, scopes []string, opts ...Option) (*OAuth2, error) {
	rt, err := newRuntime(ctx, opts)
	if err != nil {
		return nil, err
	}
	apis, required, err := rt.resolve(ctx, scopes)
	if err != nil {
		return nil, err
	}
	identity := core.Identity{AppName: rt.cfg.AppName, User: rt.cfg.User}
	if secrets != nil {
		identity.ClientID = secrets.ClientID()
	}
	return &OAuth2{
		rt:       rt,
		secrets:  secrets,
		apis:     apis,
		scopes:   required,
		identity: identity,
	}, nil
}

func NewOAuth2FromFile(ctx context.Context, path string, scopes []string, opts ...Option) (*OAuth2, error) {
	secrets, err := auth.LoadClientSecrets(path)
	if err != nil {
		return nil, core.MapError(err)
	}
	return NewOAuth2(ctx, secrets, scopes, opts...)
}

func NewOAuth2FromMap(ctx context.Context, values map[string]any, scopes []string, opts ...Option) (*OAuth2, error) {
	secrets, err := auth.ClientSecretsFromMap(values)
	if err != nil {
		return nil, core.MapError(err)
	}
	return NewOAuth2(ctx, secrets, scopes, opts...)
}

// OAuth2Default returns a client backed by application default credentials
// with the cloud-platform scope.
func OAuth2Default(ctx context.Context, opts ...Option) (*Client, error) {
	controller, err := NewOAuth2(ctx, nil, []string{CloudPlatformScope}, opts...)
	if err != nil {
		return nil, err
	}
	return controller.Acquire(ctx)
}

func (o *OAuth2) Identity() core.Identity {
	return o.identity
}

func (o *OAuth2) StorageKey() string {
	return o.identity.StorageKey()
}

// Scopes lists the scope URLs Acquire requires.
func (o *OAuth2) Scopes() []string {
	return slices.Clone(o.scopes)
}

func (o *OAuth2) APIs() registry.ResolvedAPIs {
	return o.apis
}

func (o *OAuth2) Config() core.Config {
	return o.rt.cfg
}

// Acquire returns a client for the required scopes. A stored credential
// covering them is refreshed and reused; anything else runs the
// authorization flow for the configured mode.
func (o *OAuth2) Acquire(ctx context.Context) (*Client, error) {
	if o == nil || o.rt == nil {
		return nil, core.BadInputError("oauth2 controller is not configured")
	}
	if o.secrets == nil {
		return o.defaultCredentials(ctx)
	}
	store, err := o.rt.credentialStore(ctx)
	if err != nil {
		return nil, err
	}
	key := o.StorageKey()
	fields := map[string]any{"app": o.identity.AppName, "user": o.identity.User, "key": key}

	cached, found, err := store.Get(ctx, key)
	if err != nil {
		return nil, core.CredentialStoreError(err, "could not read stored credential")
	}
	if found {
		if err := cached.Validate(); err != nil {
			return nil, core.CredentialStoreError(err, "stored credential is malformed")
		}
		if cached.HasScopes(o.scopes) {
			core.LogDebug(ctx, o.rt.logger, "refreshing stored credential", fields)
			return o.refresh(ctx, store, key, cached)
		}
		core.LogInfo(ctx, o.rt.logger, "stored credential does not cover requested scopes", fields)
	}

	if o.rt.cfg.AuthMode == core.AuthModeManual {
		return nil, core.CredentialMissingError("no usable stored credential; set one with SetCredential")
	}

	requested := o.scopes
	if found && o.rt.cfg.ScopePolicy == core.ScopePolicyUnion {
		requested = core.UnionScopes(cached.Scopes, o.scopes)
	}
	config := o.secrets.Config(requested, "")
	token, err := o.rt.flow.Authorize(ctx, config)
	if err != nil {
		return nil, err
	}
	credential := core.CredentialFromToken(token, config, requested)
	if err := store.Save(ctx, key, credential); err != nil {
		return nil, core.CredentialStoreError(err, "could not save credential")
	}
	core.LogInfo(ctx, o.rt.logger, "credential authorized", fields)
	return o.clientFor(ctx, store, key, credential, token), nil
}

// refresh forces a token exchange with the stored refresh token. Failures
// are returned as is; the flow is not rerun.
func (o *OAuth2) refresh(ctx context.Context, store core.CredentialStore, key string, cached core.StoredCredential) (*Client, error) {
	if strings.TrimSpace(cached.RefreshToken) == "" {
		return nil, core.RefreshError(errors.New("stored credential has no refresh token"))
	}
	config := o.configFor(cached)
	token, err := config.TokenSource(o.rt.tokenContext(ctx), &oauth2.Token{RefreshToken: cached.RefreshToken}).Token()
	if err != nil {
		return nil, core.RefreshError(err)
	}
	refreshed := mergeToken(cached, token)
	if err := store.Save(ctx, key, refreshed); err != nil {
		return nil, core.CredentialStoreError(err, "could not save refreshed credential")
	}
	return o.clientFor(ctx, store, key, refreshed, refreshed.OAuth2Token()), nil
}

// configFor prefers the client secrets, falling back to the token endpoint
// recorded with the credential.
func (o *OAuth2) configFor(credential core.StoredCredential) *oauth2.Config {
	config := o.secrets.Config(credential.Scopes, "")
	if config.Endpoint.TokenURL == "" && credential.TokenURI != "" {
		config.Endpoint.TokenURL = credential.TokenURI
	}
	return config
}

func (o *OAuth2) clientFor(ctx context.Context, store core.CredentialStore, key string, credential core.StoredCredential, token *oauth2.Token) *Client {
	config := o.configFor(credential)
	base := config.TokenSource(o.rt.tokenContext(ctx), token)
	source := newPersistingTokenSource(context.WithoutCancel(ctx), base, store, key, credential, o.rt.logger)
	return newClient(ctx, o.rt, o.apis, credential.Scopes, source)
}

func (o *OAuth2) defaultCredentials(ctx context.Context) (*Client, error) {
	creds, err := o.rt.findDefault(o.rt.tokenContext(ctx), o.scopes...)
	if err != nil {
		return nil, core.CredentialMissingError("application default credentials are not available").
			WithMetadata(map[string]any{"error": err.Error()})
	}
	core.LogDebug(ctx, o.rt.logger, "using application default credentials", map[string]any{"project_id": creds.ProjectID})
	client := newClient(ctx, o.rt, o.apis, o.scopes, creds.TokenSource)
	client.projectID = creds.ProjectID
	return client, nil
}

// Credential returns the stored credential for the identity.
func (o *OAuth2) Credential(ctx context.Context) (core.StoredCredential, bool, error) {
	store, err := o.rt.credentialStore(ctx)
	if err != nil {
		return core.StoredCredential{}, false, err
	}
	credential, found, err := store.Get(ctx, o.StorageKey())
	if err != nil {
		return core.StoredCredential{}, false, core.CredentialStoreError(err, "could not read stored credential")
	}
	return credential, found, nil
}

// SetCredential stores a credential obtained outside the library, as done
// in MANUAL mode, and returns a client for it.
func (o *OAuth2) SetCredential(ctx context.Context, credential core.StoredCredential) (*Client, error) {
	if o.secrets == nil {
		return nil, core.BadInputError("client secrets are required to store credentials")
	}
	if strings.TrimSpace(credential.ClientID) == "" {
		credential.ClientID = o.secrets.ClientID()
	}
	if strings.TrimSpace(credential.TokenURI) == "" {
		credential.TokenURI = o.secrets.TokenURL()
	}
	if len(credential.Scopes) == 0 {
		credential.Scopes = o.Scopes()
	}
	if err := credential.Validate(); err != nil {
		return nil, core.BadInputError(err.Error())
	}
	store, err := o.rt.credentialStore(ctx)
	if err != nil {
		return nil, err
	}
	key := o.StorageKey()
	if err := store.Save(ctx, key, credential); err != nil {
		return nil, core.CredentialStoreError(err, "could not save credential")
	}
	return o.clientFor(ctx, store, key, credential, credential.OAuth2Token()), nil
}

// Forget removes the stored credential for the identity.
func (o *OAuth2) Forget(ctx context.Context) error {
	store, err := o.rt.credentialStore(ctx)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, o.StorageKey()); err != nil {
		return core.CredentialStoreError(err, "could not delete credential")
	}
	core.LogInfo(ctx, o.rt.logger, "credential removed", map[string]any{"user": o.identity.User})
	return nil
}

// Close releases a credential store opened from config.
func (o *OAuth2) Close() error {
	if o == nil {
		return nil
	}
	return o.rt.close()
}
