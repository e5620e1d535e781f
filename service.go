package easygoogle

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/goliatone/go-easygoogle/auth"
	"github.com/goliatone/go-easygoogle/core"
)

// Service backs the command and query handlers. Every credential request
// builds its own OAuth2 controller, so users never share state. The
// controllers share one credential store, opened on first use and released
// by Close.
type Service struct {
	secrets *auth.ClientSecrets
	opts    []Option
	rt      *runtime

	storeMu sync.Mutex
}

// NewService prepares a service for secrets. Registry and discovery queries
// work without secrets; credential commands require them.
func NewService(ctx context.Context, secrets *auth.ClientSecrets, opts ...Option) (*Service, error) {
	rt, err := newRuntime(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Service{secrets: secrets, opts: slices.Clone(opts), rt: rt}, nil
}

func (s *Service) Config() core.Config {
	return s.rt.cfg
}

// Close releases the credential store when the service opened it.
func (s *Service) Close() error {
	if s == nil || s.rt == nil {
		return nil
	}
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	return s.rt.close()
}

func (s *Service) credentialStore(ctx context.Context) (core.CredentialStore, error) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	return s.rt.credentialStore(ctx)
}

func (s *Service) controller(ctx context.Context, user string, scopes []string, mode core.AuthMode) (*OAuth2, error) {
	if s == nil || s.rt == nil {
		return nil, core.BadInputError("service is not configured")
	}
	if s.secrets == nil {
		return nil, core.BadInputError("client secrets are required for credential operations")
	}
	store, err := s.credentialStore(ctx)
	if err != nil {
		return nil, err
	}
	opts := append(slices.Clone(s.opts), WithCredentialStore(store))
	if user = strings.TrimSpace(user); user != "" {
		opts = append(opts, WithUser(user))
	}
	if mode != "" {
		opts = append(opts, WithAuthMode(mode))
	}
	return NewOAuth2(ctx, s.secrets, scopes, opts...)
}

func (s *Service) Authorize(ctx context.Context, req core.AuthorizeRequest) (core.AuthorizeResult, error) {
	controller, err := s.controller(ctx, req.User, req.Scopes, req.Mode)
	if err != nil {
		return core.AuthorizeResult{}, err
	}
	defer func() { _ = controller.Close() }()

	client, err := controller.Acquire(ctx)
	if err != nil {
		return core.AuthorizeResult{}, err
	}
	return s.authorizeResult(ctx, controller, client), nil
}

func (s *Service) SetCredential(ctx context.Context, req core.SetCredentialRequest) (core.AuthorizeResult, error) {
	controller, err := s.controller(ctx, req.User, req.Scopes, "")
	if err != nil {
		return core.AuthorizeResult{}, err
	}
	defer func() { _ = controller.Close() }()

	client, err := controller.SetCredential(ctx, req.Credential)
	if err != nil {
		return core.AuthorizeResult{}, err
	}
	return s.authorizeResult(ctx, controller, client), nil
}

func (s *Service) authorizeResult(ctx context.Context, controller *OAuth2, client *Client) core.AuthorizeResult {
	result := core.AuthorizeResult{
		StorageKey: controller.StorageKey(),
		User:       controller.Identity().User,
		Scopes:     client.Scopes(),
		APIs:       client.APIs().Tags(),
	}
	if credential, found, err := controller.Credential(ctx); err == nil && found {
		result.Expiry = credential.Expiry
	}
	return result
}

func (s *Service) Forget(ctx context.Context, req core.ForgetRequest) error {
	controller, err := s.controller(ctx, req.User, nil, "")
	if err != nil {
		return err
	}
	defer func() { _ = controller.Close() }()
	return controller.Forget(ctx)
}

func (s *Service) LoadCredential(ctx context.Context, req core.CredentialLookup) (core.CredentialStatus, error) {
	controller, err := s.controller(ctx, req.User, req.Scopes, "")
	if err != nil {
		return core.CredentialStatus{}, err
	}
	defer func() { _ = controller.Close() }()

	credential, found, err := controller.Credential(ctx)
	if err != nil {
		return core.CredentialStatus{}, err
	}
	status := core.CredentialStatus{
		StorageKey: controller.StorageKey(),
		User:       controller.Identity().User,
		Found:      found,
	}
	if !found {
		return status, nil
	}
	status.Scopes = slices.Clone(credential.Scopes)
	status.Covered = credential.HasScopes(controller.Scopes())
	status.HasRefreshToken = strings.TrimSpace(credential.RefreshToken) != ""
	status.Expiry = credential.Expiry
	return status, nil
}

func (s *Service) ResolveScopes(ctx context.Context, req core.ResolveScopesRequest) (core.ScopeResolution, error) {
	if s == nil || s.rt == nil {
		return core.ScopeResolution{}, core.BadInputError("service is not configured")
	}
	apis, scopes, err := s.rt.resolve(ctx, req.Scopes)
	if err != nil {
		return core.ScopeResolution{}, core.MapError(err)
	}
	out := core.ScopeResolution{
		Scopes:     scopes,
		APIs:       make([]core.APIDescriptor, 0, apis.Len()),
		Unresolved: apis.Unresolved(),
	}
	for _, tag := range apis.Tags() {
		api, err := apis.Lookup(tag)
		if err != nil {
			return core.ScopeResolution{}, err
		}
		descriptor := core.APIDescriptor{Tag: api.Tag, Name: api.Name, Versions: api.Versions}
		if preferred, err := api.DefaultVersion(); err != nil {
			descriptor.PreferredError = err.Error()
		} else {
			descriptor.Preferred = preferred
		}
		out.APIs = append(out.APIs, descriptor)
	}
	return out, nil
}

// DescribeAPI fetches a discovery document. An empty version uses the
// single version the registry marks preferred.
func (s *Service) DescribeAPI(ctx context.Context, req core.DescribeAPIRequest) (core.APIDescription, error) {
	if s == nil || s.rt == nil {
		return core.APIDescription{}, core.BadInputError("service is not configured")
	}
	name := strings.TrimSpace(req.Name)
	version := strings.TrimSpace(req.Version)
	if version == "" {
		preferred := s.rt.resolver.Registry().PreferredVersions(name)
		switch len(preferred) {
		case 0:
			return core.APIDescription{}, core.UnknownPreferredVersionError(name)
		case 1:
			version = preferred[0]
		default:
			return core.APIDescription{}, core.UncertainPreferredVersionError(name).
				WithMetadata(map[string]any{"versions": preferred})
		}
	}

	documents, err := s.rt.documents.get(ctx)
	if err != nil {
		return core.APIDescription{}, err
	}
	description, err := documents.Get(ctx, name, version)
	if err != nil {
		return core.APIDescription{}, core.MapError(fmt.Errorf("easygoogle: describe %s %s: %w", name, version, err))
	}
	out := core.APIDescription{
		Name:              description.Name,
		Version:           description.Version,
		Title:             description.Title,
		Description:       description.Description,
		RootURL:           description.RootUrl,
		DocumentationLink: description.DocumentationLink,
		Scopes:            []string{},
	}
	if description.Auth != nil && description.Auth.Oauth2 != nil {
		for scope := range description.Auth.Oauth2.Scopes {
			out.Scopes = append(out.Scopes, scope)
		}
		slices.Sort(out.Scopes)
	}
	return out, nil
}
