package easygoogle

import (
	"context"
	"slices"
	"strings"

	"github.com/goliatone/go-easygoogle/auth"
	"github.com/goliatone/go-easygoogle/core"
	"github.com/goliatone/go-easygoogle/registry"
)

// ServiceAccount authorizes as a service account, optionally impersonating
// users through domain wide delegation.
type ServiceAccount struct {
	rt     *runtime
	key    *auth.ServiceAccountKey
	apis   registry.ResolvedAPIs
	scopes []string
}

// NewServiceAccount resolves scopes for key. A nil key falls back to
// application default credentials.
func NewServiceAccount(ctx context.Context, key *auth.ServiceAccountKey, scopes []string, opts ...Option) (*ServiceAccount, error) {
	rt, err := newRuntime(ctx, opts)
	if err != nil {
		return nil, err
	}
	apis, required, err := rt.resolve(ctx, scopes)
	if err != nil {
		return nil, err
	}
	return &ServiceAccount{rt: rt, key: key, apis: apis, scopes: required}, nil
}

func NewServiceAccountFromFile(ctx context.Context, path string, scopes []string, opts ...Option) (*ServiceAccount, error) {
	key, err := auth.LoadServiceAccountKey(path)
	if err != nil {
		return nil, core.MapError(err)
	}
	return NewServiceAccount(ctx, key, scopes, opts...)
}

func NewServiceAccountFromMap(ctx context.Context, values map[string]any, scopes []string, opts ...Option) (*ServiceAccount, error) {
	key, err := auth.ServiceAccountKeyFromMap(values)
	if err != nil {
		return nil, core.MapError(err)
	}
	return NewServiceAccount(ctx, key, scopes, opts...)
}

// ServiceAccountDefault returns a client backed by application default
// credentials with the cloud-platform scope.
func ServiceAccountDefault(ctx context.Context, opts ...Option) (*Client, error) {
	controller, err := NewServiceAccount(ctx, nil, []string{CloudPlatformScope}, opts...)
	if err != nil {
		return nil, err
	}
	return controller.Client(ctx)
}

func (s *ServiceAccount) APIs() registry.ResolvedAPIs {
	return s.apis
}

func (s *ServiceAccount) Scopes() []string {
	return slices.Clone(s.scopes)
}

func (s *ServiceAccount) Email() string {
	return s.key.Email()
}

func (s *ServiceAccount) DelegationEnabled() bool {
	return s.rt.delegation
}

// Client returns a client for the service account itself. The token is
// exchanged on the first request.
func (s *ServiceAccount) Client(ctx context.Context) (*Client, error) {
	if s == nil || s.rt == nil {
		return nil, core.BadInputError("service account controller is not configured")
	}
	if s.key == nil {
		creds, err := s.rt.findDefault(s.rt.tokenContext(ctx), s.scopes...)
		if err != nil {
			return nil, core.CredentialMissingError("application default credentials are not available").
				WithMetadata(map[string]any{"error": err.Error()})
		}
		client := newClient(ctx, s.rt, s.apis, s.scopes, creds.TokenSource)
		client.projectID = creds.ProjectID
		return client, nil
	}
	return s.clientFor(ctx, s.key), nil
}

// Delegate returns a client impersonating subject. When delegation was not
// enabled the service account's own client is returned.
func (s *ServiceAccount) Delegate(ctx context.Context, subject string) (*Client, error) {
	if s == nil || s.rt == nil {
		return nil, core.BadInputError("service account controller is not configured")
	}
	if !s.rt.delegation {
		core.LogWarn(ctx, s.rt.logger, "Domain Wide Delegation disabled", map[string]any{"subject": subject})
		return s.Client(ctx)
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, core.BadInputError("delegation subject is required")
	}
	if s.key == nil {
		return nil, core.BadInputError("delegation requires a service account key")
	}
	core.LogDebug(ctx, s.rt.logger, "delegating service account", map[string]any{
		"service_account": s.key.Email(),
		"subject":         subject,
	})
	return s.clientFor(ctx, s.key.WithSubject(subject)), nil
}

func (s *ServiceAccount) clientFor(ctx context.Context, key *auth.ServiceAccountKey) *Client {
	client := newClient(ctx, s.rt, s.apis, s.scopes, key.TokenSource(s.rt.tokenContext(ctx), s.scopes))
	client.projectID = key.ProjectID()
	client.subject = key.Subject()
	return client
}
