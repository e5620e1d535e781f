package easygoogle

import (
	"context"
	"net/http"
	"slices"

	"github.com/goliatone/go-easygoogle/registry"
	"golang.org/x/oauth2"
	discoveryv1 "google.golang.org/api/discovery/v1"
	"google.golang.org/api/option"
)

// Client is an authorized session for the APIs unlocked by a scope set.
type Client struct {
	apis        registry.ResolvedAPIs
	scopes      []string
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
	projectID   string
	subject     string
	documents   *documentSource
}

func newClient(ctx context.Context, rt *runtime, apis registry.ResolvedAPIs, scopes []string, source oauth2.TokenSource) *Client {
	return &Client{
		apis:        apis,
		scopes:      slices.Clone(scopes),
		tokenSource: source,
		httpClient:  oauth2.NewClient(rt.tokenContext(ctx), source),
		documents:   rt.documents,
	}
}

func (c *Client) APIs() registry.ResolvedAPIs {
	return c.apis
}

// Scopes lists the scope URLs the client was authorized for.
func (c *Client) Scopes() []string {
	return slices.Clone(c.scopes)
}

func (c *Client) TokenSource() oauth2.TokenSource {
	return c.tokenSource
}

// HTTPClient attaches the bearer token to every request.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// ProjectID is known for service account keys and default credentials.
func (c *Client) ProjectID() string {
	return c.projectID
}

// Subject is the impersonated user of a delegated client.
func (c *Client) Subject() string {
	return c.subject
}

// API binds one resolved API. An empty version selects the preferred one.
func (c *Client) API(tag string, version string) (*APIClient, error) {
	api, chosen, err := c.apis.Select(tag, version)
	if err != nil {
		return nil, err
	}
	return &APIClient{
		Tag:        api.Tag,
		Name:       api.Name,
		Version:    chosen,
		httpClient: c.httpClient,
		documents:  c.documents,
	}, nil
}

// Describe fetches the discovery document of a resolved API.
func (c *Client) Describe(ctx context.Context, tag string, version string) (*discoveryv1.RestDescription, error) {
	api, err := c.API(tag, version)
	if err != nil {
		return nil, err
	}
	return api.Describe(ctx)
}

// APIClient is one API at a fixed version, ready to build a typed service
// from google.golang.org/api.
type APIClient struct {
	Tag     string
	Name    string
	Version string

	httpClient *http.Client
	documents  *documentSource
}

func (a *APIClient) HTTPClient() *http.Client {
	return a.httpClient
}

// ClientOptions returns the options for a typed service constructor, such
// as drive.NewService(ctx, api.ClientOptions()...).
func (a *APIClient) ClientOptions(extra ...option.ClientOption) []option.ClientOption {
	opts := make([]option.ClientOption, 0, len(extra)+1)
	opts = append(opts, option.WithHTTPClient(a.httpClient))
	return append(opts, extra...)
}

func (a *APIClient) Describe(ctx context.Context) (*discoveryv1.RestDescription, error) {
	documents, err := a.documents.get(ctx)
	if err != nil {
		return nil, err
	}
	return documents.Get(ctx, a.Name, a.Version)
}
