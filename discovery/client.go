package discovery

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-easygoogle/core"
	discoveryv1 "google.golang.org/api/discovery/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Fetcher returns API discovery documents.
type Fetcher interface {
	ListAPIs(ctx context.Context) ([]*discoveryv1.DirectoryListItems, error)
	GetRest(ctx context.Context, name string, version string, fields ...string) (*discoveryv1.RestDescription, error)
}

type ClientConfig struct {
	// Endpoint overrides the discovery base path, mainly for tests.
	Endpoint   string
	HTTPClient *http.Client
	UserAgent  string
	Logger     core.Logger
}

// Client talks to the public Google API discovery service. Requests are sent
// unauthenticated unless an HTTP client is supplied.
type Client struct {
	service *discoveryv1.Service
	logger  core.Logger
}

func NewClient(ctx context.Context, cfg ClientConfig, opts ...option.ClientOption) (*Client, error) {
	clientOpts := make([]option.ClientOption, 0, len(opts)+3)
	if cfg.HTTPClient != nil {
		clientOpts = append(clientOpts, option.WithHTTPClient(cfg.HTTPClient))
	} else {
		clientOpts = append(clientOpts, option.WithoutAuthentication())
	}
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(endpoint))
	}
	if agent := strings.TrimSpace(cfg.UserAgent); agent != "" {
		clientOpts = append(clientOpts, option.WithUserAgent(agent))
	}
	clientOpts = append(clientOpts, opts...)

	service, err := discoveryv1.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("discovery: new service: %w", err)
	}
	_, logger := core.ResolveLogger("easygoogle.discovery", nil, cfg.Logger)
	return &Client{service: service, logger: logger}, nil
}

func (c *Client) ListAPIs(ctx context.Context) ([]*discoveryv1.DirectoryListItems, error) {
	if c == nil || c.service == nil {
		return nil, fmt.Errorf("discovery: client is not configured")
	}
	list, err := c.service.Apis.List().
		Fields("items(name,version,title,preferred)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("discovery: list apis: %w", err)
	}
	core.LogDebug(ctx, c.logger, "discovery directory listed", map[string]any{"apis": len(list.Items)})
	return list.Items, nil
}

// GetRest fetches the REST description of name/version. Fields limits the
// response to the given partial response selectors.
func (c *Client) GetRest(ctx context.Context, name string, version string, fields ...string) (*discoveryv1.RestDescription, error) {
	if c == nil || c.service == nil {
		return nil, fmt.Errorf("discovery: client is not configured")
	}
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if name == "" || version == "" {
		return nil, core.BadInputError("discovery: api name and version are required")
	}
	call := c.service.Apis.GetRest(name, version)
	if len(fields) > 0 {
		selectors := make([]googleapi.Field, 0, len(fields))
		for _, field := range fields {
			if trimmed := strings.TrimSpace(field); trimmed != "" {
				selectors = append(selectors, googleapi.Field(trimmed))
			}
		}
		call = call.Fields(selectors...)
	}
	description, err := call.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("discovery: get rest %s/%s: %w", name, version, err)
	}
	return description, nil
}

var _ Fetcher = (*Client)(nil)
