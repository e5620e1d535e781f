package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-easygoogle/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	discoveryv1 "google.golang.org/api/discovery/v1"
)

const documentCacheKeyPrefix = "go-easygoogle::discovery::v1"

// Documents serves full REST descriptions through a read-through cache.
type Documents struct {
	fetcher Fetcher
	cache   repositorycache.CacheService
	logger  core.Logger
}

// NewDocuments wraps fetcher. A nil cache service disables caching.
func NewDocuments(fetcher Fetcher, cacheService repositorycache.CacheService, logger core.Logger) (*Documents, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("discovery: fetcher is required")
	}
	_, resolved := core.ResolveLogger("easygoogle.discovery", nil, logger)
	return &Documents{fetcher: fetcher, cache: cacheService, logger: resolved}, nil
}

// DocumentCacheKey returns go-easygoogle::discovery::v1::<name>::<version>
// with each segment URL-path escaped.
func DocumentCacheKey(name string, version string) (string, error) {
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if name == "" || version == "" {
		return "", core.BadInputError("discovery: api name and version are required")
	}
	return strings.Join([]string{
		documentCacheKeyPrefix,
		url.PathEscape(name),
		url.PathEscape(version),
	}, "::"), nil
}

func (d *Documents) Get(ctx context.Context, name string, version string) (*discoveryv1.RestDescription, error) {
	if d == nil || d.fetcher == nil {
		return nil, fmt.Errorf("discovery: documents are not configured")
	}
	key, err := DocumentCacheKey(name, version)
	if err != nil {
		return nil, err
	}
	if d.cache == nil {
		return d.fetch(ctx, name, version)
	}
	description, err := repositorycache.GetOrFetch(ctx, d.cache, key, func(ctx context.Context) (*discoveryv1.RestDescription, error) {
		return d.fetch(ctx, name, version)
	})
	if err != nil {
		return nil, err
	}
	return description, nil
}

func (d *Documents) Invalidate(ctx context.Context, name string, version string) error {
	if d == nil || d.cache == nil {
		return nil
	}
	key, err := DocumentCacheKey(name, version)
	if err != nil {
		return err
	}
	return d.cache.Delete(ctx, key)
}

func (d *Documents) fetch(ctx context.Context, name string, version string) (*discoveryv1.RestDescription, error) {
	description, err := d.fetcher.GetRest(ctx, strings.TrimSpace(name), strings.TrimSpace(version))
	if err != nil {
		return nil, err
	}
	core.LogDebug(ctx, d.logger, "discovery document fetched", map[string]any{
		"api":     name,
		"version": version,
	})
	return description, nil
}
