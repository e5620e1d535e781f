package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-easygoogle/core"
	discoveryv1 "google.golang.org/api/discovery/v1"
)

// DiscoverySource is the slice of the discovery service the generator needs.
type DiscoverySource interface {
	ListAPIs(ctx context.Context) ([]*discoveryv1.DirectoryListItems, error)
	GetRest(ctx context.Context, name string, version string, fields ...string) (*discoveryv1.RestDescription, error)
}

type Generator struct {
	source DiscoverySource
	logger core.Logger
}

type GeneratorOption func(*Generator)

func WithGeneratorLogger(logger core.Logger) GeneratorOption {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewGenerator(source DiscoverySource, opts ...GeneratorOption) (*Generator, error) {
	if source == nil {
		return nil, fmt.Errorf("registry: discovery source is required")
	}
	_, logger := core.ResolveLogger("easygoogle.registry", nil, nil)
	generator := &Generator{source: source, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(generator)
		}
	}
	return generator, nil
}

// Generate lists every API known to the discovery service and registers each
// OAuth2 scope of its REST description under the scope's short name. APIs
// whose description cannot be fetched are skipped with a warning.
func (g *Generator) Generate(ctx context.Context) (*Registry, error) {
	if g == nil || g.source == nil {
		return nil, fmt.Errorf("registry: generator is not configured")
	}
	items, err := g.source.ListAPIs(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry: list apis: %w", err)
	}

	entries := map[string]Entry{}
	for _, item := range items {
		if item == nil || strings.TrimSpace(item.Name) == "" || strings.TrimSpace(item.Version) == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record := APIRecord{
			Name:      item.Name,
			Version:   item.Version,
			Preferred: item.Preferred,
			Title:     item.Title,
		}

		description, err := g.source.GetRest(ctx, item.Name, item.Version, "auth")
		if err != nil {
			core.LogWarn(ctx, g.logger, "could not acquire discovery document", map[string]any{
				"api":     item.Name,
				"version": item.Version,
				"error":   err.Error(),
			})
			continue
		}

		for _, scopeURL := range descriptionScopes(description) {
			name := ScopeShortName(scopeURL)
			if name == "" {
				continue
			}
			entry, ok := entries[name]
			if !ok {
				entry = Entry{Name: name, Scope: scopeURL}
			}
			entry.APIs = append(entry.APIs, record)
			entries[name] = entry
			core.LogDebug(ctx, g.logger, "configuring scope", map[string]any{
				"scope": name,
				"api":   item.Title,
			})
		}
	}

	reg, err := New(entries)
	if err != nil {
		return nil, err
	}
	core.LogInfo(ctx, g.logger, "registry generated", map[string]any{
		"apis":   len(items),
		"scopes": reg.Len(),
	})
	return reg, nil
}

func descriptionScopes(description *discoveryv1.RestDescription) []string {
	if description == nil || description.Auth == nil || description.Auth.Oauth2 == nil {
		return nil
	}
	scopes := make([]string, 0, len(description.Auth.Oauth2.Scopes))
	for scope := range description.Auth.Oauth2.Scopes {
		scopes = append(scopes, scope)
	}
	sort.Strings(scopes)
	return scopes
}
