package registry

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/goliatone/go-easygoogle/core"
)

const subVersionMarker = "_v"

// ResolvedAPI is one API family unlocked by a set of scopes. Versions holds
// the preferred version first.
type ResolvedAPI struct {
	Tag      string
	Name     string
	Versions []string

	preferred []string
}

// DefaultVersion picks the preferred version of the API.
func (a ResolvedAPI) DefaultVersion() (string, error) {
	switch {
	case len(a.preferred) > 1:
		return "", core.UncertainPreferredVersionError(a.Tag)
	case len(a.preferred) == 1:
		return a.preferred[0], nil
	case len(a.Versions) == 1:
		return a.Versions[0], nil
	default:
		return "", core.UnknownPreferredVersionError(a.Tag)
	}
}

func (a ResolvedAPI) HasVersion(version string) bool {
	return slices.Contains(a.Versions, version)
}

func (a ResolvedAPI) clone() ResolvedAPI {
	a.Versions = slices.Clone(a.Versions)
	a.preferred = slices.Clone(a.preferred)
	return a
}

type ResolvedAPIs struct {
	apis       map[string]ResolvedAPI
	scopes     []string
	unresolved []string
}

// Lookup fails with the invalid identifier error for unknown tags.
func (r ResolvedAPIs) Lookup(tag string) (ResolvedAPI, error) {
	api, ok := r.apis[strings.TrimSpace(tag)]
	if !ok {
		return ResolvedAPI{}, core.InvalidAPIIdentifierError(tag)
	}
	return api.clone(), nil
}

// Select resolves the version to build for tag. An empty version selects
// the preferred one.
func (r ResolvedAPIs) Select(tag string, version string) (ResolvedAPI, string, error) {
	api, err := r.Lookup(tag)
	if err != nil {
		return ResolvedAPI{}, "", err
	}
	version = strings.TrimSpace(version)
	if version == "" {
		chosen, err := api.DefaultVersion()
		if err != nil {
			return ResolvedAPI{}, "", err
		}
		return api, chosen, nil
	}
	if !api.HasVersion(version) {
		return ResolvedAPI{}, "", core.UnknownVersionError(api.Tag, version)
	}
	return api, version, nil
}

func (r ResolvedAPIs) Has(tag string) bool {
	_, ok := r.apis[strings.TrimSpace(tag)]
	return ok
}

func (r ResolvedAPIs) Tags() []string {
	tags := make([]string, 0, len(r.apis))
	for tag := range r.apis {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func (r ResolvedAPIs) Len() int {
	return len(r.apis)
}

// Map returns a copy of the tag table.
func (r ResolvedAPIs) Map() map[string]ResolvedAPI {
	out := make(map[string]ResolvedAPI, len(r.apis))
	for tag, api := range r.apis {
		out[tag] = api.clone()
	}
	return out
}

// Scopes lists the canonical scope URLs to request, sorted.
func (r ResolvedAPIs) Scopes() []string {
	return slices.Clone(r.scopes)
}

// Unresolved lists requested names that matched no registry entry.
func (r ResolvedAPIs) Unresolved() []string {
	return slices.Clone(r.unresolved)
}

type Resolver struct {
	registry *Registry
	logger   core.Logger
}

type ResolverOption func(*Resolver)

func WithLogger(logger core.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewResolver(reg *Registry, opts ...ResolverOption) (*Resolver, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry: registry is required")
	}
	_, logger := core.ResolveLogger("easygoogle.registry", nil, nil)
	resolver := &Resolver{registry: reg, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(resolver)
		}
	}
	return resolver, nil
}

func (r *Resolver) Registry() *Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Resolve maps requested scope names to API tags. Names are deduplicated and
// visited in sorted order so the result does not depend on input ordering.
// Unknown names are skipped with a warning; unknown names that are already
// scope URLs are still requested.
func (r *Resolver) Resolve(ctx context.Context, scopes []string) (ResolvedAPIs, error) {
	if r == nil || r.registry == nil {
		return ResolvedAPIs{}, fmt.Errorf("registry: resolver is not configured")
	}

	names := core.NormalizeScopes(scopes)
	sort.Strings(names)

	out := ResolvedAPIs{apis: map[string]ResolvedAPI{}}
	requested := []string{}
	for _, name := range names {
		entry, ok := r.registry.Lookup(name)
		if !ok {
			if isScopeURL(name) {
				requested = append(requested, name)
				core.LogDebug(ctx, r.logger, "scope url not registered, requesting as is", map[string]any{"scope": name})
				continue
			}
			out.unresolved = append(out.unresolved, name)
			core.LogWarn(ctx, r.logger, "scope not registered", map[string]any{"scope": name})
			continue
		}
		if entry.Scope != "" {
			requested = append(requested, entry.Scope)
		}
		for _, record := range entry.APIs {
			mergeRecord(out.apis, record)
		}
		core.LogDebug(ctx, r.logger, "scope resolved", map[string]any{
			"scope": entry.Name,
			"apis":  describeRecords(entry.APIs),
		})
	}
	out.scopes = core.UnionScopes(requested)
	return out, nil
}

// Tag derives the resolver key for a record: the API name, suffixed with the
// version's sub identifier when the version embeds one before "_v".
func Tag(record APIRecord) string {
	parts := strings.Split(record.Version, subVersionMarker)
	if len(parts) > 1 {
		return record.Name + "_" + parts[0]
	}
	return record.Name
}

func mergeRecord(apis map[string]ResolvedAPI, record APIRecord) {
	tag := Tag(record)
	current, ok := apis[tag]
	if !ok {
		current = ResolvedAPI{Tag: tag, Name: record.Name, Versions: []string{record.Version}}
		if record.Preferred {
			current.preferred = []string{record.Version}
		}
		apis[tag] = current
		return
	}

	if record.Preferred {
		if !slices.Contains(current.preferred, record.Version) {
			current.preferred = append(current.preferred, record.Version)
		}
		current.Versions = slices.DeleteFunc(current.Versions, func(v string) bool {
			return v == record.Version
		})
		current.Versions = slices.Insert(current.Versions, 0, record.Version)
	} else if !slices.Contains(current.Versions, record.Version) {
		current.Versions = append(current.Versions, record.Version)
	}
	apis[tag] = current
}

func describeRecords(records []APIRecord) []string {
	out := make([]string, 0, len(records))
	for _, record := range records {
		out = append(out, record.Name+" "+record.Version)
	}
	return out
}

func isScopeURL(value string) bool {
	return strings.HasPrefix(value, "https://") || strings.HasPrefix(value, "http://")
}
