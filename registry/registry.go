package registry

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"
)

//go:embed data/apis.json
var defaultRegistryJSON []byte

type APIRecord struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Preferred bool   `json:"preferred"`
	Title     string `json:"title,omitempty"`
}

// Entry links a scope short name to the APIs it unlocks.
type Entry struct {
	Name  string      `json:"-"`
	APIs  []APIRecord `json:"apis"`
	Scope string      `json:"scope"`
}

// Registry is an immutable scope name to Entry table.
type Registry struct {
	entries map[string]Entry
	byURL   map[string]string
}

func New(entries map[string]Entry) (*Registry, error) {
	reg := &Registry{
		entries: make(map[string]Entry, len(entries)),
		byURL:   make(map[string]string, len(entries)),
	}
	for name, entry := range entries {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return nil, fmt.Errorf("registry: scope name is required")
		}
		for i, api := range entry.APIs {
			if strings.TrimSpace(api.Name) == "" || strings.TrimSpace(api.Version) == "" {
				return nil, fmt.Errorf("registry: scope %q api #%d requires name and version", trimmed, i)
			}
		}
		entry.Name = trimmed
		entry.APIs = slices.Clone(entry.APIs)
		entry.Scope = strings.TrimSpace(entry.Scope)
		reg.entries[trimmed] = entry
		if entry.Scope != "" {
			reg.byURL[entry.Scope] = trimmed
		}
	}
	return reg, nil
}

func Parse(data []byte) (*Registry, error) {
	entries := map[string]Entry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("registry: decode registry: %w", err)
	}
	return New(entries)
}

func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: read %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the registry bundled with the module.
func Default() (*Registry, error) {
	return Parse(defaultRegistryJSON)
}

// LoadOrDefault loads path when set, the bundled registry otherwise.
func LoadOrDefault(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	return Load(path)
}

// Lookup accepts a short scope name or its canonical URL.
func (r *Registry) Lookup(name string) (Entry, bool) {
	if r == nil {
		return Entry{}, false
	}
	trimmed := strings.TrimSpace(name)
	if entry, ok := r.entries[trimmed]; ok {
		return cloneEntry(entry), true
	}
	if short, ok := r.byURL[trimmed]; ok {
		return cloneEntry(r.entries[short]), true
	}
	return Entry{}, false
}

func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// ScopeURLs maps every short scope name to its canonical URL.
func (r *Registry) ScopeURLs() map[string]string {
	out := map[string]string{}
	if r == nil {
		return out
	}
	for name, entry := range r.entries {
		out[name] = entry.Scope
	}
	return out
}

// PreferredVersions lists, sorted, the versions of apiName flagged
// preferred by any entry.
func (r *Registry) PreferredVersions(apiName string) []string {
	out := []string{}
	if r == nil {
		return out
	}
	apiName = strings.TrimSpace(apiName)
	for _, entry := range r.entries {
		for _, record := range entry.APIs {
			if record.Name == apiName && record.Preferred && !slices.Contains(out, record.Version) {
				out = append(out, record.Version)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (r *Registry) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.entries)
}

// Write emits the registry in its file format.
func (r *Registry) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		return fmt.Errorf("registry: encode registry: %w", err)
	}
	return nil
}

func cloneEntry(entry Entry) Entry {
	entry.APIs = slices.Clone(entry.APIs)
	return entry
}

// ScopeShortName derives the registry key for a scope URL: its last path
// segment once surrounding slashes are trimmed.
func ScopeShortName(scopeURL string) string {
	trimmed := strings.Trim(strings.TrimSpace(scopeURL), "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
