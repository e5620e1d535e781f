// Package migrations locates the credential table migrations for each SQL
// dialect and hands them to a registration callback.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Root is where the migration tree lives inside a source filesystem. The
// sqlite variants sit in a subdirectory of it.
const Root = "data/sql/migrations"

type FilesystemSpec struct {
	Dialect string
	Path    string
	FS      fs.FS
}

type Registration struct {
	SourceLabel       string
	ValidationTargets []string
	Source            fs.FS
	Filesystems       []FilesystemSpec
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type Option func(*Registration)

func WithSourceLabel(label string) Option {
	return func(r *Registration) {
		if label = strings.TrimSpace(label); label != "" {
			r.SourceLabel = label
		}
	}
}

// WithValidationTargets limits registration to the named dialects.
func WithValidationTargets(targets ...string) Option {
	return func(r *Registration) {
		if normalized := normalizeDialects(targets); len(normalized) > 0 {
			r.ValidationTargets = normalized
		}
	}
}

func WithSource(source fs.FS) Option {
	return func(r *Registration) {
		if source != nil {
			r.Source = source
		}
	}
}

// Filesystems returns the postgres tree at Root and the sqlite tree below
// it. Each must contain at least one *.up.sql file.
func Filesystems(root fs.FS) ([]FilesystemSpec, error) {
	if root == nil {
		return nil, fmt.Errorf("migrations: source filesystem is required")
	}
	specs := make([]FilesystemSpec, 0, 2)
	for _, entry := range []struct{ dialect, dir string }{
		{DialectPostgres, Root},
		{DialectSQLite, path.Join(Root, "sqlite")},
	} {
		sub, err := fs.Sub(root, entry.dir)
		if err != nil {
			return nil, fmt.Errorf("migrations: open %s: %w", entry.dir, err)
		}
		ups, err := fs.Glob(sub, "*.up.sql")
		if err != nil {
			return nil, fmt.Errorf("migrations: glob %s: %w", entry.dir, err)
		}
		if len(ups) == 0 {
			return nil, fmt.Errorf("migrations: no %s migrations in %q", entry.dialect, entry.dir)
		}
		specs = append(specs, FilesystemSpec{Dialect: entry.dialect, Path: entry.dir, FS: sub})
	}
	return specs, nil
}

// Register calls registerFn once for every dialect filesystem selected by
// the validation targets.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) (Registration, error) {
	reg := Registration{
		SourceLabel:       "go-easygoogle",
		ValidationTargets: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&reg)
		}
	}
	if registerFn == nil {
		return reg, fmt.Errorf("migrations: register function is required")
	}

	filesystems, err := Filesystems(reg.Source)
	if err != nil {
		return reg, err
	}
	reg.Filesystems = filesystems

	for _, spec := range reg.Filesystems {
		if !slices.Contains(reg.ValidationTargets, spec.Dialect) {
			continue
		}
		if err := registerFn(ctx, spec.Dialect, reg.SourceLabel, spec.FS); err != nil {
			return reg, fmt.Errorf("migrations: register %s from %s: %w", spec.Dialect, spec.Path, err)
		}
	}
	return reg, nil
}

func normalizeDialects(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value != "" && !slices.Contains(out, value) {
			out = append(out, value)
		}
	}
	return out
}
