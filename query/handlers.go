package query

import (
	"context"

	"github.com/goliatone/go-easygoogle/core"
)

type ScopeResolver interface {
	ResolveScopes(ctx context.Context, req core.ResolveScopesRequest) (core.ScopeResolution, error)
}

type APIDescriber interface {
	DescribeAPI(ctx context.Context, req core.DescribeAPIRequest) (core.APIDescription, error)
}

type CredentialReader interface {
	LoadCredential(ctx context.Context, lookup core.CredentialLookup) (core.CredentialStatus, error)
}

type ResolveScopesQuery struct {
	resolver ScopeResolver
}

func NewResolveScopesQuery(resolver ScopeResolver) *ResolveScopesQuery {
	return &ResolveScopesQuery{resolver: resolver}
}

func (q *ResolveScopesQuery) Query(ctx context.Context, msg ResolveScopesMessage) (core.ScopeResolution, error) {
	if q == nil || q.resolver == nil {
		return core.ScopeResolution{}, queryDependencyError("query: scope resolver is required")
	}
	if err := msg.Validate(); err != nil {
		return core.ScopeResolution{}, err
	}
	return q.resolver.ResolveScopes(ctx, msg.Request)
}

type DescribeAPIQuery struct {
	describer APIDescriber
}

func NewDescribeAPIQuery(describer APIDescriber) *DescribeAPIQuery {
	return &DescribeAPIQuery{describer: describer}
}

func (q *DescribeAPIQuery) Query(ctx context.Context, msg DescribeAPIMessage) (core.APIDescription, error) {
	if q == nil || q.describer == nil {
		return core.APIDescription{}, queryDependencyError("query: api describer is required")
	}
	if err := msg.Validate(); err != nil {
		return core.APIDescription{}, err
	}
	return q.describer.DescribeAPI(ctx, msg.Request)
}

type LoadCredentialQuery struct {
	reader CredentialReader
}

func NewLoadCredentialQuery(reader CredentialReader) *LoadCredentialQuery {
	return &LoadCredentialQuery{reader: reader}
}

func (q *LoadCredentialQuery) Query(ctx context.Context, msg LoadCredentialMessage) (core.CredentialStatus, error) {
	if q == nil || q.reader == nil {
		return core.CredentialStatus{}, queryDependencyError("query: credential reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.CredentialStatus{}, err
	}
	return q.reader.LoadCredential(ctx, msg.Lookup)
}
