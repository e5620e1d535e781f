package query

import (
	"github.com/goliatone/go-easygoogle/core"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[ResolveScopesMessage, core.ScopeResolution]   = (*ResolveScopesQuery)(nil)
	_ gocmd.Querier[DescribeAPIMessage, core.APIDescription]      = (*DescribeAPIQuery)(nil)
	_ gocmd.Querier[LoadCredentialMessage, core.CredentialStatus] = (*LoadCredentialQuery)(nil)
)
