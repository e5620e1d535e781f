package easygoogle

import (
	"fmt"

	eggcommand "github.com/goliatone/go-easygoogle/command"
	eggquery "github.com/goliatone/go-easygoogle/query"
)

type CommandQueryService interface {
	eggcommand.CredentialService
	eggquery.ScopeResolver
	eggquery.APIDescriber
	eggquery.CredentialReader
}

type Commands struct {
	Authorize     *eggcommand.AuthorizeCommand
	SetCredential *eggcommand.SetCredentialCommand
	Forget        *eggcommand.ForgetCommand
}

type Queries struct {
	ResolveScopes  *eggquery.ResolveScopesQuery
	DescribeAPI    *eggquery.DescribeAPIQuery
	LoadCredential *eggquery.LoadCredentialQuery
}

// Facade exposes a service through go-command handlers.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("easygoogle: command/query service is required")
	}
	return &Facade{
		service: service,
		commands: Commands{
			Authorize:     eggcommand.NewAuthorizeCommand(service),
			SetCredential: eggcommand.NewSetCredentialCommand(service),
			Forget:        eggcommand.NewForgetCommand(service),
		},
		queries: Queries{
			ResolveScopes:  eggquery.NewResolveScopesQuery(service),
			DescribeAPI:    eggquery.NewDescribeAPIQuery(service),
			LoadCredential: eggquery.NewLoadCredentialQuery(service),
		},
	}, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*Service)(nil)
