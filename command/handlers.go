package command

import (
	"context"

	"github.com/goliatone/go-easygoogle/core"
	gocmd "github.com/goliatone/go-command"
)

type CredentialService interface {
	Authorize(ctx context.Context, req core.AuthorizeRequest) (core.AuthorizeResult, error)
	SetCredential(ctx context.Context, req core.SetCredentialRequest) (core.AuthorizeResult, error)
	Forget(ctx context.Context, req core.ForgetRequest) error
}

type AuthorizeCommand struct {
	service CredentialService
}

func NewAuthorizeCommand(service CredentialService) *AuthorizeCommand {
	return &AuthorizeCommand{service: service}
}

func (c *AuthorizeCommand) Execute(ctx context.Context, msg AuthorizeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.Authorize(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SetCredentialCommand struct {
	service CredentialService
}

func NewSetCredentialCommand(service CredentialService) *SetCredentialCommand {
	return &SetCredentialCommand{service: service}
}

func (c *SetCredentialCommand) Execute(ctx context.Context, msg SetCredentialMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.service.SetCredential(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ForgetCommand struct {
	service CredentialService
}

func NewForgetCommand(service CredentialService) *ForgetCommand {
	return &ForgetCommand{service: service}
}

func (c *ForgetCommand) Execute(ctx context.Context, msg ForgetMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: credential service is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.service.Forget(ctx, msg.Request)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
