package cli

import (
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-easygoogle/command"
	"github.com/goliatone/go-easygoogle/core"
	"github.com/goliatone/go-easygoogle/query"
)

func (c *CLI) authCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage cached user credentials",
	}
	cmd.AddCommand(c.authLoginCommand())
	cmd.AddCommand(c.authStatusCommand())
	cmd.AddCommand(c.authForgetCommand())
	return cmd
}

func (c *CLI) authLoginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login <scope>...",
		Short: "Authorize the scopes, reusing a cached credential when it covers them",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			facade, release, err := c.facade(ctx, true)
			if err != nil {
				return err
			}
			defer release()
			collector := gocmd.NewResult[core.AuthorizeResult]()
			err = facade.Commands().Authorize.Execute(gocmd.ContextWithResult(ctx, collector), command.AuthorizeMessage{
				Request: core.AuthorizeRequest{User: c.user, Scopes: args},
			})
			if err != nil {
				return err
			}
			result, _ := collector.Load()
			c.printf("authorized %s\n", result.User)
			c.printf("  key:    %s\n", result.StorageKey)
			c.printf("  scopes: %s\n", joinOrDash(result.Scopes))
			c.printf("  apis:   %s\n", joinOrDash(result.APIs))
			if !result.Expiry.IsZero() {
				c.printf("  expiry: %s\n", result.Expiry.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func (c *CLI) authStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status [scope]...",
		Short: "Show the cached credential for the user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			facade, release, err := c.facade(ctx, true)
			if err != nil {
				return err
			}
			defer release()
			status, err := facade.Queries().LoadCredential.Query(ctx, query.LoadCredentialMessage{
				Lookup: core.CredentialLookup{User: c.user, Scopes: args},
			})
			if err != nil {
				return err
			}
			if !status.Found {
				c.printf("no credential stored for %s\n", status.User)
				return nil
			}
			c.printf("credential for %s\n", status.User)
			c.printf("  key:     %s\n", status.StorageKey)
			c.printf("  scopes:  %s\n", joinOrDash(status.Scopes))
			c.printf("  refresh: %t\n", status.HasRefreshToken)
			if len(args) > 0 {
				c.printf("  covers requested scopes: %t\n", status.Covered)
			}
			return nil
		},
	}
}

func (c *CLI) authForgetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "forget",
		Short: "Delete the cached credential for the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			facade, release, err := c.facade(ctx, true)
			if err != nil {
				return err
			}
			defer release()
			if err := facade.Commands().Forget.Execute(ctx, command.ForgetMessage{
				Request: core.ForgetRequest{User: c.user},
			}); err != nil {
				return err
			}
			c.printf("credential removed\n")
			return nil
		},
	}
}
