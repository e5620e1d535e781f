package cli

import (
	"github.com/spf13/cobra"

	"github.com/goliatone/go-easygoogle/core"
	"github.com/goliatone/go-easygoogle/query"
)

func (c *CLI) resolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <scope>...",
		Short: "Show the scope URLs and APIs a set of scope names unlocks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			facade, release, err := c.facade(ctx, false)
			if err != nil {
				return err
			}
			defer release()
			out, err := facade.Queries().ResolveScopes.Query(ctx, query.ResolveScopesMessage{
				Request: core.ResolveScopesRequest{Scopes: args},
			})
			if err != nil {
				return err
			}

			c.printf("scopes:\n")
			for _, scope := range out.Scopes {
				c.printf("  %s\n", scope)
			}
			c.printf("apis:\n")
			for _, api := range out.APIs {
				preferred := api.Preferred
				if preferred == "" {
					preferred = "?"
				}
				c.printf("  %s\t%s\tpreferred=%s\tversions=%s\n", api.Tag, api.Name, preferred, joinOrDash(api.Versions))
			}
			if len(out.Unresolved) > 0 {
				c.printf("unresolved: %s\n", joinOrDash(out.Unresolved))
			}
			return nil
		},
	}
}
