package cli

import (
	"github.com/spf13/cobra"

	"github.com/goliatone/go-easygoogle/core"
	"github.com/goliatone/go-easygoogle/query"
)

func (c *CLI) describeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <api> [version]",
		Short: "Fetch an API discovery document; the version defaults to the preferred one",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			facade, release, err := c.facade(ctx, false)
			if err != nil {
				return err
			}
			defer release()
			req := core.DescribeAPIRequest{Name: args[0]}
			if len(args) == 2 {
				req.Version = args[1]
			}
			out, err := facade.Queries().DescribeAPI.Query(ctx, query.DescribeAPIMessage{Request: req})
			if err != nil {
				return err
			}
			c.printf("%s %s\n", out.Name, out.Version)
			if out.Title != "" {
				c.printf("  title:  %s\n", out.Title)
			}
			if out.RootURL != "" {
				c.printf("  root:   %s\n", out.RootURL)
			}
			if out.DocumentationLink != "" {
				c.printf("  docs:   %s\n", out.DocumentationLink)
			}
			c.printf("  scopes: %s\n", joinOrDash(out.Scopes))
			return nil
		},
	}
}
