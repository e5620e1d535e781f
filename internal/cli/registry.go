package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-easygoogle/adapters/charmlog"
	"github.com/goliatone/go-easygoogle/discovery"
	"github.com/goliatone/go-easygoogle/registry"
)

func (c *CLI) registryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Generate or inspect the scope registry",
	}
	cmd.AddCommand(c.registryGenerateCommand())
	cmd.AddCommand(c.registryShowCommand())
	return cmd
}

func (c *CLI) registryGenerateCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Rebuild the registry from the Google API discovery service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			provider := charmlog.NewProvider(c.Logger)
			client, err := discovery.NewClient(ctx, discovery.ClientConfig{
				Endpoint: c.discoveryEndpoint,
				Logger:   provider.GetLogger("easygoogle.discovery"),
			})
			if err != nil {
				return err
			}
			generator, err := registry.NewGenerator(client,
				registry.WithGeneratorLogger(provider.GetLogger("easygoogle.registry")),
			)
			if err != nil {
				return err
			}
			reg, err := generator.Generate(ctx)
			if err != nil {
				return err
			}

			var w io.Writer = c.Out
			if output != "" {
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer file.Close()
				w = file
			}
			if err := reg.Write(w); err != nil {
				return err
			}
			c.Logger.Info("registry generated", "scopes", reg.Len(), "output", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the registry to this file instead of stdout")
	return cmd
}

func (c *CLI) registryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List registered scope names and their URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.LoadOrDefault(c.registryPath)
			if err != nil {
				return err
			}
			urls := reg.ScopeURLs()
			for _, name := range reg.Names() {
				c.printf("%s\t%s\n", name, urls[name])
			}
			return nil
		},
	}
}
