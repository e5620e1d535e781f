// Package cli implements the easygoogle command-line interface: registry
// generation, scope resolution, credential management and discovery
// document lookup.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	easygoogle "github.com/goliatone/go-easygoogle"
	"github.com/goliatone/go-easygoogle/adapters/charmlog"
	"github.com/goliatone/go-easygoogle/auth"
	"github.com/goliatone/go-easygoogle/core"
	"github.com/goliatone/go-easygoogle/registry"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Out    io.Writer
	In     io.Reader

	secretsPath  string
	registryPath string
	user         string
	mode         string
	appName      string
	appDir       string

	// discoveryEndpoint overrides the discovery base path.
	discoveryEndpoint string
	extra             []easygoogle.Option
}

func New(out io.Writer, logOut io.Writer, level log.Level, extra ...easygoogle.Option) *CLI {
	return &CLI{
		Logger: charmlog.NewCharmLogger(logOut, level),
		Out:    out,
		In:     os.Stdin,
		extra:  extra,
	}
}

func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "easygoogle",
		Short:        "Resolve Google API scopes and manage cached credentials",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.secretsPath, "secrets", "", "path to the OAuth client secrets file")
	flags.StringVar(&c.registryPath, "registry", "", "path to a registry file (default: embedded registry)")
	flags.StringVar(&c.user, "user", "", "credential identity user")
	flags.StringVar(&c.mode, "mode", "", "auth mode: BROWSER, CONSOLE, SILENT or MANUAL")
	flags.StringVar(&c.appName, "app-name", "", "application name used for the credential store")
	flags.StringVar(&c.appDir, "app-dir", "", "directory holding .credentials")

	root.AddCommand(c.registryCommand())
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.authCommand())
	root.AddCommand(c.describeCommand())

	return root
}

func (c *CLI) options() ([]easygoogle.Option, error) {
	opts := []easygoogle.Option{
		easygoogle.WithLoggerProvider(charmlog.NewProvider(c.Logger)),
		easygoogle.WithConsoleIO(c.In, c.Out),
	}
	if c.registryPath != "" {
		reg, err := registry.Load(c.registryPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, easygoogle.WithRegistry(reg))
	}
	if c.mode != "" {
		mode, err := core.ParseAuthMode(c.mode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, easygoogle.WithAuthMode(mode))
	}
	if c.appName != "" {
		opts = append(opts, easygoogle.WithAppName(c.appName))
	}
	if c.appDir != "" {
		opts = append(opts, easygoogle.WithAppDir(c.appDir))
	}
	return append(opts, c.extra...), nil
}

// facade builds the command/query facade. Secrets are optional for
// registry and discovery queries. The returned func releases the service.
func (c *CLI) facade(ctx context.Context, requireSecrets bool) (*easygoogle.Facade, func(), error) {
	var secrets *auth.ClientSecrets
	if c.secretsPath != "" {
		loaded, err := auth.LoadClientSecrets(c.secretsPath)
		if err != nil {
			return nil, nil, err
		}
		secrets = loaded
	} else if requireSecrets {
		return nil, nil, fmt.Errorf("--secrets is required")
	}
	opts, err := c.options()
	if err != nil {
		return nil, nil, err
	}
	service, err := easygoogle.NewService(ctx, secrets, opts...)
	if err != nil {
		return nil, nil, err
	}
	facade, err := easygoogle.NewFacade(service)
	if err != nil {
		_ = service.Close()
		return nil, nil, err
	}
	return facade, func() { _ = service.Close() }, nil
}

func (c *CLI) printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
