// Package console is the command line of the application:
//
//	go-wiring serve                  # HTTP front on APP_PORT
//	go-wiring check                  # validate the service descriptors
//	go-wiring services               # list declared services
//	go-wiring groups handler         # list the members of a group
package console

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/km-arc/go-wiring/framework/app"
	"github.com/km-arc/go-wiring/framework/config"
	"github.com/km-arc/go-wiring/framework/container"
	"github.com/km-arc/go-wiring/framework/container/loader"
	"github.com/km-arc/go-wiring/framework/logging"
	"github.com/km-arc/go-wiring/framework/providers"
)

// RegisterFunc fills the type registry with the application's types.
type RegisterFunc func(reg *container.Registry) error

type options struct {
	envFile     string
	descriptors []string
	port        string
}

// NewRootCommand builds the command tree. register is applied to a fresh
// registry every time a command needs one.
func NewRootCommand(register RegisterFunc) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "go-wiring",
		Short:         "Configuration-driven service container with an HTTP front",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env", ".env", "environment file to load")
	root.PersistentFlags().StringSliceVarP(&opts.descriptors, "descriptors", "d", nil,
		"descriptor files, overrides CONTAINER_DESCRIPTORS")

	root.AddCommand(
		serveCommand(opts, register),
		checkCommand(opts, register),
		servicesCommand(opts),
		groupsCommand(opts),
	)
	return root
}

// Execute runs the command line and exits non-zero on failure.
func Execute(register RegisterFunc) {
	if err := NewRootCommand(register).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ── serve ─────────────────────────────────────────────────────────────────────

func serveCommand(opts *options, register RegisterFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server. Every request gets its own container built
from the service descriptors and is dispatched to the front service.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.config()
			if opts.port != "" {
				cfg.App.Port = opts.port
			}
			log := logging.New(cfg)
			defer func() { _ = log.Sync() }()

			application, err := newApplication(cfg, log, register)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return application.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&opts.port, "port", "p", "", "port to listen on, overrides APP_PORT")
	return cmd
}

// ── check ─────────────────────────────────────────────────────────────────────

func checkCommand(opts *options, register RegisterFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the service descriptors against the registered types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.config()
			f, err := loader.LoadAll(cfg.Container.Descriptors...)
			if err != nil {
				return err
			}
			reg, err := newRegistry(register)
			if err != nil {
				return err
			}
			if err := container.Check(reg, f.Descriptors, providers.Names()...); err != nil {
				return fmt.Errorf("invalid service descriptors:\n%w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d service descriptors\n", len(f.Descriptors))
			return nil
		},
	}
}

// ── services / groups ─────────────────────────────────────────────────────────

func servicesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "services",
		Short: "List the declared services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.container()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range c.Names() {
				d, _ := c.Descriptor(name)
				shared := "shared"
				if !d.IsShared() {
					shared = "prototype"
				}
				fmt.Fprintf(out, "%-24s %-16s %s\n", name, typeOf(d), shared)
			}
			return nil
		},
	}
}

func groupsCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "groups <group>",
		Short: "List the members of a service group in resolution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.container()
			if err != nil {
				return err
			}
			members := c.Group(args[0])
			if len(members) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "group %q has no members\n", args[0])
				return nil
			}
			for _, m := range members {
				fmt.Fprintf(cmd.OutOrStdout(), "%-16s %s\n", m.Short, m.Name)
			}
			return nil
		},
	}
}

// ── Helpers ──────────────────────────────────────────────────────────────────

func (o *options) config() *config.Config {
	cfg := config.Load(o.envFile)
	if len(o.descriptors) > 0 {
		cfg.Container.Descriptors = o.descriptors
	}
	return cfg
}

// container loads the descriptors into a container without a registry, so
// nothing can be built; it only answers questions about declarations.
func (o *options) container() (*container.Container, error) {
	f, err := loader.LoadAll(o.config().Container.Descriptors...)
	if err != nil {
		return nil, err
	}
	return container.New(nil, f.Descriptors, f.Variables)
}

func newRegistry(register RegisterFunc) (*container.Registry, error) {
	reg := container.NewRegistry()
	if register != nil {
		if err := register(reg); err != nil {
			return nil, fmt.Errorf("registering types: %w", err)
		}
	}
	return reg, nil
}

func newApplication(cfg *config.Config, log *zap.Logger, register RegisterFunc) (*app.Application, error) {
	reg, err := newRegistry(register)
	if err != nil {
		return nil, err
	}
	application := app.New(cfg, log, reg)
	if err := application.Load(); err != nil {
		return nil, err
	}
	return application, nil
}

func typeOf(d container.Descriptor) string {
	switch {
	case d.Type != "" && d.Factory != "":
		return d.Type + "::" + d.Factory
	case d.Type != "":
		return d.Type
	}
	return d.Factory + "()"
}
