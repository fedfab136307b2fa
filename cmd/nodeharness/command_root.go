package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-node-harness/internal/config"
	"github.com/randomizedcoder/go-node-harness/internal/logging"
	"github.com/randomizedcoder/go-node-harness/internal/orchestrator"
	"github.com/randomizedcoder/go-node-harness/pkg/command"
)

// app carries the state shared by every subcommand.
type app struct {
	cfg    *config.Config
	pairs  config.PairList
	logger *slog.Logger
}

func NewRootCmd() *cobra.Command {
	a := &app{cfg: config.DefaultConfig()}

	root := &cobra.Command{
		Use:           "nodeharness",
		Short:         "Launch and supervise the node binary",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	config.BindFlags(root.PersistentFlags(), a.cfg)
	root.PersistentFlags().Var(&a.pairs, "arg", "Extra node argument as flag=value (repeatable, kept in order)")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newWatchCmd(a))
	root.AddCommand(newDumpConfigCmd(a))
	root.AddCommand(newGenerateWalletCmd(a))
	root.AddCommand(newRecoverWalletCmd(a))
	root.AddCommand(newCheckCmd(a))
	root.AddCommand(newVersionCmd())

	return root
}

// setup validates the configuration and installs the logger. When the
// dashboard is enabled logs are discarded so they do not corrupt it.
func (a *app) setup() error {
	if a.cfg.TUIEnabled {
		a.logger = logging.Discard()
	} else {
		a.logger = logging.NewLogger(a.cfg.LogFormat, a.cfg.LogLevel, a.cfg.Verbose)
	}
	logging.SetDefault(a.logger)

	if err := config.Validate(a.cfg); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	return nil
}

// orchestrator builds the session orchestrator writing to cmd's output.
func (a *app) orchestrator(cmd *cobra.Command) (*orchestrator.Orchestrator, error) {
	return orchestrator.New(a.cfg, a.logger, orchestrator.Options{
		Version: version,
		Out:     cmd.OutOrStdout(),
	})
}

// extraArgs returns the --arg pairs followed by the positional tokens given
// after "--".
func (a *app) extraArgs(args []string) *command.Config {
	c := command.New()
	for _, kv := range a.pairs {
		c.Pair(kv[0], kv[1])
	}
	for _, tok := range args {
		c.Opt(tok)
	}
	return c
}
