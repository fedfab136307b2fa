package main

import (
	"github.com/spf13/cobra"

	"github.com/randomizedcoder/go-node-harness/internal/metrics"
)

// newModeCmd builds a subcommand running the node to completion in mode.
func newModeCmd(a *app, use, short, mode string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, err := a.orchestrator(cmd)
			if err != nil {
				return err
			}
			return orch.RunMode(cmd.Context(), mode, a.extraArgs(args))
		},
	}
}

func newDumpConfigCmd(a *app) *cobra.Command {
	cmd := newModeCmd(a, "dump-config", "Run the node with --dump-config and print its output", metrics.ModeDumpConfig)
	cmd.Args = cobra.NoArgs
	return cmd
}

func newGenerateWalletCmd(a *app) *cobra.Command {
	return newModeCmd(a, "generate-wallet [-- <extra node args>...]",
		"Run the node with --generate-wallet and print its output", metrics.ModeGenerateWallet)
}

func newRecoverWalletCmd(a *app) *cobra.Command {
	return newModeCmd(a, "recover-wallet [-- <extra node args>...]",
		"Run the node with --recover-wallet and print its output", metrics.ModeRecoverWallet)
}
