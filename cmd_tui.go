package main

import (
	"nftmarket/pkg/logging"
	"nftmarket/pkg/tui"

	"github.com/spf13/cobra"
)

func newTUICmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := root.load()
			if err != nil {
				return err
			}
			// The UI owns the terminal; logs only go to the file.
			closer, err := logging.Init(logging.Config{Level: cfg.LogLevel, File: cfg.LogFile, Quiet: true})
			if err != nil {
				return err
			}
			defer func() { _ = closer.Close() }()

			a, err := buildApp(cmd.Context(), cfg, path)
			if err != nil {
				return err
			}
			defer a.close()
			a.start(cmd.Context())

			return tui.Start(tui.Options{
				Session:    a.session,
				Market:     a.market,
				Chains:     a.chains,
				Connectors: a.connectors,
				Watcher:    a.watcher,
				Hub:        a.hub,
				Version:    Version,
			})
		},
	}
}
