package main

import (
	"fmt"

	"nftmarket/pkg/config"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "nftmarket",
		Short:         "Wallet session and marketplace client",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("nftmarket version {{.Version}}\n")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file (default ~/.nftmarket.json)")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Path to a .env file (default ./.env when present)")

	cmd.AddCommand(
		newServeCmd(opts),
		newTUICmd(opts),
		newActorCmd(opts),
		newCheckConfigCmd(opts),
		newChainsCmd(opts),
		newIdentityCmd(opts),
	)
	return cmd
}

// load resolves the config path and reads the file with environment
// overrides applied.
func (o *rootOptions) load() (config.Config, string, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return config.Config{}, "", fmt.Errorf("load env file: %w", err)
	}
	cfg, path, err := o.loadFile()
	if err != nil {
		return config.Config{}, "", err
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return config.Config{}, "", err
	}
	return cfg, path, nil
}

// loadFile reads the config file alone, for commands that write it back.
func (o *rootOptions) loadFile() (config.Config, string, error) {
	path, err := config.GetConfigPath(o.configPath)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("determine config path: %w", err)
	}
	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("load config from %s: %w", path, err)
	}
	return cfg, path, nil
}
