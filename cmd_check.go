package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"nftmarket/pkg/config"
	"nftmarket/pkg/models"
	"nftmarket/pkg/rpc"

	"github.com/spf13/cobra"
)

var errInvalidConfig = errors.New("configuration is invalid")

type checkOptions struct {
	json    bool
	dryRun  bool
	restore bool
}

func newCheckConfigCmd(root *rootOptions) *cobra.Command {
	opts := checkOptions{}
	cmd := &cobra.Command{
		Use:     "check-config",
		Aliases: []string{"test"},
		Short:   "Test the configuration and the chain RPC endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.restore {
				path, err := config.GetConfigPath(root.configPath)
				if err != nil {
					return err
				}
				if err := config.RestoreLastBackup(path); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from the latest backup.\n", path)
				return nil
			}
			cfg, path, err := root.loadFile()
			if err != nil {
				return err
			}
			report := checkConfig(cmd.Context(), cfg, path, opts, cmd.OutOrStdout())
			if !report.ValidStructure {
				return errInvalidConfig
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output test results as JSON")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Perform a trial run with no changes made")
	cmd.Flags().BoolVar(&opts.restore, "restore", false, "Restore the configuration from its latest backup and exit")
	return cmd
}

// checkConfig validates cfg, probes every chain RPC for its chain id and
// writes discovered ids back to path unless dry-running.
func checkConfig(ctx context.Context, cfg config.Config, path string, opts checkOptions, out io.Writer) models.TestReport {
	report := models.TestReport{
		ConfigPath:     path,
		ValidStructure: true,
		DryRun:         opts.dryRun,
	}
	printf := func(format string, a ...any) {
		if !opts.json {
			_, _ = fmt.Fprintf(out, format, a...)
		}
	}
	finish := func() models.TestReport {
		if opts.json {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			_ = enc.Encode(report)
		}
		return report
	}

	printf("Testing configuration at: %s\n", path)

	if len(cfg.Chains) == 0 {
		report.ValidStructure = false
		report.StructureErrors = append(report.StructureErrors, "No Chains found in configuration.")
		printf("No Chains found in configuration.\n")
		return finish()
	}
	for i, chain := range cfg.Chains {
		if strings.TrimSpace(chain.Name) == "" {
			msg := fmt.Sprintf("Chain at index %d has no name.", i)
			report.StructureErrors = append(report.StructureErrors, msg)
			printf("Error: %s\n", msg)
		}
		if len(chain.RPCURLs) == 0 {
			msg := fmt.Sprintf("Chain '%s' has no RPC URLs.", chain.Name)
			report.StructureErrors = append(report.StructureErrors, msg)
			printf("Error: %s\n", msg)
		}
	}
	if len(report.StructureErrors) == 0 {
		if err := config.Validate(cfg); err != nil {
			report.StructureErrors = append(report.StructureErrors, err.Error())
			printf("Error: %s\n", err)
		}
	}
	if len(report.StructureErrors) > 0 {
		report.ValidStructure = false
		return finish()
	}

	report.ChainCount = len(cfg.Chains)
	report.ConnectorCount = len(cfg.Connectors)
	printf("Found %d Chains and %d connectors.\n", report.ChainCount, report.ConnectorCount)

	for i := range cfg.Chains {
		chain := &cfg.Chains[i]
		cResult := probeChain(ctx, chain, opts, printf)
		if cResult.ChainIDUpdated {
			report.ConfigUpdated = true
		}
		if cResult.Inconsistent {
			report.InconsistentChains = append(report.InconsistentChains, chain.Name)
		}
		report.Chains = append(report.Chains, cResult)
	}

	if len(report.InconsistentChains) > 0 {
		printf("\nWARNING: Inconsistent RPCs detected!\n")
		printf("The following chains have RPCs returning conflicting Chain IDs:\n")
		for _, name := range report.InconsistentChains {
			printf(" - %s\n", name)
		}
	}

	if report.ConfigUpdated {
		printf("\nUpdating configuration with fetched Chain IDs...\n")
		if opts.dryRun {
			printf("Dry run enabled: Configuration NOT saved.\n")
		} else if err := config.SaveConfig(cfg, path); err != nil {
			report.SaveError = err.Error()
			printf("Failed to save config: %v\n", err)
		} else {
			printf("Configuration saved successfully.\n")
		}
	}
	return finish()
}

// probeChain asks each RPC of chain for its chain id. A chain configured
// without an id adopts the first one observed.
func probeChain(ctx context.Context, chain *config.ChainConfig, opts checkOptions, printf func(string, ...any)) models.ChainResult {
	cResult := models.ChainResult{Name: chain.Name, ConfigChainID: chain.ChainID}
	printf("Testing Chain: %s (%s)\n", chain.Name, chain.Symbol)

	var observed int64
	for _, url := range chain.RPCURLs {
		rResult := models.RPCResult{URL: url}
		printf("  RPC: %s ... ", url)

		pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		id, err := rpc.ProbeChainID(pctx, url)
		cancel()
		if err != nil {
			rResult.Status = "error"
			rResult.Error = err.Error()
			printf("Failed: %v\n", err)
			cResult.RPCs = append(cResult.RPCs, rResult)
			continue
		}

		rResult.Status = "ok"
		rResult.ChainID = id
		printf("OK (ChainID: %d)", id)
		if observed == 0 {
			observed = id
			cResult.ObservedChainID = id
		} else if observed != id {
			printf(" - WARNING: ChainID mismatch with previous RPC (%d)", observed)
			cResult.Inconsistent = true
		}

		switch {
		case chain.ChainID == 0:
			chain.ChainID = id
			cResult.ChainIDUpdated = true
			printf(" - UPDATED CONFIG")
			if opts.dryRun {
				printf(" (DRY RUN)")
			}
		case chain.ChainID != id:
			rResult.Error = fmt.Sprintf("Mismatch! Expected %d", chain.ChainID)
			printf(" - MISMATCH! Expected %d", chain.ChainID)
		default:
			printf(" - Verified")
		}
		printf("\n")
		cResult.RPCs = append(cResult.RPCs, rResult)
	}
	return cResult
}
