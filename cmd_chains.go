package main

import (
	"context"
	"fmt"
	"sync"
	"text/tabwriter"
	"time"

	"nftmarket/pkg/chains"
	"nftmarket/pkg/rpc"

	"github.com/spf13/cobra"
)

func newChainsCmd(root *rootOptions) *cobra.Command {
	var probe bool
	cmd := &cobra.Command{
		Use:   "chains",
		Short: "List the supported chains",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := root.load()
			if err != nil {
				return err
			}
			registry, err := chains.FromConfig(cfg.Chains)
			if err != nil {
				return err
			}
			if !probe {
				return chains.Render(cmd.OutOrStdout(), registry)
			}
			return renderLatencies(cmd.Context(), cmd, registry)
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "Measure the latency of each chain RPC")
	return cmd
}

func renderLatencies(ctx context.Context, cmd *cobra.Command, registry *chains.Registry) error {
	list := registry.List()
	results := make([]string, len(list))
	var wg sync.WaitGroup
	for i, c := range list {
		wg.Add(1)
		go func(i int, c chains.Chain) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			d, err := rpc.FetchRPCLatency(pctx, c.RPCURL)
			if err != nil {
				results[i] = "error: " + err.Error()
				return
			}
			results[i] = d.Round(time.Millisecond).String()
		}(i, c)
	}
	wg.Wait()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tRPC\tLATENCY")
	for i, c := range list {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", c.ID, c.Name, c.RPCURL, results[i])
	}
	return tw.Flush()
}
