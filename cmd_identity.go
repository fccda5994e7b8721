package main

import (
	"fmt"

	"nftmarket/pkg/config"
	"nftmarket/pkg/identity"

	"github.com/spf13/cobra"
)

func newIdentityCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Show or reset the local owner identity",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the local owner token, creating it if needed",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withIdentity(root, func(id *identity.Identity) error {
					token, err := id.GetOrCreate(cmd.Context())
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Forget the local owner token; a new one is issued on next use",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withIdentity(root, func(id *identity.Identity) error {
					if err := id.Clear(cmd.Context()); err != nil {
						return err
					}
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "Local identity cleared.")
					return err
				})
			},
		},
	)
	return cmd
}

func withIdentity(root *rootOptions, fn func(*identity.Identity) error) error {
	cfg, path, err := root.load()
	if err != nil {
		return err
	}
	store, closeStore, err := identity.OpenStorage(cfg.Storage, config.DataDir(path))
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()
	return fn(identity.New(store))
}
