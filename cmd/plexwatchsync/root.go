package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"plexadmin/internal/cli"
	"plexadmin/internal/inventory"
	"plexadmin/internal/logging"
	"plexadmin/internal/selection"
	"plexadmin/internal/watchsync"
)

const appName = "plexwatchsync"

var argSpec = cli.ArgSpec{
	Multi: []string{"userTo", "libraries"},
}

type syncFlags struct {
	userFrom     string
	userTo       []string
	libraries    []string
	allLibraries bool
	ratingKey    string
}

func newRootCommand() *cobra.Command {
	var configFlag string
	flags := &syncFlags{}

	ctx := cli.NewContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Sync watch status from one user to others",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cli.ShouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.EnsureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, ctx, flags)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	f := rootCmd.Flags()
	f.StringVar(&flags.userFrom, "userFrom", "", "Case sensitive name of the account to sync from")
	f.StringArrayVar(&flags.userTo, "userTo", nil, "Space separated list of case sensitive account names to sync to")
	f.StringArrayVar(&flags.libraries, "libraries", nil, "Space separated list of case sensitive library names to process")
	f.BoolVar(&flags.allLibraries, "allLibraries", false, "Select all libraries; libraries named with --libraries are excluded")
	f.StringVar(&flags.ratingKey, "ratingKey", "", "Rating key of the item whose watch status is synced")
	_ = rootCmd.MarkFlagRequired("userFrom")
	_ = rootCmd.MarkFlagRequired("userTo")

	rootCmd.AddCommand(cli.NewConfigCommand(ctx, appName))
	rootCmd.AddCommand(cli.NewLinkCommand(ctx, appName))
	rootCmd.AddCommand(cli.NewCheckCommand(ctx))

	return rootCmd
}

func runSync(cmd *cobra.Command, ctx *cli.Context, flags *syncFlags) error {
	if strings.TrimSpace(flags.userFrom) == "" {
		return errors.New("--userFrom is required")
	}
	session, err := ctx.Session(cmd.Context(), inventory.Options{})
	if err != nil {
		return err
	}
	inv := session.Inventory

	accounts := inv.AccountNames()
	if err := selection.Validate("--userFrom", []string{flags.userFrom}, accounts); err != nil {
		return err
	}
	if err := selection.Validate("--userTo", flags.userTo, accounts); err != nil {
		return err
	}
	if err := selection.Validate("--libraries", flags.libraries, inv.SectionTitles()); err != nil {
		return err
	}

	logger := logging.NewComponentLogger(session.Logger, "watchsync")
	resolver := watchsync.NewServerAccounts(session.Client, inv.Owner.Title, inv.Server.MachineIdentifier, inv.Users)
	engine := watchsync.NewEngine(resolver, cmd.OutOrStdout(), logger)
	return engine.Run(cmd.Context(), watchsync.Request{
		From:      flags.userFrom,
		To:        flags.userTo,
		Libraries: selection.Resolve(flags.libraries, flags.allLibraries, inv.SectionTitles()),
		RatingKey: flags.ratingKey,
	})
}
