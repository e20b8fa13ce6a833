package main

import (
	"github.com/spf13/cobra"

	"plexadmin/internal/cli"
)

const appName = "plexshare"

var argSpec = cli.ArgSpec{
	Multi:    []string{"user", "libraries", "movieRatings", "movieLabels", "tvRatings", "tvLabels", "musicLabels"},
	Optional: []string{"kill"},
}

// killFlagDefault marks a bare --kill; it trims to the configured message.
const killFlagDefault = " "

type shareFlags struct {
	share   bool
	shared  bool
	unshare bool
	add     bool
	remove  bool

	users        []string
	allUsers     bool
	libraries    []string
	allLibraries bool

	backup  bool
	restore string
	table   bool

	kill         string
	sync         bool
	camera       bool
	channels     bool
	movieRatings []string
	movieLabels  []string
	tvRatings    []string
	tvLabels     []string
	musicLabels  []string
}

// plexPassFlags are only honoured when the server owner has an active
// subscription.
var plexPassFlags = []string{"kill", "sync", "camera", "channels", "movieRatings", "movieLabels", "tvRatings", "tvLabels", "musicLabels"}

func newRootCommand() *cobra.Command {
	var configFlag string
	flags := &shareFlags{}

	ctx := cli.NewContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Share or unshare libraries",
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
			if !flags.anyAction() {
				return cmd.Help()
			}
			return runShare(cmd, ctx, flags)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	f := rootCmd.Flags()
	f.BoolVar(&flags.share, "share", false, "Share libraries")
	f.BoolVar(&flags.shared, "shared", false, "Display user's shared libraries")
	f.BoolVar(&flags.unshare, "unshare", false, "Unshare all libraries")
	f.BoolVar(&flags.add, "add", false, "Share additional libraries or enable settings for the user")
	f.BoolVar(&flags.remove, "remove", false, "Remove shared libraries or disable settings from the user")
	f.StringArrayVar(&flags.users, "user", nil, "Space separated list of case sensitive user names to process")
	f.BoolVar(&flags.allUsers, "allUsers", false, "Select all users; users named with --user are excluded")
	f.StringArrayVar(&flags.libraries, "libraries", nil, "Space separated list of case sensitive library names to process")
	f.BoolVar(&flags.allLibraries, "allLibraries", false, "Select all libraries; libraries named with --libraries are excluded")
	f.BoolVar(&flags.backup, "backup", false, "Back up share settings to a JSON file")
	f.StringVar(&flags.restore, "restore", "", "Restore share settings from a backup file in the backup directory")
	f.BoolVar(&flags.table, "table", false, "Show --shared output as a table")

	f.StringVar(&flags.kill, "kill", "", "Kill the user's current streams; include a message to override the default (Plex Pass)")
	f.Lookup("kill").NoOptDefVal = killFlagDefault
	f.BoolVar(&flags.sync, "sync", false, "Allow the user to sync content (Plex Pass)")
	f.BoolVar(&flags.camera, "camera", false, "Allow the user to upload photos (Plex Pass)")
	f.BoolVar(&flags.channels, "channels", false, "Allow the user to use installed channels (Plex Pass)")
	f.StringArrayVar(&flags.movieRatings, "movieRatings", nil, "Content rating restrictions for movie libraries (Plex Pass)")
	f.StringArrayVar(&flags.movieLabels, "movieLabels", nil, "Label restrictions for movie libraries (Plex Pass)")
	f.StringArrayVar(&flags.tvRatings, "tvRatings", nil, "Content rating restrictions for show libraries (Plex Pass)")
	f.StringArrayVar(&flags.tvLabels, "tvLabels", nil, "Label restrictions for show libraries (Plex Pass)")
	f.StringArrayVar(&flags.musicLabels, "musicLabels", nil, "Label restrictions for music libraries (Plex Pass)")

	rootCmd.AddCommand(cli.NewConfigCommand(ctx, appName))
	rootCmd.AddCommand(cli.NewLinkCommand(ctx, appName))
	rootCmd.AddCommand(cli.NewCheckCommand(ctx))

	return rootCmd
}

func (f *shareFlags) anyAction() bool {
	return f.share || f.shared || f.unshare || f.add || f.remove || f.backup || f.restore != "" || f.kill != ""
}
