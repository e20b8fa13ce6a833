package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"plexadmin/internal/cli"
	"plexadmin/internal/filter"
	"plexadmin/internal/inventory"
	"plexadmin/internal/logging"
	"plexadmin/internal/selection"
	"plexadmin/internal/services"
	"plexadmin/internal/shares"
)

func runShare(cmd *cobra.Command, ctx *cli.Context, flags *shareFlags) error {
	wantRatings := len(flags.movieRatings) > 0 || len(flags.tvRatings) > 0
	session, err := ctx.Session(cmd.Context(), inventory.Options{ContentRatings: wantRatings})
	if err != nil {
		return err
	}
	inv := session.Inventory

	if !inv.PlexPass {
		for _, name := range plexPassFlags {
			if cmd.Flags().Changed(name) {
				return services.Wrap(services.ErrValidation, appName, "--"+name, "requires an active Plex Pass subscription", nil)
			}
		}
	}
	if err := validateSelections(flags, inv); err != nil {
		return err
	}

	restorePath := ""
	if name := strings.TrimSpace(flags.restore); name != "" {
		restorePath, err = resolveRestore(session.Config.Paths.BackupDir, inv.Server.FriendlyName, name)
		if err != nil {
			return err
		}
	}

	plan := shares.Plan{
		Users:       selection.Resolve(flags.users, flags.allUsers, inv.UserNames()),
		Libraries:   selection.Resolve(flags.libraries, flags.allLibraries, inv.SectionTitles()),
		Share:       flags.share,
		Add:         flags.add,
		Remove:      flags.remove,
		Shared:      flags.shared,
		Unshare:     flags.unshare,
		Kill:        cmd.Flags().Changed("kill"),
		KillMessage: strings.TrimSpace(flags.kill),
		Request:     flags.request(),
		Backup:      flags.backup,
		RestorePath: restorePath,
	}

	renderer := shares.WriteRecordJSON
	if flags.table {
		renderer = cli.WriteRecordTable
	}
	logger := logging.NewComponentLogger(session.Logger, "shares")
	manager := shares.NewManager(session.Client, shares.Options{
		Server:      inv.Server,
		Out:         cmd.OutOrStdout(),
		Logger:      logger,
		BackupDir:   session.Config.Paths.BackupDir,
		KillMessage: session.Config.Share.KillMessage,
		KillGrace:   session.Config.KillGrace(),
		Renderer:    renderer,
	})
	logger.Debug("running share plan",
		logging.Strings("users", plan.Users),
		logging.Strings("libraries", plan.Libraries),
	)
	return manager.Apply(cmd.Context(), plan)
}

func validateSelections(flags *shareFlags, inv *inventory.Inventory) error {
	if err := selection.Validate("--user", flags.users, inv.UserNames()); err != nil {
		return err
	}
	if err := selection.Validate("--libraries", flags.libraries, inv.SectionTitles()); err != nil {
		return err
	}
	if err := selection.Validate("--movieRatings", flags.movieRatings, inv.MovieRatings); err != nil {
		return err
	}
	return selection.Validate("--tvRatings", flags.tvRatings, inv.ShowRatings)
}

// resolveRestore accepts the name of a backup file for this server in the
// backup directory.
func resolveRestore(dir, serverName, name string) (string, error) {
	candidates, err := shares.BackupCandidates(dir, serverName)
	if err != nil {
		return "", err
	}
	if err := selection.Validate("--restore", []string{filepath.Base(name)}, candidates); err != nil {
		return "", fmt.Errorf("backup file not found in %s: %w", dir, err)
	}
	return filepath.Join(dir, filepath.Base(name)), nil
}

func (f *shareFlags) request() shares.ShareRequest {
	var req shares.ShareRequest
	if f.sync {
		req.AllowSync = boolPtr(true)
	}
	if f.camera {
		req.Camera = boolPtr(true)
	}
	if f.channels {
		req.Channels = boolPtr(true)
	}
	req.FilterMovies = filter.Build(f.movieLabels, f.movieRatings)
	req.FilterTelevision = filter.Build(f.tvLabels, f.tvRatings)
	req.FilterMusic = filter.Build(f.musicLabels, nil)
	return req
}

func boolPtr(v bool) *bool {
	return &v
}
