package config

const (
	defaultConfigPath       = "~/.config/plexadmin/config.toml"
	projectConfigName       = "plexadmin.toml"
	defaultPlexTVURL        = "https://plex.tv"
	defaultTimeoutSeconds   = 30
	defaultBackupDir        = "."
	defaultStateDir         = "~/.local/share/plexadmin"
	defaultKillMessage      = "Stream is being killed by admin."
	defaultKillGraceSeconds = 3
	defaultLogFormat        = "console"
	defaultLogLevel         = "warn"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Plex: Plex{
			VerifyTLS:      true,
			TimeoutSeconds: defaultTimeoutSeconds,
			PlexTVURL:      defaultPlexTVURL,
		},
		Paths: Paths{
			BackupDir: defaultBackupDir,
			StateDir:  defaultStateDir,
		},
		Share: Share{
			KillMessage:      defaultKillMessage,
			KillGraceSeconds: defaultKillGraceSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
