package config

const (
	defaultDataDir              = "~/.local/share/tableread/data"
	defaultLibraryDir           = "~/.local/share/tableread/voice_library"
	defaultLogDir               = "~/.local/share/tableread/logs"
	defaultAPIBind              = "127.0.0.1:7823"
	defaultClientBaseURL        = "http://127.0.0.1:7823"
	defaultClientTimeoutSeconds = 30
	defaultClientReadRetries    = 2
	defaultSyncQueueLimit       = 32
	defaultCommitTimeoutSeconds = 30
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 60
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Client: Client{
			BaseURL:        defaultClientBaseURL,
			TimeoutSeconds: defaultClientTimeoutSeconds,
			ReadRetries:    defaultClientReadRetries,
		},
		Sync: Sync{
			QueueLimit:           defaultSyncQueueLimit,
			CommitTimeoutSeconds: defaultCommitTimeoutSeconds,
		},
		Prompts: Prompts{
			IncludePrivacyNotice: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
