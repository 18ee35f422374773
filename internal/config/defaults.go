package config

const (
	defaultDataDir                  = "~/.local/share/courier"
	defaultLogDir                   = "~/.local/share/courier/logs"
	defaultLogRetentionDays         = 60
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultRequestTimeout           = 15
	defaultUploadTimeout            = 120
	defaultProbeInterval            = 30
	defaultProbeTimeout             = 5
	defaultNetlinkEvents            = true
	defaultMaxFileSizeMB            = 64
	defaultWatchSettleMS            = 500
	defaultAPIBind                  = "127.0.0.1:7867"
	defaultNotifyRequestTimeout     = 10
	defaultNotifyDedupWindowSeconds = 600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Library: Library{
			RequestTimeout: defaultRequestTimeout,
			UploadTimeout:  defaultUploadTimeout,
		},
		Connectivity: Connectivity{
			ProbeInterval: defaultProbeInterval,
			ProbeTimeout:  defaultProbeTimeout,
			NetlinkEvents: defaultNetlinkEvents,
		},
		Uploader: Uploader{
			MaxFileSizeMB: defaultMaxFileSizeMB,
			WatchSettleMS: defaultWatchSettleMS,
		},
		Daemon: Daemon{
			APIBind: defaultAPIBind,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			UploadFailure:      true,
			QueueDrained:       true,
			Storage:            true,
			DedupWindowSeconds: defaultNotifyDedupWindowSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
