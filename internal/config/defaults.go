package config

const (
	defaultCacheDir          = "~/.cache/aria"
	defaultLogDir            = "~/.local/share/aria/logs"
	defaultMPDHost           = "127.0.0.1"
	defaultMPDPort           = 6600
	defaultMPDTimeout        = 10
	defaultMPDBatchTick      = 50
	defaultNegativeCooldown  = 15
	defaultProviderTimeout   = 15
	defaultLastfmBaseURL     = "https://ws.audioscrobbler.com/2.0/"
	defaultLrclibBaseURL     = "https://lrclib.net/api"
	defaultMusicBrainzURL    = "https://musicbrainz.org/ws/2"
	defaultHotCacheMaxBytes  = 256 << 20
	defaultBlurRadius        = 24
	defaultBlurCoalesceDelay = 50
	defaultWorkers           = 4
	defaultQueueDepth        = 64
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultNtfyTimeout       = 10
)

func defaultProviderOrder() []string {
	return []string{"musicbrainz", "lastfm", "lrclib"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir,
			LogDir:   defaultLogDir,
		},
		MPD: MPD{
			Host:      defaultMPDHost,
			Port:      defaultMPDPort,
			Timeout:   defaultMPDTimeout,
			BatchTick: defaultMPDBatchTick,
		},
		Providers: Providers{
			Order:            defaultProviderOrder(),
			NegativeCooldown: defaultNegativeCooldown,
			RequestTimeout:   defaultProviderTimeout,
			LastfmBaseURL:    defaultLastfmBaseURL,
			LrclibBaseURL:    defaultLrclibBaseURL,
			MusicBrainzURL:   defaultMusicBrainzURL,
		},
		HotCache: HotCache{
			MaxBytes: defaultHotCacheMaxBytes,
		},
		Blur: Blur{
			Radius:        defaultBlurRadius,
			CoalesceDelay: defaultBlurCoalesceDelay,
		},
		Workflow: Workflow{
			Workers:    defaultWorkers,
			QueueDepth: defaultQueueDepth,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
	}
}
