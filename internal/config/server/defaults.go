package server

import "github.com/spf13/viper"

func GetServerDefault() BaseServerConfig {
	return BaseServerConfig{
		ShutdownTimeout: "10s",

		Log: LogServerConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogServerRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},

		Metadata: MetadataServerConfig{
			Type: "sqlite",
			SQLite: MetadataSQLiteConfig{
				Path: "audiopool.sqlite3",
			},
		},

		Project: ProjectServerConfig{
			Dir:      ".",
			AssetDir: "assets",
		},

		Cache: CacheServerConfig{
			MaxSize: "256MB",
		},

		Waveform: WaveformServerConfig{
			SamplesPerPixel: 256,
			Workers:         4,
		},

		Decoder: DecoderServerConfig{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
		},

		Agent: AgentServerConfig{
			Watch:        true,
			SaveInterval: "1m",
		},
	}
}

func setDefaults() {
	defaults := GetServerDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("metadata.type", defaults.Metadata.Type)
	viper.SetDefault("metadata.sqlite.path", defaults.Metadata.SQLite.Path)

	viper.SetDefault("project.dir", defaults.Project.Dir)
	viper.SetDefault("project.asset_dir", defaults.Project.AssetDir)

	viper.SetDefault("cache.max_size", defaults.Cache.MaxSize)

	viper.SetDefault("waveform.samples_per_pixel", defaults.Waveform.SamplesPerPixel)
	viper.SetDefault("waveform.workers", defaults.Waveform.Workers)

	viper.SetDefault("decoder.ffmpeg", defaults.Decoder.FFmpeg)
	viper.SetDefault("decoder.ffprobe", defaults.Decoder.FFprobe)

	viper.SetDefault("agent.watch", defaults.Agent.Watch)
	viper.SetDefault("agent.save_interval", defaults.Agent.SaveInterval)
}
