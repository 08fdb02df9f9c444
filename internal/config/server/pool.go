package server

// ProjectServerConfig locates the project whose assets are pooled.
// AssetDir is resolved against Dir unless absolute.
type ProjectServerConfig struct {
	Dir      string `mapstructure:"dir"       yaml:"dir"`
	AssetDir string `mapstructure:"asset_dir" yaml:"asset_dir"`
}

type CacheServerConfig struct {
	MaxSize string `mapstructure:"max_size" yaml:"max_size"`
}

type WaveformServerConfig struct {
	SamplesPerPixel int `mapstructure:"samples_per_pixel" yaml:"samples_per_pixel"`
	Workers         int `mapstructure:"workers"           yaml:"workers"`
}

type DecoderServerConfig struct {
	FFmpeg  string `mapstructure:"ffmpeg"  yaml:"ffmpeg"`
	FFprobe string `mapstructure:"ffprobe" yaml:"ffprobe"`
}

type AgentServerConfig struct {
	Watch        bool   `mapstructure:"watch"         yaml:"watch"`
	SaveInterval string `mapstructure:"save_interval" yaml:"save_interval"`
}
