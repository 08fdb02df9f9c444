package server

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

type BaseServerConfig struct {
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	Log      LogServerConfig      `mapstructure:"log"      yaml:"log"`
	Metadata MetadataServerConfig `mapstructure:"metadata" yaml:"metadata"`
	Project  ProjectServerConfig  `mapstructure:"project"  yaml:"project"`
	Cache    CacheServerConfig    `mapstructure:"cache"    yaml:"cache"`
	Waveform WaveformServerConfig `mapstructure:"waveform" yaml:"waveform"`
	Decoder  DecoderServerConfig  `mapstructure:"decoder"  yaml:"decoder"`
	Agent    AgentServerConfig    `mapstructure:"agent"    yaml:"agent"`
}

func LoadServerConfig() (*BaseServerConfig, error) {
	cfg := &BaseServerConfig{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the values viper cannot type-check on its own.
func (c *BaseServerConfig) Validate() error {
	if _, err := c.Cache.MaxSizeBytes(); err != nil {
		return err
	}
	if c.Waveform.SamplesPerPixel < 1 {
		return fmt.Errorf("waveform.samples_per_pixel must be >= 1, got %d", c.Waveform.SamplesPerPixel)
	}
	if c.Project.Dir == "" {
		return fmt.Errorf("project.dir must not be empty")
	}
	return nil
}

// MaxSizeBytes parses MaxSize ("256MB", "1GiB", "0"). Zero means unlimited.
func (c CacheServerConfig) MaxSizeBytes() (int64, error) {
	if c.MaxSize == "" || c.MaxSize == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("invalid cache.max_size %q: %w", c.MaxSize, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("invalid cache.max_size %q: exceeds %d bytes", c.MaxSize, int64(math.MaxInt64))
	}
	return int64(n), nil
}
