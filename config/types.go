package config

import (
	"sync"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/leeforge/imgsqueeze/logging"
	"github.com/leeforge/imgsqueeze/media/codec"
	"github.com/leeforge/imgsqueeze/media/storage"
)

// AppConfig is the whole configuration tree.
type AppConfig struct {
	Compression CompressionConfig `mapstructure:"compression" json:"compression" yaml:"compression"`
	Ingest      IngestConfig      `mapstructure:"ingest" json:"ingest" yaml:"ingest"`
	Download    DownloadConfig    `mapstructure:"download" json:"download" yaml:"download"`
	Storage     storage.Config    `mapstructure:"storage" json:"storage" yaml:"storage"`
	Log         logging.Config    `mapstructure:"log" json:"log" yaml:"log"`
}

// CompressionConfig holds the initial compression settings.
type CompressionConfig struct {
	Quality      float64 `mapstructure:"quality" json:"quality" yaml:"quality" default:"0.8" validate:"gte=0,lte=1"`
	MaxWidth     int     `mapstructure:"max-width" json:"maxWidth" yaml:"max-width" validate:"gte=0"`
	OutputFormat string  `mapstructure:"output-format" json:"outputFormat" yaml:"output-format" default:"auto" validate:"oneof=auto image/jpeg image/png image/webp"`
}

// Settings converts to codec settings.
func (c CompressionConfig) Settings() codec.Settings {
	return codec.Settings{
		Quality:      c.Quality,
		MaxWidth:     c.MaxWidth,
		OutputFormat: c.OutputFormat,
	}
}

// IngestConfig bounds concurrent decoding.
type IngestConfig struct {
	Workers int `mapstructure:"workers" json:"workers" yaml:"workers" default:"4" validate:"gte=1,lte=64"`
}

// DownloadConfig spaces batch saves apart. Zero disables the delay.
type DownloadConfig struct {
	Delay time.Duration `mapstructure:"delay" json:"delay" yaml:"delay" default:"200ms" validate:"gte=0"`
}

// Config owns a viper instance and the decoded AppConfig.
type Config struct {
	instance *viper.Viper
	opts     ConfigOptions
	mu       sync.RWMutex
	app      AppConfig
	files    []string
}

// ConfigOptions controls where configuration is read from.
type ConfigOptions struct {
	BasePath  string
	FileName  string
	FileType  string
	EnvPrefix string
	// Flags, when set, are bound over file and env values.
	Flags *pflag.FlagSet
}
