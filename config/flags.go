package config

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	apperrors "github.com/leeforge/imgsqueeze/errors"
)

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"quality":   "compression.quality",
	"max-width": "compression.max-width",
	"format":    "compression.output-format",
	"workers":   "ingest.workers",
	"delay":     "download.delay",
	"storage":   "storage.type",
	"out":       "storage.local.base-path",
	"log-level": "log.level",
}

// RegisterFlags defines the configuration flags on fs with the same defaults
// as the config files.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()

	fs.Float64P("quality", "q", d.Compression.Quality, "compression quality in [0,1]")
	fs.IntP("max-width", "w", d.Compression.MaxWidth, "maximum output width in pixels, 0 keeps the width")
	fs.StringP("format", "f", d.Compression.OutputFormat, "output type: auto, image/jpeg, image/png or image/webp")
	fs.Int("workers", d.Ingest.Workers, "concurrent decodes during ingestion")
	fs.Duration("delay", d.Download.Delay, "pause between saves when saving all results")
	fs.String("storage", d.Storage.Type, "download sink: local, oss or s3")
	fs.StringP("out", "o", d.Storage.Local.BasePath, "output directory for the local sink")
	fs.String("log-level", d.Log.Level, "log level")
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to bind flag").
				WithDetail("flag", name)
		}
	}
	return nil
}
