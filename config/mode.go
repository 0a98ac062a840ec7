package config

import (
	"os"
	"strings"
)

// ModeEnvKey selects the mode-specific config overlay.
const ModeEnvKey = "IMGSQUEEZE_MODE"

// Mode names a config overlay such as config.production.yaml.
type Mode string

const (
	DevMode  Mode = "development"
	ProMode  Mode = "production"
	TestMode Mode = "test"
)

// ParseMode normalizes a mode name; unknown values fall back to development.
func ParseMode(env string) Mode {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// CurrentMode reads ModeEnvKey.
func CurrentMode() Mode {
	return ParseMode(os.Getenv(ModeEnvKey))
}
