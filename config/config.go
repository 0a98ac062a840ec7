// Package config loads imgsqueeze settings from YAML files, IMGSQUEEZE_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	validatorV10 "github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	apperrors "github.com/leeforge/imgsqueeze/errors"
	"github.com/leeforge/imgsqueeze/logging"
)

// PathEnvKey overrides the directory config files are read from.
const PathEnvKey = "IMGSQUEEZE_CONFIG_PATH"

var validate = validatorV10.New()

func DefaultConfigOptions() ConfigOptions {
	basePath := os.Getenv(PathEnvKey)
	if basePath == "" {
		basePath = "config"
	}

	return ConfigOptions{
		BasePath:  basePath,
		FileName:  "config",
		FileType:  "yaml",
		EnvPrefix: "IMGSQUEEZE",
	}
}

// NewConfig reads, decodes and validates the configuration. Missing files are
// not an error; defaults apply.
func NewConfig(optsArr ...ConfigOptions) (*Config, error) {
	opts := DefaultConfigOptions()
	if len(optsArr) > 0 {
		opts = optsArr[0]
	}
	if opts.FileName == "" {
		opts.FileName = "config"
	}
	if opts.FileType == "" {
		opts.FileType = "yaml"
	}

	c := &Config{opts: opts}
	if _, err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// App returns the current configuration.
func (c *Config) App() AppConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.app
}

// Files returns the config files that were merged, in order.
func (c *Config) Files() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.files...)
}

// Get returns the raw value of key.
func (c *Config) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.instance.Get(key)
}

// Reload re-reads every source. The previous configuration is kept on error.
func (c *Config) Reload() (AppConfig, error) {
	v, files, err := CreateConfig(c.opts)
	if err != nil {
		return AppConfig{}, err
	}

	app, err := decode(v)
	if err != nil {
		return AppConfig{}, err
	}

	c.mu.Lock()
	c.instance = v
	c.app = app
	c.files = files
	c.mu.Unlock()
	return app, nil
}

// Validate checks an AppConfig against its struct tags.
func Validate(app AppConfig) error {
	err := validate.Struct(app)
	if err == nil {
		return nil
	}

	var fieldErrs validatorV10.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperrors.NewInvalid(fe.Namespace(), fe.Value(),
			fmt.Sprintf("failed '%s' validation", fe.Tag()))
	}
	return apperrors.Wrap(err, apperrors.ErrorTypeInvalid, "invalid configuration")
}

// Default returns the configuration used when no source sets a value.
func Default() AppConfig {
	app := AppConfig{Log: logging.DefaultConfig()}
	_ = defaults.Set(&app)
	return app
}

func decode(v *viper.Viper) (AppConfig, error) {
	app := AppConfig{Log: logging.DefaultConfig()}
	if err := defaults.Set(&app); err != nil {
		return AppConfig{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to set config defaults")
	}

	if err := v.Unmarshal(&app); err != nil {
		return AppConfig{}, apperrors.Wrap(err, apperrors.ErrorTypeInvalid, "failed to decode config")
	}

	if err := Validate(app); err != nil {
		return AppConfig{}, err
	}
	return app, nil
}

// CreateConfig builds a viper instance from the files, environment and flags
// described by opts.
func CreateConfig(opts ConfigOptions) (*viper.Viper, []string, error) {
	v := viper.New()
	v.SetConfigType(opts.FileType)

	files := getConfigFilePaths(opts)
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, apperrors.Wrap(err, apperrors.ErrorTypeInvalid, "failed to open config file").
				WithDetail("path", path)
		}
		err = v.MergeConfig(f)
		f.Close()
		if err != nil {
			return nil, nil, apperrors.Wrap(err, apperrors.ErrorTypeInvalid, "failed to read config file").
				WithDetail("path", path)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	if opts.EnvPrefix != "" {
		v.SetEnvPrefix(opts.EnvPrefix)
	}
	v.AutomaticEnv()
	for _, key := range configKeys(reflect.TypeOf(AppConfig{}), "") {
		if err := v.BindEnv(key); err != nil {
			return nil, nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to bind env").
				WithDetail("key", key)
		}
	}

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, nil, err
		}
	}

	return v, files, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// configKeys lists the dotted mapstructure keys of every leaf field in t.
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		if field.Type.Kind() == reflect.Struct && field.Type != durationType {
			keys = append(keys, configKeys(field.Type, key)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// getConfigFilePaths returns the existing files among config, config.local,
// config.<mode> and config.<mode>.local.
func getConfigFilePaths(opts ConfigOptions) (configFiles []string) {
	mode := CurrentMode()
	fileNames := []string{
		opts.FileName,
		fmt.Sprintf("%s.local", opts.FileName),
		fmt.Sprintf("%s.%s", opts.FileName, mode),
		fmt.Sprintf("%s.%s.local", opts.FileName, mode),
	}

	for _, fileName := range fileNames {
		file := filepath.Join(opts.BasePath, fmt.Sprintf("%s.%s", fileName, opts.FileType))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			configFiles = append(configFiles, file)
		}
	}
	return configFiles
}
