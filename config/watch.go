package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	apperrors "github.com/leeforge/imgsqueeze/errors"
	"github.com/leeforge/imgsqueeze/logging"
)

// watchDebounce coalesces the burst of events an editor save produces.
const watchDebounce = 100 * time.Millisecond

// Watch reloads the configuration whenever a config file in the base path
// changes and passes the new value to onChange. A reload that fails to decode
// or validate is logged and the previous configuration stays in effect.
// Watching stops when ctx is done.
func (c *Config) Watch(ctx context.Context, logger logging.Logger, onChange func(AppConfig)) error {
	if logger == nil {
		logger = logging.NewNop()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrorTypeInternal, "failed to create config watcher")
	}
	if err := w.Add(c.opts.BasePath); err != nil {
		w.Close()
		return apperrors.Wrap(err, apperrors.ErrorTypeInvalid, "failed to watch config directory").
			WithDetail("path", c.opts.BasePath)
	}

	go c.watchLoop(ctx, w, logger.Named("config"), onChange)
	return nil
}

func (c *Config) watchLoop(ctx context.Context, w *fsnotify.Watcher, logger logging.Logger, onChange func(AppConfig)) {
	defer w.Close()

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !c.isConfigFile(ev.Name) || ev.Op == fsnotify.Chmod {
				continue
			}
			pending = time.After(watchDebounce)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			logger.Warn("config watch error", zap.Error(err))

		case <-pending:
			pending = nil
			app, err := c.Reload()
			if err != nil {
				logger.Warn("config reload failed, keeping previous settings", zap.Error(err))
				continue
			}
			logger.Info("config reloaded", zap.Strings("files", c.Files()))
			if onChange != nil {
				onChange(app)
			}
		}
	}
}

func (c *Config) isConfigFile(name string) bool {
	base := filepath.Base(name)
	mode := CurrentMode()
	for _, candidate := range []string{
		c.opts.FileName,
		c.opts.FileName + ".local",
		fmt.Sprintf("%s.%s", c.opts.FileName, mode),
		fmt.Sprintf("%s.%s.local", c.opts.FileName, mode),
	} {
		if base == candidate+"."+c.opts.FileType {
			return true
		}
	}
	return false
}
