package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// levelWriter writes one level's entries to <Director>/<date>/<level>.log,
// rotated by lumberjack. A new file is opened when the date changes.
type levelWriter struct {
	config Config
	level  string
	now    func() time.Time

	mu      sync.Mutex
	date    string
	current *lumberjack.Logger
}

func newLevelWriter(config Config, level string) *levelWriter {
	return &levelWriter{
		config: config,
		level:  level,
		now:    time.Now,
	}
}

// Write implements io.Writer.
func (w *levelWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	date := w.now().Format("2006-01-02")
	if w.current == nil || date != w.date {
		if w.current != nil {
			_ = w.current.Close()
		}
		w.current = w.open(date)
		w.date = date
	}
	return w.current.Write(p)
}

// Sync implements zapcore.WriteSyncer. lumberjack writes through on every
// Write, so there is nothing buffered to flush.
func (w *levelWriter) Sync() error {
	return nil
}

// Close closes the current file.
func (w *levelWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current == nil {
		return nil
	}
	err := w.current.Close()
	w.current = nil
	return err
}

func (w *levelWriter) open(date string) *lumberjack.Logger {
	dirPath := filepath.Join(w.config.Director, date)
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		// fall back to the base directory
		dirPath = w.config.Director
		_ = os.MkdirAll(dirPath, 0755)
	}

	return &lumberjack.Logger{
		Filename:   filepath.Join(dirPath, w.level+".log"),
		MaxSize:    w.config.MaxSize,
		MaxBackups: w.config.MaxBackups,
		MaxAge:     w.config.MaxAge,
		Compress:   w.config.Compress,
		LocalTime:  true,
	}
}

var _ io.WriteCloser = (*levelWriter)(nil)
