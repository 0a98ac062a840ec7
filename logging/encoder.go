package logging

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CusTimeEncoder creates a custom time encoder that adds the prefix and formats the time.
func CusTimeEncoder(config Config) zapcore.TimeEncoder {
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(config.Prefix + t.Format(config.TimeFormat))
	}
}

// GetEncoder returns a zapcore.Encoder based on the config format.
func GetEncoder(config Config) zapcore.Encoder {
	encoderConfig := getEncoderConfig(config)
	if config.Format == "json" {
		// color escapes do not belong in JSON
		encoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(encoderConfig)
	}
	return zapcore.NewConsoleEncoder(encoderConfig)
}

func getEncoderConfig(config Config) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    config.ZapEncodeLevel(),
		EncodeTime:     CusTimeEncoder(config),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

// getLevelPriority returns a LevelEnabler that only enables the exact level.
func getLevelPriority(level zapcore.Level) zap.LevelEnablerFunc {
	return func(l zapcore.Level) bool {
		return l == level
	}
}

// getZapCores builds one stderr core for the terminal and, when file output is
// enabled, one core per level >= config.Level writing to that level's file.
// Every levelWriter created is appended to writers so the logger can close it.
func getZapCores(config Config, writers *[]*levelWriter) []zapcore.Core {
	minLevel := config.TransportLevel()
	cores := make([]zapcore.Core, 0, 8)

	if config.LogInTerminal {
		cores = append(cores, zapcore.NewCore(GetEncoder(config), zapcore.Lock(os.Stderr), minLevel))
	}

	if config.LogInFile {
		fileConfig := config
		fileConfig.EncodeLevel = "LowercaseLevelEncoder"
		for level := minLevel; level <= zapcore.FatalLevel; level++ {
			w := newLevelWriter(fileConfig, level.String())
			*writers = append(*writers, w)
			cores = append(cores, zapcore.NewCore(GetEncoder(fileConfig), zapcore.AddSync(w), getLevelPriority(level)))
		}
	}

	return cores
}
