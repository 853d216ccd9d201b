package log

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
)

// Setup installs the default slog logger. With a log file, JSON lines go to a
// rotating file; without one, warnings and errors go to fallback as text.
func Setup(logFile string, debug bool, fallback io.Writer) {
	initOnce.Do(func() {
		level := slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}

		var handler slog.Handler
		if logFile != "" {
			logRotator := &lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    10, // Max size in MB
				MaxBackups: 3,
				MaxAge:     30, // Days
			}
			handler = slog.NewJSONHandler(logRotator, &slog.HandlerOptions{
				Level:     level,
				AddSource: debug,
			})
		} else {
			if !debug {
				level = slog.LevelWarn
			}
			handler = slog.NewTextHandler(fallback, &slog.HandlerOptions{Level: level})
		}

		slog.SetDefault(slog.New(handler))
		initialized.Store(true)
	})
}

func Initialized() bool {
	return initialized.Load()
}
