// Command caldavctl drives a CalDAV account from the shell: discover the
// principal, list and create calendars, and read, write or query the events
// and to-dos inside them.
package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

func init() {
	if err := godotenv.Load(); err != nil {
		slog.Debug(err.Error())
	}
}

// setupLogger installs the colourised handler as the default logger.
func setupLogger(level slog.Level) *slog.Logger {
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.RFC1123Z,
		}),
	)
	slog.SetDefault(logger)
	return logger
}

func main() {
	if err := newRootCmd(NewConfig()).Execute(); err != nil {
		os.Exit(1)
	}
}
