// logger.go - Structured logging for the signaling service
package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// newLogger builds the service logger. Console output is human readable;
// when a log file is configured the same events are appended there as JSON.
func newLogger(level, logFile string) (zerolog.Logger, error) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}

	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	var sink io.Writer = console
	if logFile != "" {
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return zerolog.Logger{}, err
		}
		sink = zerolog.MultiLevelWriter(console, file)
	}

	return zerolog.New(sink).Level(logLevel).With().Timestamp().Str("service", "semaphored").Logger(), nil
}
