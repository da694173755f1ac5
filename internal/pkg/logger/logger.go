// Package logger configures the global zerolog logger.
package logger

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the log level and output format.
type Config struct {
	Level       string // debug, info, warn, error
	Environment string // development gets console output, everything else JSON
}

// Init sets the global level and output. Unknown levels fall back to info.
func Init(cfg Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Environment == "development" || cfg.Environment == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		})
		return
	}

	// JSON to stdout in production; the platform collects it.
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
