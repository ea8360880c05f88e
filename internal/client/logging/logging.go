package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the application logger. Console output stays colored outside
// production; the level parses from config with info as the fallback.
func New(environment, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    environment == "production",
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(output).
		Level(lvl).
		With().
		Timestamp().
		Str("env", environment).
		Logger()
}
