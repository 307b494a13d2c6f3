package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds the application logger. JSON output in production, a console
// writer everywhere else.
func New(environment string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if environment != "production" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}
