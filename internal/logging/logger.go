package logging

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/edvin/metering/internal/config"
)

// NewLogger creates a structured zerolog.Logger. The service name from the
// config is attached when set, otherwise the component name is used.
func NewLogger(cfg *config.Config, component string) zerolog.Logger {
	ctx := zerolog.New(os.Stdout).With().Timestamp()

	service := cfg.ServiceName
	if service == "" {
		service = component
	}
	if service != "" {
		ctx = ctx.Str("service", service)
	}

	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
