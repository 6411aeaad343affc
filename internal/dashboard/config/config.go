// Package config loads the dashboard configuration from a .env file, the process
// environment and command line flags.
package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the application configuration parameters.
// Each field corresponds to an expected environment variable.
type Config struct {
	EnvLogsLevel       string        `env:"LOG_LEVEL"`                              // Log level for the application (e.g., DEBUG, INFO)
	EnvLogFileName     string        `env:"LOG_FILE_NAME" envDefault:"Dashboard.log"` // File's name for log
	RunAddr            string        `env:"RUN_ADDR" envDefault:":8080"`            // Address the dashboard HTTP server listens on
	EnvBackendEndpoint string        `env:"BACKEND_ENDPOINT"`                       // Base URL of the vending backend REST API
	EnvPollInterval    time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`          // Interval between recent payments refreshes
	EnvPagosLimit      int           `env:"PAGOS_LIMIT" envDefault:"20"`            // How many recent payments to request per refresh
	EnvBotToken        string        `env:"TOKEN_BOT"`                              // Telegram Bot Token for payment notifications (optional)
	EnvOwnerID         int64         `env:"OWNER_ID"`                               // TG owner's chat ID receiving payment notifications
}

// NewConfig initializes a new Config instance by loading environment variables,
// optionally pre-populated from a dashboard.env file.
// It returns a pointer to the Config struct and an error if any of the environment
// variables are missing or invalid.
func NewConfig() (*Config, error) {
	if err := godotenv.Load("dashboard.env"); err != nil {
		// Переменные можно задать и напрямую в окружении
		logrus.Debugf("dashboard.env not loaded: %v", err)
	}

	cfg := &Config{}
	flag.StringVar(&cfg.EnvLogsLevel, "l", "info", "Set logging level")
	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.EnvBackendEndpoint == "" {
		return nil, fmt.Errorf("BACKEND_ENDPOINT must be set")
	}

	return cfg, nil
}
