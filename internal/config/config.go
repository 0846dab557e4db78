package config

import (
	"net/url"
	"time"

	"github.com/dvcrn/fetchbridge/internal/env"
	"github.com/dvcrn/fetchbridge/internal/logger"
)

const (
	DefaultBaseURL          = "http://localhost/"
	DefaultProgressInterval = 100 * time.Millisecond
	DefaultPort             = "9878"
)

// Config holds the settings shared by the dispatcher and the binaries.
type Config struct {
	// BaseURL resolves relative string inputs to Fetch.
	BaseURL *url.URL
	// ProgressInterval is how often the engine polls the progress callback.
	ProgressInterval time.Duration
	Port             string
}

// Load reads the configuration from the environment. Invalid values are logged
// and replaced by their defaults.
func Load() *Config {
	cfg := &Config{
		BaseURL:          mustParse(DefaultBaseURL),
		ProgressInterval: DefaultProgressInterval,
		Port:             env.GetOrDefault("PORT", DefaultPort),
	}

	if raw, ok := env.Get("FETCH_BASE_URL"); ok {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() {
			logger.Get().Warn().Err(err).Str("value", raw).Msg("Invalid FETCH_BASE_URL, using default")
		} else {
			cfg.BaseURL = u
		}
	}

	interval, set, err := env.GetDuration("FETCH_PROGRESS_INTERVAL", DefaultProgressInterval)
	switch {
	case err != nil:
		logger.Get().Warn().Err(err).Msg("Invalid FETCH_PROGRESS_INTERVAL, using default")
	case set && interval <= 0:
		logger.Get().Warn().Dur("value", interval).Msg("FETCH_PROGRESS_INTERVAL must be positive, using default")
	default:
		cfg.ProgressInterval = interval
	}

	return cfg
}

func mustParse(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}
