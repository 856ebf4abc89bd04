package config

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load reads the first of envFilePath found walking up from the working directory
// (falling back to ./.env) into the environment and then processes it into App.
// Variables already set in the environment win over file values.
func Load(envFilePath ...string) (*App, error) {
	logger := slog.Default()
	for _, path := range envFilePath {
		found, err := FindEnvFile(path)
		if err != nil {
			logger.Debug("Environment file not found", "path", path)
			continue
		}
		if err := godotenv.Load(found); err != nil {
			logger.Error("Failed to load environment file", "path", found, "error", err)
			continue
		}
		logger.Info("Loaded environment file", "path", found)
		return loadFromEnv()
	}

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file in working directory, using process environment")
	}
	return loadFromEnv()
}

func loadFromEnv() (*App, error) {
	var cfg App
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	// Set default values if not set
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := slog.Default()
	logger.Info("App config loaded",
		"env", cfg.Env,
		"store_driver", cfg.Store.Driver,
		"db", maskValue(cfg.DB.Url),
		"redis", maskValue(cfg.Redis.URL),
		"amqp", maskValue(cfg.AMQP.URL),
		"auth_jwt_secret", maskValue(cfg.Auth.Jwt.Secret),
		"rate_limit_max_requests", cfg.RateLimit.MaxRequests,
		"rate_limit_window", cfg.RateLimit.Window,
		"loan_vote_max_retries", cfg.Loan.VoteMaxRetries,
		"penalty_amount", cfg.Penalty.Amount.String(),
		"penalty_threshold", cfg.Penalty.Threshold,
		"penalty_schedule", cfg.Penalty.Schedule,
		"bulk_commit_concurrency", cfg.Bulk.CommitConcurrency,
	)
	return &cfg, nil
}

func maskValue(key string) string {
	if key == "" {
		return ""
	}
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}

func (c *App) validate() error {
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.Store.Driver)
	}
	if c.Penalty.Amount.IsNegative() || c.Penalty.Amount.IsZero() {
		return fmt.Errorf("PENALTY_AMOUNT must be positive")
	}
	if c.Penalty.Threshold <= 0 {
		return fmt.Errorf("PENALTY_THRESHOLD must be positive")
	}
	if c.Loan.VoteMaxRetries < 1 {
		c.Loan.VoteMaxRetries = 1
	}
	if c.Penalty.MaxRetries < 1 {
		c.Penalty.MaxRetries = 1
	}
	if c.Bulk.CommitConcurrency < 1 {
		c.Bulk.CommitConcurrency = 1
	}
	return nil
}
