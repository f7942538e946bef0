package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/kursadbilgin/credit-engine/internal/roster"
)

type Config struct {
	DatabaseDSN      string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL      string `env:"RABBITMQ_URL,required=true"`
	RedisURL         string `env:"REDIS_URL,required=true"`
	EnterpriseAPIURL string `env:"ENTERPRISE_API_URL,required=true"`
	APIPort          int    `env:"API_PORT,default=8080"`
	LogLevel         string `env:"LOG_LEVEL,default=info"`

	EnterpriseAPITimeoutMS int `env:"ENTERPRISE_API_TIMEOUT_MS,default=10000"`
	BreakerMaxFailures     int `env:"BREAKER_MAX_FAILURES,default=5"`
	BreakerOpenTimeoutSec  int `env:"BREAKER_OPEN_TIMEOUT_SEC,default=30"`

	RosterDebounceMS     int    `env:"ROSTER_DEBOUNCE_MS,default=500"`
	RosterMaxEmails      int    `env:"ROSTER_MAX_EMAILS,default=1000"`
	RosterDisplayLimit   int    `env:"ROSTER_DISPLAY_LIMIT,default=15"`
	DuplicateEmailPolicy string `env:"DUPLICATE_EMAIL_POLICY,default=annotate"`

	BudgetCacheTTLSec          int `env:"BUDGET_CACHE_TTL_SEC,default=30"`
	SubmissionLockTTLSec       int `env:"SUBMISSION_LOCK_TTL_SEC,default=60"`
	AllocationRateLimit        int `env:"ALLOCATION_RATE_LIMIT,default=30"`
	AllocationRateLimitWindowS int `env:"ALLOCATION_RATE_LIMIT_WINDOW_SEC,default=60"`
	SessionIdleTTLMin          int `env:"SESSION_IDLE_TTL_MIN,default=60"`

	EventConsumerPrefetch    int `env:"EVENT_CONSUMER_PREFETCH,default=10"`
	EventConsumerConcurrency int `env:"EVENT_CONSUMER_CONCURRENCY,default=2"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := roster.ParseDuplicatePolicyFromString(c.DuplicateEmailPolicy); err != nil {
		return err
	}

	positive := map[string]int{
		"API_PORT":                         c.APIPort,
		"ENTERPRISE_API_TIMEOUT_MS":        c.EnterpriseAPITimeoutMS,
		"ROSTER_DEBOUNCE_MS":               c.RosterDebounceMS,
		"ROSTER_MAX_EMAILS":                c.RosterMaxEmails,
		"ROSTER_DISPLAY_LIMIT":             c.RosterDisplayLimit,
		"BUDGET_CACHE_TTL_SEC":             c.BudgetCacheTTLSec,
		"SUBMISSION_LOCK_TTL_SEC":          c.SubmissionLockTTLSec,
		"ALLOCATION_RATE_LIMIT":            c.AllocationRateLimit,
		"ALLOCATION_RATE_LIMIT_WINDOW_SEC": c.AllocationRateLimitWindowS,
		"SESSION_IDLE_TTL_MIN":             c.SessionIdleTTLMin,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive (got %d)", name, value)
		}
	}
	return nil
}

func (c *Config) DuplicatePolicy() roster.DuplicatePolicy {
	policy, err := roster.ParseDuplicatePolicyFromString(c.DuplicateEmailPolicy)
	if err != nil {
		return roster.DuplicatePolicyAnnotate
	}
	return policy
}

func (c *Config) EnterpriseAPITimeout() time.Duration {
	return time.Duration(c.EnterpriseAPITimeoutMS) * time.Millisecond
}

func (c *Config) BreakerOpenTimeout() time.Duration {
	return time.Duration(c.BreakerOpenTimeoutSec) * time.Second
}

func (c *Config) RosterDebounce() time.Duration {
	return time.Duration(c.RosterDebounceMS) * time.Millisecond
}

func (c *Config) BudgetCacheTTL() time.Duration {
	return time.Duration(c.BudgetCacheTTLSec) * time.Second
}

func (c *Config) SubmissionLockTTL() time.Duration {
	return time.Duration(c.SubmissionLockTTLSec) * time.Second
}

func (c *Config) AllocationRateLimitWindow() time.Duration {
	return time.Duration(c.AllocationRateLimitWindowS) * time.Second
}

func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLMin) * time.Minute
}
