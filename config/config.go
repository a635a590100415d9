// Package config loads the static process configuration from env files.
// Data-shaped configuration (tenant registry, classification rules,
// exchange rates, identity remaps) lives in YAML files referenced here
// and is loaded separately at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
)

// Configuration holds the static settings needed to run the updater.
type Configuration struct {
	// Actor tag stamped into every written record's updated_by field.
	UpdatedBy string `env:"UPDATER_ACTOR" envDefault:"updater"`

	// Jobs to run, comma separated. Empty = all registered jobs.
	Jobs string `env:"UPDATER_JOBS" envDefault:""`

	// TenantsFile is the tenant registry (stores, credentials, output
	// collections, exclusion lists).
	TenantsFile string `env:"TENANTS_FILE" envDefault:"config/data/tenants.yaml"`
	// RulesFile is the ordered payment-link classification rule table.
	RulesFile string `env:"PAYMENT_RULES_FILE" envDefault:"config/data/payment_rules.yaml"`
	// RatesFile is the currency exchange-rate table.
	RatesFile string `env:"EXCHANGE_RATES_FILE" envDefault:"config/data/exchange_rates.yaml"`
	// RemapsFile is the per-tenant client-id remap table.
	RemapsFile string `env:"IDENTITY_REMAPS_FILE" envDefault:"config/data/identity_remaps.yaml"`

	// Bounded tenant-level parallelism. 1 = sequential; tenants own
	// disjoint stores so any degree is safe.
	TenantWorkers int `env:"TENANT_WORKERS" envDefault:"1"`

	// RunTimeout bounds a whole invocation, in seconds. 0 = no limit.
	RunTimeoutSeconds int `env:"RUN_TIMEOUT_SECONDS" envDefault:"3600"`
	// QueryTimeout bounds individual store operations, in seconds.
	QueryTimeoutSeconds int `env:"QUERY_TIMEOUT_SECONDS" envDefault:"120"`
	// ConnectRetries bounds reconnect attempts with backoff. Applies to
	// the connectivity layer only; upserts are never retried in-run.
	ConnectRetries int `env:"CONNECT_RETRIES" envDefault:"3"`

	// Interval worker settings (deployments without an external
	// scheduler). Only used when the process runs with -loop.
	WorkerIntervalMinutes int `env:"WORKER_INTERVAL_MINUTES" envDefault:"60"`

	// SMTP settings for the run-report mail. Empty host disables mail.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM"`
	MailTo       string `env:"MAIL_TO"`
}

// getEnvPath returns the env file path for the current environment.
func getEnvPath() string {
	goEnv := os.Getenv("GO_ENV")
	if goEnv == "" {
		goEnv = "development"
	}

	currentDir, err := os.Getwd()
	if err != nil {
		fmt.Printf("Cannot determine working directory: %v\n", err)
		return ""
	}

	// Walk up until a config/env directory is found.
	for {
		envDir := filepath.Join(currentDir, "config", "env")
		if _, err := os.Stat(envDir); err == nil {
			return filepath.Join(envDir, fmt.Sprintf("%s.env", goEnv))
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return ""
		}
		currentDir = parentDir
	}
}

// NewConfig reads the configuration from the environment, loading the
// per-environment env file first when one exists. Uses fmt directly
// because the logger is not initialized yet at this point.
func NewConfig() *Configuration {
	envPath := getEnvPath()
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Could not load env file at %s: %v\n", envPath, err)
		}
	}

	cfg := Configuration{}
	if err := env.Parse(&cfg); err != nil {
		fmt.Printf("Error parsing config: %+v\n", err)
		return nil
	}

	return &cfg
}
