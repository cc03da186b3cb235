package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config struct to hold the configuration settings
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Firebase     FirebaseConfig     `yaml:"firebase"`
	Storage      StorageConfig      `yaml:"storage"`
	Logging      LoggingConfig      `yaml:"logging"`
	Voting       VotingConfig       `yaml:"voting"`
	Invites      InvitesConfig      `yaml:"invites"`
	Entitlements EntitlementsConfig `yaml:"entitlements"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimit      float64       `yaml:"rate_limit"` // requests per second per user
	RateBurst      int           `yaml:"rate_burst"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

// FirebaseConfig holds the document database and callable function settings.
type FirebaseConfig struct {
	ProjectID       string `yaml:"project_id"`
	FunctionsURL    string `yaml:"functions_url"`
	EmulatorHost    string `yaml:"emulator_host"`
	CredentialsFile string `yaml:"credentials_file"`
}

// StorageConfig holds the local preferences database location.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// Format is text or json
	Format string `yaml:"format"`
	HTTP   bool   `yaml:"http"`
}

// VotingConfig holds vote submission settings.
type VotingConfig struct {
	ConfirmationTimeout time.Duration `yaml:"confirmation_timeout"`
}

// InvitesConfig holds invite link settings.
type InvitesConfig struct {
	BaseURL string `yaml:"base_url"`
	QRSize  int    `yaml:"qr_size"`
}

// EntitlementsConfig holds the static purchase state used when no billing
// integration is wired.
type EntitlementsConfig struct {
	Unlimited   bool     `yaml:"unlimited"`
	Subscribers []string `yaml:"subscribers"`
}

// MetricsConfig holds Prometheus exposition settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns a configuration with every optional field filled in.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8081",
			RequestTimeout: 60 * time.Second,
			RateLimit:      5,
			RateBurst:      20,
		},
		Storage: StorageConfig{DBPath: "awardswithfriends.db"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Voting:  VotingConfig{ConfirmationTimeout: 5 * time.Second},
		Invites: InvitesConfig{BaseURL: "https://awardswithfriends.app/join", QRSize: 256},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// LoadConfig loads the configuration from a YAML file.
// When the file cannot be read the configuration comes from the environment
// alone. Environment variables override file values.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return loadConfigFromEnv()
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	cfg := Default()
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if cfg.Firebase.ProjectID == "" {
		return nil, fmt.Errorf("FIREBASE_PROJECT_ID environment variable not set")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("AWF_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("AWF_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid AWF_REQUEST_TIMEOUT value: %w", err)
		}
		cfg.Server.RequestTimeout = d
	}
	if v := os.Getenv("AWF_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid AWF_RATE_LIMIT value: %w", err)
		}
		cfg.Server.RateLimit = f
	}
	if v := os.Getenv("AWF_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("FIREBASE_PROJECT_ID"); v != "" {
		cfg.Firebase.ProjectID = v
	}
	if v := os.Getenv("FIREBASE_FUNCTIONS_URL"); v != "" {
		cfg.Firebase.FunctionsURL = v
	}
	if v := os.Getenv("FIRESTORE_EMULATOR_HOST"); v != "" {
		cfg.Firebase.EmulatorHost = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
		cfg.Firebase.CredentialsFile = v
	}
	if v := os.Getenv("AWF_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LOG_HTTP"); v != "" {
		cfg.Logging.HTTP = v == "true"
	}
	if v := os.Getenv("AWF_VOTE_CONFIRMATION_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid AWF_VOTE_CONFIRMATION_TIMEOUT value: %w", err)
		}
		cfg.Voting.ConfirmationTimeout = d
	}
	if v := os.Getenv("AWF_INVITE_BASE_URL"); v != "" {
		cfg.Invites.BaseURL = v
	}
	if v := os.Getenv("AWF_ENTITLEMENTS_UNLIMITED"); v != "" {
		cfg.Entitlements.Unlimited = v == "true"
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true"
	}
	return nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Firebase.ProjectID == "" {
		return fmt.Errorf("firebase.project_id is required")
	}
	if c.Firebase.FunctionsURL == "" {
		c.Firebase.FunctionsURL = fmt.Sprintf("https://us-central1-%s.cloudfunctions.net", c.Firebase.ProjectID)
	}
	if c.Voting.ConfirmationTimeout <= 0 {
		return fmt.Errorf("voting.confirmation_timeout must be positive")
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst <= 0 {
		return fmt.Errorf("server.rate_limit and server.rate_burst must be positive")
	}
	if c.Invites.QRSize < 64 {
		return fmt.Errorf("invites.qr_size must be at least 64")
	}
	return nil
}
