package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/pkg/errors"
)

// Limits for parallel download workers
const (
	MinParallelDownloads = 1
	MaxParallelDownloads = 16
)

// Config holds all runtime configuration for the bot process.
type Config struct {
	// BotToken is the chat platform bot token. Required.
	BotToken string `env:"BOT_TOKEN"`

	// AdminID is the identity that may manage credentials and receives
	// operational notifications. Zero disables admin features.
	AdminID int64 `env:"ADMIN_ID"`

	// AdminUnlockCode is a secret that grants access immediately when
	// sent by the admin as a plain message. Empty disables the bypass.
	AdminUnlockCode string `env:"ADMIN_UNLOCK_CODE"`

	ShortenerToken   string        `env:"SHORTENER_TOKEN"`
	ShortenerAPIURL  string        `env:"SHORTENER_API_URL" envDefault:"https://shrinkearn.com/api"`
	ShortenerTimeout time.Duration `env:"SHORTENER_TIMEOUT" envDefault:"10s"`

	DBPath        string `env:"DB_PATH" envDefault:"data/users.db"`
	CredentialDir string `env:"CREDENTIAL_DIR" envDefault:"data/cookies"`
	DownloadDir   string `env:"DOWNLOAD_DIR"`

	// AccessWindow is how long a grant stays valid.
	AccessWindow time.Duration `env:"ACCESS_WINDOW" envDefault:"24h"`

	MaxParallel int `env:"MAX_PARALLEL_DOWNLOADS" envDefault:"4"`
}

// Load reads configuration from the environment and applies defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}

	if cfg.DownloadDir == "" {
		cfg.DownloadDir = os.TempDir()
	}
	if cfg.MaxParallel < MinParallelDownloads {
		cfg.MaxParallel = MinParallelDownloads
	}
	if cfg.MaxParallel > MaxParallelDownloads {
		cfg.MaxParallel = MaxParallelDownloads
	}
	return cfg, nil
}

// Validate ensures critical values are set.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("BOT_TOKEN is not set")
	}
	if c.AccessWindow <= 0 {
		return errors.New("ACCESS_WINDOW must be positive")
	}
	return nil
}

// AdminConfigured reports whether an admin identity is set.
func (c *Config) AdminConfigured() bool {
	return c.AdminID != 0
}
