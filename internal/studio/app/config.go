package app

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/minivisionary/pkg/httpx"
	"github.com/caarlos0/env/v11"
)

// Signing key storage modes.
const (
	KeyStorageEphemeral  = "ephemeral"
	KeyStoragePersistent = "persistent"
)

type Config struct {
	Issuer   string        `env:"STUDIO_ISSUER"    envDefault:"minivisionary-studio"`
	TokenTTL time.Duration `env:"STUDIO_TOKEN_TTL" envDefault:"720h"`
	NumKeys  int           `env:"STUDIO_NUM_KEYS"  envDefault:"2"`

	// Persistent keys are sealed with the master key and kept in the
	// database, so sessions outlive a restart.
	KeyStorage     string        `env:"STUDIO_KEY_STORAGE"      envDefault:"persistent"`
	MasterKeyFile  string        `env:"STUDIO_MASTER_KEY_FILE"  envDefault:"master.key"`
	KeyRotateAfter time.Duration `env:"STUDIO_KEY_ROTATE_AFTER" envDefault:"2160h"`

	DatabaseFile string `env:"STUDIO_DATABASE_FILE" envDefault:"studio.db"`
	PepperFile   string `env:"STUDIO_PEPPER_FILE"   envDefault:"pepper"`
	UploadDir    string `env:"STUDIO_UPLOAD_DIR"    envDefault:"uploads"`

	// PublicURL is the externally reachable base used for poster links and
	// hosted checkout pages.
	PublicURL string `env:"STUDIO_PUBLIC_URL" envDefault:"http://localhost:8080"`

	WebhookSecret      string        `env:"STUDIO_WEBHOOK_SECRET"`
	SignatureTolerance time.Duration `env:"STUDIO_WEBHOOK_TOLERANCE" envDefault:"5m"`
	CheckoutTTL        time.Duration `env:"STUDIO_CHECKOUT_TTL"      envDefault:"24h"`
	SimulatorEnabled   bool          `env:"SIMULATOR_ENABLED"        envDefault:"false"`
	GenerateTimeout    time.Duration `env:"STUDIO_GENERATE_TIMEOUT"  envDefault:"60s"`

	Env       string `env:"ENV"        envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Port                 int           `env:"PORT"                  envDefault:"8080"`
	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`

	RateLimits httpx.RateLimits `envPrefix:"RATELIMIT_"`
}

// LoadConfig reads the environment on top of the built-in defaults.
func LoadConfig() (Config, error) {
	cfg := Config{RateLimits: httpx.DefaultRateLimits()}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.PublicURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("config: STUDIO_PUBLIC_URL must be an absolute url, got %q", c.PublicURL)
	}
	c.PublicURL = strings.TrimSuffix(c.PublicURL, "/")

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT out of range: %d", c.Port)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("config: STUDIO_TOKEN_TTL must be positive")
	}
	if c.KeyStorage != KeyStorageEphemeral && c.KeyStorage != KeyStoragePersistent {
		return fmt.Errorf("config: STUDIO_KEY_STORAGE must be %q or %q, got %q",
			KeyStorageEphemeral, KeyStoragePersistent, c.KeyStorage)
	}
	if c.WebhookSecret == "" && !c.SimulatorEnabled {
		return fmt.Errorf("config: STUDIO_WEBHOOK_SECRET is required unless SIMULATOR_ENABLED is set")
	}
	return nil
}
