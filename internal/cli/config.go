package cli

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the terminal client's configuration. Environment variables are
// read first and command-line flags override them.
type Config struct {
	APIURL    string        `env:"VISION_API_URL"    envDefault:"http://localhost:8080"`
	TokenFile string        `env:"VISION_TOKEN_FILE"`
	Timeout   time.Duration `env:"VISION_TIMEOUT"    envDefault:"90s"`

	// Redirect targets handed to the hosted checkout page.
	SuccessURL string `env:"VISION_SUCCESS_URL" envDefault:"http://localhost:5173/checkout/success"`
	CancelURL  string `env:"VISION_CANCEL_URL"  envDefault:"http://localhost:5173/checkout/cancel"`

	Verbose bool `env:"VISION_VERBOSE"`
}

// LoadConfig parses the environment, then args. The remaining positional
// arguments are returned as the command to run.
func LoadConfig(args []string, stderr io.Writer) (Config, []string, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, nil, fmt.Errorf("parse env: %w", err)
	}

	fs := flag.NewFlagSet("visionctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cfg.APIURL, "api", cfg.APIURL, "studio API base URL")
	fs.StringVar(&cfg.TokenFile, "token-file", cfg.TokenFile, "where the session token is kept")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP request timeout")
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "log SDK diagnostics to stderr")
	if err := fs.Parse(args); err != nil {
		return Config{}, nil, err
	}

	if cfg.TokenFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return Config{}, nil, fmt.Errorf("locate config dir: %w", err)
		}
		cfg.TokenFile = filepath.Join(dir, "visionctl", "token")
	}
	return cfg, fs.Args(), nil
}
