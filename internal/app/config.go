package app

import (
	"os"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the checkout core configuration, loadable from environment
// variables (MACHBAZAR_ prefix), flags, or YAML config files.
type Config struct {
	// DatabaseURL points at the local storefront snapshot database. When
	// empty, carts are kept in memory only and do not survive reloads.
	DatabaseURL string `usage:"PostgreSQL connection URL (MACHBAZAR_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Backend     BackendConfig
}

// BackendConfig locates the consumed collaborator APIs.
type BackendConfig struct {
	ShippingURL  string `usage:"Shipping quote service base URL" flag:"shipping-url"`
	OrderURL     string `usage:"Order API base URL" flag:"order-url"`
	FishOrderURL string `usage:"Fish order API base URL" flag:"fish-order-url"`
	AuthToken    string `usage:"Session token; guest identity is embedded when empty" flag:"auth-token"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, and applies platform fallbacks.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "MACHBAZAR",
		Files:     []string{"config.yaml", "/etc/machbazar/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.Backend.ShippingURL == "" || cfg.Backend.OrderURL == "" || cfg.Backend.FishOrderURL == "" {
		return nil, errors.New("backend URLs are required: set MACHBAZAR_BACKEND_SHIPPING_URL, _ORDER_URL, _FISH_ORDER_URL")
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names like DATABASE_URL to the MACHBAZAR_-prefixed
// configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
}
