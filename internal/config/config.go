package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envPrefix = "MINPRICE"

// Catalog sources accepted in CATALOG_SOURCE.
const (
	CatalogSourcePostgres = "postgres"
	CatalogSourceUpstream = "upstream"
)

// Config holds every setting the API process reads from the environment.
type Config struct {
	AppPort          string        `envconfig:"APP_PORT" default:"8080"`
	DatabaseURL      string        `envconfig:"DATABASE_URL" required:"true"`
	RedisAddr        string        `envconfig:"REDIS_ADDR"`
	CatalogSource    string        `envconfig:"CATALOG_SOURCE" default:"postgres"`
	UpstreamBaseURL  string        `envconfig:"UPSTREAM_BASE_URL" default:"https://minprice.xyz/api"`
	UpstreamTimeout  time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"5s"`
	UpstreamCityID   int           `envconfig:"UPSTREAM_CITY_ID"`
	MediaBaseURL     string        `envconfig:"MEDIA_BASE_URL" default:"https://minprice.xyz"`
	CatalogCacheTTL  time.Duration `envconfig:"CATALOG_CACHE_TTL" default:"5m"`
	CatalogCacheSize int           `envconfig:"CATALOG_CACHE_SIZE" default:"10000"`
	GuestSigningKey  string        `envconfig:"GUEST_SIGNING_KEY" required:"true"`
	GuestTokenTTL    time.Duration `envconfig:"GUEST_TOKEN_TTL" default:"8760h"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat        string        `envconfig:"LOG_FORMAT" default:"json"`
}

// Load reads an optional .env file and then the process environment.
// Variables may be given with or without the MINPRICE_ prefix.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, errors.Wrapf(err, "load %s", f)
		}
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, errors.Wrap(err, "process environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.CatalogSource {
	case CatalogSourcePostgres, CatalogSourceUpstream:
	default:
		return errors.Errorf("unknown CATALOG_SOURCE %q", c.CatalogSource)
	}
	if c.CatalogSource == CatalogSourceUpstream && c.UpstreamBaseURL == "" {
		return errors.New("UPSTREAM_BASE_URL is required when CATALOG_SOURCE=upstream")
	}
	if c.CatalogCacheTTL > 0 && c.RedisAddr == "" && c.CatalogCacheSize <= 0 {
		return errors.New("CATALOG_CACHE_SIZE must be positive for the in-process cache")
	}
	if len(c.GuestSigningKey) < 16 {
		return errors.New("GUEST_SIGNING_KEY must be at least 16 bytes")
	}
	return nil
}
