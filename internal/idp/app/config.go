package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime configuration, populated from IDP_* environment
// variables.
type Config struct {
	Issuer     string `env:"IDP_ISSUER" envDefault:"http://localhost:8080"`
	ListenAddr string `env:"IDP_LISTEN_ADDR" envDefault:":8080"`

	DatabaseFile string `env:"IDP_DATABASE_FILE" envDefault:"idp.db"`
	PepperFile   string `env:"IDP_PEPPER_FILE" envDefault:"pepper"`
	RegistryFile string `env:"IDP_REGISTRY_FILE" envDefault:"registry.yaml"`

	// The two boot gates are independent: migrations can run without
	// seeding and vice versa.
	ApplyMigrations bool `env:"IDP_APPLY_MIGRATIONS" envDefault:"false"`
	SeedData        bool `env:"IDP_SEED_DATA" envDefault:"false"`

	Algorithm string `env:"IDP_ALGORITHM" envDefault:"EdDSA"` // RS256, ES256, or EdDSA
	RSABits   int    `env:"IDP_RSA_BITS" envDefault:"0"`      // only relevant for RS256
	NumKeys   int    `env:"IDP_NUM_KEYS" envDefault:"0"`      // 0 means KeyManager default

	AccessTTL time.Duration `env:"IDP_ACCESS_TTL" envDefault:"1h"`
	CodeTTL   time.Duration `env:"IDP_CODE_TTL" envDefault:"5m"`

	// EmitStaticAudienceClaim adds "<issuer>/resources" as an audience on
	// every issued token.
	EmitStaticAudienceClaim bool `env:"IDP_EMIT_STATIC_AUDIENCE" envDefault:"true"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	ShutdownGracePeriod  time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
