package identity

import (
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
	"github.com/joho/godotenv"
)

// AppConfig is the environment-sourced configuration. Secrets and SMTP
// settings are injected here once at startup and passed down as explicit
// dependencies; nothing reads the environment after load.
type AppConfig struct {
	SigningKey      string        `env:"IDENTITY_SIGNING_KEY,required"`
	TokenExpiration int           `env:"IDENTITY_TOKEN_EXPIRATION" envDefault:"24"`
	ActivationTTL   time.Duration `env:"IDENTITY_ACTIVATION_TTL" envDefault:"5m"`
	Issuer          string        `env:"IDENTITY_ISSUER" envDefault:"go-identity"`
	Audience        []string      `env:"IDENTITY_AUDIENCE" envSeparator:","`

	DSN string `env:"IDENTITY_DSN" envDefault:"file:identity.db?cache=shared"`

	SMTPHost string `env:"IDENTITY_SMTP_HOST"`
	SMTPPort string `env:"IDENTITY_SMTP_PORT" envDefault:"465"`
	SMTPUser string `env:"IDENTITY_SMTP_USER"`
	SMTPPass string `env:"IDENTITY_SMTP_PASS"`
	SMTPFrom string `env:"IDENTITY_SMTP_FROM"`

	HTTPAddr string `env:"IDENTITY_HTTP_ADDR" envDefault:":4001"`
}

// LoadConfig reads an optional .env file, then the process environment.
func LoadConfig() (*AppConfig, error) {
	// A missing .env file is fine; system env vars still apply.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to parse environment configuration")
	}

	return cfg, nil
}

func (c *AppConfig) GetSigningKey() string {
	return c.SigningKey
}

func (c *AppConfig) GetTokenExpiration() int {
	return c.TokenExpiration
}

func (c *AppConfig) GetActivationTTL() time.Duration {
	if c.ActivationTTL <= 0 {
		return DefaultActivationTTL
	}
	return c.ActivationTTL
}

func (c *AppConfig) GetIssuer() string {
	return c.Issuer
}

func (c *AppConfig) GetAudience() []string {
	return c.Audience
}

var _ Config = (*AppConfig)(nil)
