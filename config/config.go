// Package config provides environment-based configuration for the Aido
// authentication backend.
//
// Configuration is loaded from environment variables using Viper, with
// sensible defaults for development. Provider availability is decided here
// and injected into the rest of the system as booleans; no other package
// reads the process environment.
//
// # Environment Variables
//
//   - DB_TYPE: Database type (sqlite, postgres, mysql). Default: sqlite
//   - DSN: Database connection string. Default: aido.db
//   - LOG_LEVEL: Logging level (debug, info, warn, error). Default: info
//   - PORT: HTTP server port. Default: 8080
//   - OTLP_ENDPOINT: OTLP trace exporter endpoint. Empty disables tracing.
//
// Each OAuth provider reads <NAME>_CLIENT_ID, <NAME>_CLIENT_SECRET and
// <NAME>_REDIRECT_URL. A provider whose client id or secret is unset, or
// set to the literal "disabled", is reported as unavailable.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	DBType          string `mapstructure:"DB_TYPE"` // sqlite, postgres, mysql
	DSN             string `mapstructure:"DSN"`
	LogLevel        string `mapstructure:"LOG_LEVEL"`
	Port            int    `mapstructure:"PORT"`
	OTLPEndpoint    string `mapstructure:"OTLP_ENDPOINT"`

	Providers map[string]OAuthProvider `mapstructure:"-"`
}

type OAuthProvider struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Available reports whether the provider is configured for use. The
// literal value "disabled" turns a provider off without unsetting it.
func (p OAuthProvider) Available() bool {
	return p.ClientID != "" && p.ClientID != "disabled" &&
		p.ClientSecret != "" && p.ClientSecret != "disabled"
}

// Default OIDC issuers per provider.
var issuers = map[string]string{
	"google": "https://accounts.google.com",
	"apple":  "https://appleid.apple.com",
	"kakao":  "https://kauth.kakao.com",
}

func LoadConfig() (*Config, error) {
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("DB_TYPE", "sqlite")
	viper.SetDefault("DSN", "aido.db") // Default to sqlite if not provided
	viper.SetDefault("OTLP_ENDPOINT", "")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Providers = make(map[string]OAuthProvider, len(issuers))
	for name, issuer := range issuers {
		upper := strings.ToUpper(name)
		cfg.Providers[name] = OAuthProvider{
			Issuer:       viper.GetString(upper + "_ISSUER"),
			ClientID:     viper.GetString(upper + "_CLIENT_ID"),
			ClientSecret: viper.GetString(upper + "_CLIENT_SECRET"),
			RedirectURL:  viper.GetString(upper + "_REDIRECT_URL"),
		}
		if cfg.Providers[name].Issuer == "" {
			p := cfg.Providers[name]
			p.Issuer = issuer
			cfg.Providers[name] = p
		}
	}

	return &cfg, nil
}
