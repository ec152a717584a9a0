package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/crudgen/crudgen/pkg/crud"
)

// Config holds application-wide configuration.
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	PG        PGConfig         `mapstructure:"pg"`
	Auth      AuthConfig       `mapstructure:"auth"`
	Metrics   MetricsConfig    `mapstructure:"metrics"`
	Resources []ResourceConfig `mapstructure:"resources"`
}

type ServerConfig struct {
	ListenAddr string `mapstructure:"listenAddr"`
	BaseURL    string `mapstructure:"baseURL"`
}

type PGConfig struct {
	ConnString string `mapstructure:"connString"`
}

type AuthConfig struct {
	BasicAuth map[string]string `mapstructure:"basicAuth"` // username -> password
	OIDC      OIDCConfig        `mapstructure:"oidc"`
}

type OIDCConfig struct {
	ClientID     string `mapstructure:"clientID"`
	ClientSecret string `mapstructure:"clientSecret"`
	Issuer       string `mapstructure:"issuer"`
}

// Enabled reports whether any authentication backend is configured.
func (a AuthConfig) Enabled() bool {
	return len(a.BasicAuth) > 0 || a.OIDC.Issuer != ""
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ResourceConfig declares one table to expose as a CRUD endpoint set.
type ResourceConfig struct {
	Table           string   `mapstructure:"table"`
	Path            string   `mapstructure:"path"`
	Actions         []string `mapstructure:"actions"`
	ExcludedColumns []string `mapstructure:"excludedColumns"`
}

// ParseActions converts the configured action names, failing on unknown ones.
func (rc ResourceConfig) ParseActions() ([]crud.Action, error) {
	actions := make([]crud.Action, 0, len(rc.Actions))
	for _, name := range rc.Actions {
		action, ok := crud.ParseAction(name)
		if !ok {
			return nil, fmt.Errorf("resource %s: unknown action %q", rc.Table, name)
		}
		actions = append(actions, action)
	}
	return actions, nil
}

func DefaultConfig() Config {
	return Config{
		Server:  ServerConfig{ListenAddr: ":8080"},
		Metrics: MetricsConfig{Addr: ":9100"},
	}
}

// Load reads config from file or environment.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("crudgen")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("CRUDGEN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		fmt.Println("Using config file:", v.ConfigFileUsed())
	}

	cfg := DefaultConfig()
	decodeHook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, decodeHook); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.PG.ConnString == "" {
		cfg.PG.ConnString = os.Getenv("DATABASE_URL")
	}

	return &cfg, nil
}
