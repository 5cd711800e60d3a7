// Package config loads runtime settings from defaults, an optional YAML file,
// IPLOGIN_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr    string        `mapstructure:"listen_addr"`
	LogLevel      string        `mapstructure:"log_level"`
	OperatorEmail string        `mapstructure:"operator_email"`
	CSRFSecret    string        `mapstructure:"csrf_secret"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	Database      Database      `mapstructure:"database"`
	Site          Site          `mapstructure:"site"`
	SMTP          SMTP          `mapstructure:"smtp"`
	Updates       Updates       `mapstructure:"updates"`

	// TrustedProxies may set X-Forwarded-For / X-Real-IP. Empty means the
	// socket peer address is always the client IP.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

type Database struct {
	Path string `mapstructure:"path"`
}

type Site struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

type SMTP struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type Updates struct {
	Enabled bool   `mapstructure:"enabled"`
	Owner   string `mapstructure:"owner"`
	Repo    string `mapstructure:"repo"`
	Token   string `mapstructure:"token"`
}

var defaults = map[string]any{
	"listen_addr":     ":8888",
	"log_level":       "info",
	"operator_email":  "",
	"csrf_secret":     "",
	"session_ttl":     "12h",
	"trusted_proxies": []string{},
	"database.path":   "./iplogin.db",
	"site.name":       "iplogin",
	"site.url":        "http://localhost:8888",
	"smtp.host":       "",
	"smtp.port":       25,
	"smtp.user":       "",
	"smtp.password":   "",
	"smtp.from":       "",
	"updates.enabled": false,
	"updates.owner":   "",
	"updates.repo":    "",
	"updates.token":   "",
}

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"listen":    "listen_addr",
	"db":        "database.path",
	"log-level": "log_level",
}

// Load builds the configuration. configFile may be empty, in which case
// iplogin.yaml is looked up in the working directory and /etc/iplogin and
// its absence is not an error.
func Load(configFile string, flags *pflag.FlagSet) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("iplogin")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/iplogin")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return c, err
		}
	}

	v.SetEnvPrefix("iplogin")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return c, err
				}
			}
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, nil
}
