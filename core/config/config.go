// Package config provides the shared Viper-backed configuration base used
// by every caenhv service binary (broker, device, monitor, facade). The
// supervisor's own INI control-plane configuration lives separately in
// supervisor/internal/config, since its section layout is a fixed wire
// contract rather than a per-service operational setting.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LokiConfig holds Grafana Loki shipping settings for the logging hook.
type LokiConfig struct {
	Address string            `mapstructure:"address"`
	Labels  map[string]string `mapstructure:"labels"`
}

// LogConfig holds logging configuration settings.
type LogConfig struct {
	Formatter string     `mapstructure:"formatter"`
	Level     string     `mapstructure:"level"`
	Loki      LokiConfig `mapstructure:"loki"`
}

// ServiceConfig identifies a service instance for logging/registration.
type ServiceConfig struct {
	ID string `mapstructure:"id"`
}

// Config is the common embeddable base every service-specific config type
// extends, following plantd/identity's Config-embeds-cfg.Config pattern.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Service ServiceConfig `mapstructure:"service"`
}

// LoadConfigWithDefaults loads configuration for the named service from
// (in order of increasing precedence) built-in defaults, a config file
// discovered on the standard search path, and environment variables
// prefixed with the upper-cased service name.
func LoadConfigWithDefaults(name string, out interface{}, defaults map[string]interface{}) error {
	v := viper.New()

	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(fmt.Sprintf("/etc/caenhv/%s", name))
	v.AddConfigPath(fmt.Sprintf("$HOME/.config/caenhv/%s", name))

	v.SetEnvPrefix(strings.ToUpper(name))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return err
		}
	}

	return v.Unmarshal(out)
}
