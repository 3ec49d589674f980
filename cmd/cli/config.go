package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	configName = ".obsnote"
	envPrefix  = "OBSNOTE"
)

// cliConfig is what the CLI needs to reach the backends. Values come from
// flags, OBSNOTE_* environment variables or a .obsnote.yaml file.
type cliConfig struct {
	Search struct {
		URL      string        `mapstructure:"url"`
		Username string        `mapstructure:"username"`
		Password string        `mapstructure:"password"`
		Timeout  time.Duration `mapstructure:"timeout"`
	} `mapstructure:"search"`
	Agent struct {
		URL          string        `mapstructure:"url"`
		PollInterval time.Duration `mapstructure:"poll_interval"`
	} `mapstructure:"agent"`
	Analysis struct {
		SampleSize int `mapstructure:"sample_size"`
		MaxResults int `mapstructure:"max_results"`
		GroupCount int `mapstructure:"group_count"`
	} `mapstructure:"analysis"`
}

func loadCLIConfig(v *viper.Viper, configPath string) (*cliConfig, error) {
	v.SetDefault("search.url", "http://localhost:9200")
	v.SetDefault("search.timeout", 30*time.Second)
	v.SetDefault("agent.url", "http://localhost:9200")
	v.SetDefault("agent.poll_interval", 2*time.Second)
	v.SetDefault("analysis.sample_size", 1000)
	v.SetDefault("analysis.max_results", 30)
	v.SetDefault("analysis.group_count", 5)

	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg cliConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
