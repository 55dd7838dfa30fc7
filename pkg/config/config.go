// Package config loads the constructor parameters for the STUN client,
// network prober, and supervisor from a YAML/JSON/TOML file and environment
// variables, layered over a built-in default configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the full set of values the runner reads at startup; nothing else
// is honoured.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	StunHost         string        `mapstructure:"stun_host"`
	StunPort         uint16        `mapstructure:"stun_port"`
	StunTimeout      time.Duration `mapstructure:"stun_timeout"`
	StunRetries      int           `mapstructure:"stun_retries"`
	StunRetriesDelay time.Duration `mapstructure:"stun_retries_delay"`

	CheckInterval     time.Duration `mapstructure:"check_interval"`
	CheckRetries      int           `mapstructure:"check_retries"`
	CheckRetriesDelay time.Duration `mapstructure:"check_retries_delay"`

	Cmd       []string `mapstructure:"cmd"`
	CmdRemove []string `mapstructure:"cmd_remove"`
	CmdAppend []string `mapstructure:"cmd_append"`
}

// Defaults mirrors the values PiKVM ships in its kvmd.yaml for the live777
// app, so an empty/missing config file still produces a runnable Config.
func Defaults() Config {
	return Config{
		LogLevel: "info",

		StunHost:         "stun.l.google.com",
		StunPort:         19302,
		StunTimeout:      5 * time.Second,
		StunRetries:      5,
		StunRetriesDelay: 1 * time.Second,

		CheckInterval:     15 * time.Second,
		CheckRetries:      5,
		CheckRetriesDelay: 1 * time.Second,

		Cmd: []string{
			"/usr/bin/live777", "--port=8889",
			"{o_stun_server}",
		},
	}
}

// Load reads path (YAML, JSON, or TOML, detected by viper from the file
// extension) over Defaults(), and env vars prefixed LIVE777RUNNER_ override
// both. path == "" loads defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("LIVE777RUNNER")
	v.AutomaticEnv()
	bindDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// bindDefaults seeds viper's own default layer from a Defaults() value so
// that partially-specified config files only override the keys they set.
func bindDefaults(v *viper.Viper, d Config) {
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("stun_host", d.StunHost)
	v.SetDefault("stun_port", d.StunPort)
	v.SetDefault("stun_timeout", d.StunTimeout)
	v.SetDefault("stun_retries", d.StunRetries)
	v.SetDefault("stun_retries_delay", d.StunRetriesDelay)
	v.SetDefault("check_interval", d.CheckInterval)
	v.SetDefault("check_retries", d.CheckRetries)
	v.SetDefault("check_retries_delay", d.CheckRetriesDelay)
	v.SetDefault("cmd", d.Cmd)
	v.SetDefault("cmd_remove", d.CmdRemove)
	v.SetDefault("cmd_append", d.CmdAppend)
}
