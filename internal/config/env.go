package config

import "github.com/spf13/viper"

// OperationalSettings are the transport-level knobs that live outside the
// domain YAML schema — listen address and config file paths — sourced from
// the environment via Viper, the same library the teacher uses for its own
// config layer (SPEC_FULL.md §6.1 expansion).
type OperationalSettings struct {
	ListenAddr  string
	ConfigPath  string
	StagingPath string
}

// LoadOperationalSettings reads NEOEDGE_-prefixed environment overrides
// with sane daemon defaults.
func LoadOperationalSettings() OperationalSettings {
	v := viper.New()
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("config_path", "config.yaml")
	v.SetDefault("staging_path", "config.yaml.staging")

	v.SetEnvPrefix("NEOEDGE")
	v.AutomaticEnv()

	return OperationalSettings{
		ListenAddr:  v.GetString("listen_addr"),
		ConfigPath:  v.GetString("config_path"),
		StagingPath: v.GetString("staging_path"),
	}
}
