package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. APPSTATS_OUTPUT_DIR.
const EnvPrefix = "APPSTATS"

// Load resolves configuration from defaults, an optional config file,
// APPSTATS_* environment variables, and any flags already bound on v.
// The returned config has not been validated.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if !v.IsSet("apps") {
		cfg.Apps = DefaultApps()
	}
	return cfg, nil
}

// SetDefaults registers DefaultConfig values on v.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("search_url", d.SearchURL)
	v.SetDefault("archive_url", d.ArchiveURL)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("output_format", d.OutputFormat)
	v.SetDefault("database_path", d.DatabasePath)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("fallback_charset", d.FallbackCharset)
	v.SetDefault("detect_charset", d.DetectCharset)
	v.SetDefault("max_body_size", d.MaxBodySize)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("respect_robots_txt", d.RespectRobotsTxt)
	v.SetDefault("index_cache_size", d.IndexCacheSize)
	v.SetDefault("updated_pattern", d.UpdatedPattern)
	v.SetDefault("size_pattern", d.SizePattern)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("verbose", d.Verbose)
}
