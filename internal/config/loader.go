package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"spashell/bff/internal/assets"
)

// Environment variable prefix, e.g. BFF_PORT or BFF_OBJECT_STORE_ENDPOINT.
const envPrefix = "BFF"

// Load reads the TOML file at path, applies BFF_* environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: unable to read config file %s: %v", ErrInvalid, path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: unable to parse config file: %v", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can see it during Unmarshal.
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 0)
	v.SetDefault("frontend_dir", "")
	v.SetDefault("templates_dir", "")
	v.SetDefault("template_reload", false)
	v.SetDefault("template_watch", false)
	v.SetDefault("manifest_cache", false)
	v.SetDefault("manifest_cache_ttl", assets.DefaultCacheTTL)
	v.SetDefault("redis_url", "")
	v.SetDefault("parallel_fetch", false)
	v.SetDefault("fetch_timeout", assets.DefaultFetchTimeout)
	v.SetDefault("apm_manifest_url", "")
	v.SetDefault("notifications_manifest_url", "")
	v.SetDefault("comments_manifest_url", "")
	v.SetDefault("admin_manifest_url", "")
	v.SetDefault("ga_tag_id", "")
	v.SetDefault("stripe_publishable_key", "")
	v.SetDefault("object_store.endpoint", "")
	v.SetDefault("object_store.access_key", "")
	v.SetDefault("object_store.secret_key", "")
	v.SetDefault("object_store.region", "")
	v.SetDefault("object_store.use_ssl", true)
	return v
}
