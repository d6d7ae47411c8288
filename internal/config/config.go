package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"spashell/bff/internal/assets"
	"spashell/bff/internal/objectstore"
)

var ErrInvalid = errors.New("invalid configuration")

type ObjectStoreConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type Config struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	FrontendDir  string `mapstructure:"frontend_dir"`
	TemplatesDir string `mapstructure:"templates_dir"`
	// TemplateReload re-parses templates on every render instead of once at startup.
	TemplateReload bool `mapstructure:"template_reload"`
	// TemplateWatch re-parses templates when files in templates_dir change.
	TemplateWatch bool `mapstructure:"template_watch"`

	ManifestCache    bool          `mapstructure:"manifest_cache"`
	ManifestCacheTTL time.Duration `mapstructure:"manifest_cache_ttl"`
	RedisURL         string        `mapstructure:"redis_url"`
	ParallelFetch    bool          `mapstructure:"parallel_fetch"`
	FetchTimeout     time.Duration `mapstructure:"fetch_timeout"`

	APMManifestURL           string `mapstructure:"apm_manifest_url"`
	NotificationsManifestURL string `mapstructure:"notifications_manifest_url"`
	CommentsManifestURL      string `mapstructure:"comments_manifest_url"`
	AdminManifestURL         string `mapstructure:"admin_manifest_url"`

	// Page secrets
	GATagID              string `mapstructure:"ga_tag_id"`
	StripePublishableKey string `mapstructure:"stripe_publishable_key"`

	ObjectStore ObjectStoreConfig `mapstructure:"object_store"`
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Sources lists the portals in the order their assets are merged.
func (c Config) Sources() []assets.Source {
	return []assets.Source{
		{Name: "apm", ManifestURL: c.APMManifestURL},
		{Name: "notifications", ManifestURL: c.NotificationsManifestURL},
		{Name: "comments", ManifestURL: c.CommentsManifestURL},
		{Name: "admin", ManifestURL: c.AdminManifestURL},
	}
}

func (c Config) ObjectStoreOptions() objectstore.Config {
	return objectstore.Config{
		Endpoint:  c.ObjectStore.Endpoint,
		AccessKey: c.ObjectStore.AccessKey,
		SecretKey: c.ObjectStore.SecretKey,
		Region:    c.ObjectStore.Region,
		UseSSL:    c.ObjectStore.UseSSL,
	}
}

func (c Config) Validate() error {
	var problems []string

	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("port %d is out of range", c.Port))
	}
	if err := requireDir(c.FrontendDir); err != nil {
		problems = append(problems, "Frontend dir does not exists: "+err.Error())
	}
	if err := requireDir(c.TemplatesDir); err != nil {
		problems = append(problems, "Templates dir does not exists: "+err.Error())
	}
	for _, source := range c.Sources() {
		if strings.TrimSpace(source.ManifestURL) == "" {
			problems = append(problems, source.Name+"_manifest_url is required")
		}
	}
	if strings.TrimSpace(c.StripePublishableKey) == "" {
		problems = append(problems, "stripe_publishable_key is required")
	}
	if c.FetchTimeout < 0 {
		problems = append(problems, "fetch_timeout must not be negative")
	}
	if c.ManifestCache && c.ManifestCacheTTL <= 0 {
		problems = append(problems, "manifest_cache_ttl must be positive when manifest_cache is enabled")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func requireDir(path string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("path is empty")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

type tomlView struct {
	Host                     string           `toml:"host"`
	Port                     int              `toml:"port"`
	FrontendDir              string           `toml:"frontend_dir"`
	TemplatesDir             string           `toml:"templates_dir"`
	TemplateReload           bool             `toml:"template_reload"`
	TemplateWatch            bool             `toml:"template_watch"`
	ManifestCache            bool             `toml:"manifest_cache"`
	ManifestCacheTTL         string           `toml:"manifest_cache_ttl"`
	RedisURL                 string           `toml:"redis_url,omitempty"`
	ParallelFetch            bool             `toml:"parallel_fetch"`
	FetchTimeout             string           `toml:"fetch_timeout"`
	APMManifestURL           string           `toml:"apm_manifest_url"`
	NotificationsManifestURL string           `toml:"notifications_manifest_url"`
	CommentsManifestURL      string           `toml:"comments_manifest_url"`
	AdminManifestURL         string           `toml:"admin_manifest_url"`
	GATagID                  string           `toml:"ga_tag_id,omitempty"`
	StripePublishableKey     string           `toml:"stripe_publishable_key"`
	ObjectStore              *objectStoreTOML `toml:"object_store,omitempty"`
}

type objectStoreTOML struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Region    string `toml:"region,omitempty"`
	UseSSL    bool   `toml:"use_ssl"`
}

// TOML renders the effective configuration with credentials redacted.
func (c Config) TOML() ([]byte, error) {
	view := tomlView{
		Host:                     c.Host,
		Port:                     c.Port,
		FrontendDir:              c.FrontendDir,
		TemplatesDir:             c.TemplatesDir,
		TemplateReload:           c.TemplateReload,
		TemplateWatch:            c.TemplateWatch,
		ManifestCache:            c.ManifestCache,
		ManifestCacheTTL:         c.ManifestCacheTTL.String(),
		RedisURL:                 redactURL(c.RedisURL),
		ParallelFetch:            c.ParallelFetch,
		FetchTimeout:             c.FetchTimeout.String(),
		APMManifestURL:           c.APMManifestURL,
		NotificationsManifestURL: c.NotificationsManifestURL,
		CommentsManifestURL:      c.CommentsManifestURL,
		AdminManifestURL:         c.AdminManifestURL,
		GATagID:                  c.GATagID,
		StripePublishableKey:     c.StripePublishableKey,
	}
	if c.ObjectStore.Endpoint != "" {
		view.ObjectStore = &objectStoreTOML{
			Endpoint:  c.ObjectStore.Endpoint,
			AccessKey: c.ObjectStore.AccessKey,
			SecretKey: redacted(c.ObjectStore.SecretKey),
			Region:    c.ObjectStore.Region,
			UseSSL:    c.ObjectStore.UseSSL,
		}
	}
	return toml.Marshal(view)
}

func redacted(secret string) string {
	if secret == "" {
		return ""
	}
	return "xxxxx"
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return redacted(raw)
	}
	return parsed.Redacted()
}
