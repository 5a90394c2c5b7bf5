package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Fetch modes of a supplier
const (
	FetchHTTP    = "http"
	FetchBrowser = "browser"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig     `mapstructure:"server"`
	Log       LogConfig        `mapstructure:"log"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Redis     RedisConfig      `mapstructure:"redis"`
	Scraper   ScraperConfig    `mapstructure:"scraper"`
	Suppliers []SupplierConfig `mapstructure:"suppliers"`
	Storage   StorageConfig    `mapstructure:"storage"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	AdminToken   string `mapstructure:"admin_token"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
}

// DSN renders the key=value connection string understood by pgx and database/sql.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	Database      int    `mapstructure:"database"`
	ConsumerGroup string `mapstructure:"consumer_group"`
	MinIdleTime   int    `mapstructure:"min_idle_time"` // seconds
	CacheTTL      int    `mapstructure:"cache_ttl"`     // seconds
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ScraperConfig holds the settings shared by every supplier client
type ScraperConfig struct {
	Timeout              int          `mapstructure:"timeout"` // seconds
	MaxRetries           int          `mapstructure:"max_retries"`
	MaxWorkers           int          `mapstructure:"max_workers"`
	MaxRequestsPerSecond int          `mapstructure:"max_requests_per_second"`
	Proxies              []string     `mapstructure:"proxies"`
	UserAgent            string       `mapstructure:"user_agent"`
	SaveInterval         int          `mapstructure:"save_interval"` // pages between progress saves
	ItemMaxRetries       int          `mapstructure:"item_max_retries"`
	Chrome               ChromeConfig `mapstructure:"chrome"`
}

func (s ScraperConfig) RequestTimeout() time.Duration {
	return time.Duration(s.Timeout) * time.Second
}

// ChromeConfig drives the headless browser used for JavaScript-rendered suppliers
type ChromeConfig struct {
	RemoteURL           string `mapstructure:"remote_url"` // ws://host:9222, empty to launch a local Chrome
	Headless            bool   `mapstructure:"headless"`
	NoSandbox           bool   `mapstructure:"no_sandbox"`
	WaitSelectorTimeout int    `mapstructure:"wait_selector_timeout"` // seconds
}

// SupplierConfig describes one scraped website and the categories to crawl
type SupplierConfig struct {
	Slug       string           `mapstructure:"slug"`
	Name       string           `mapstructure:"name"`
	BaseURL    string           `mapstructure:"base_url"`
	Fetch      string           `mapstructure:"fetch"`
	Categories []CategoryConfig `mapstructure:"categories"`
}

type CategoryConfig struct {
	Slug       string `mapstructure:"slug"`
	Name       string `mapstructure:"name"`
	Path       string `mapstructure:"path"` // defaults to parent/slug
	ListingURL string `mapstructure:"listing_url"`
	Parent     string `mapstructure:"parent"`
}

// FullPath is the category path in the catalogue tree.
func (c CategoryConfig) FullPath() string {
	if c.Path != "" {
		return strings.Trim(c.Path, "/")
	}
	if c.Parent != "" {
		return strings.Trim(c.Parent, "/") + "/" + c.Slug
	}
	return c.Slug
}

// StorageConfig points at the S3 compatible bucket receiving backups
type StorageConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	Region       string `mapstructure:"region"`
	Bucket       string `mapstructure:"bucket"`
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	LocalDir     string `mapstructure:"local_dir"` // used when bucket is empty
}

// Supplier returns the supplier with the given slug.
func (c *Config) Supplier(slug string) (SupplierConfig, bool) {
	for _, s := range c.Suppliers {
		if s.Slug == slug {
			return s, true
		}
	}
	return SupplierConfig{}, false
}

// Load loads configuration from YAML file with environment variable overrides.
// A missing file is not an error: defaults and environment apply.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path := os.Getenv("CUTX_CONFIG"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Scraper.MaxWorkers <= 0 {
		return fmt.Errorf("scraper.max_workers must be positive, got %d", c.Scraper.MaxWorkers)
	}
	if c.Scraper.MaxRequestsPerSecond <= 0 {
		return fmt.Errorf("scraper.max_requests_per_second must be positive, got %d", c.Scraper.MaxRequestsPerSecond)
	}

	seen := make(map[string]struct{}, len(c.Suppliers))
	for i, s := range c.Suppliers {
		if s.Slug == "" {
			return fmt.Errorf("suppliers[%d]: slug is required", i)
		}
		if _, dup := seen[s.Slug]; dup {
			return fmt.Errorf("suppliers[%d]: duplicate slug %q", i, s.Slug)
		}
		seen[s.Slug] = struct{}{}

		if s.Fetch != FetchHTTP && s.Fetch != FetchBrowser {
			return fmt.Errorf("supplier %s: unknown fetch mode %q", s.Slug, s.Fetch)
		}
		for j, cat := range s.Categories {
			if cat.Slug == "" || cat.ListingURL == "" {
				return fmt.Errorf("supplier %s: categories[%d] needs slug and listing_url", s.Slug, j)
			}
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.admin_token", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "cutx")
	v.SetDefault("database.user", "cutx")
	v.SetDefault("database.password", "cutx")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.consumer_group", "cutx_consumer")
	v.SetDefault("redis.min_idle_time", 120)
	v.SetDefault("redis.cache_ttl", 300)

	v.SetDefault("scraper.timeout", 30)
	v.SetDefault("scraper.max_retries", 3)
	v.SetDefault("scraper.max_workers", 5)
	v.SetDefault("scraper.max_requests_per_second", 2)
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("scraper.save_interval", 5)
	v.SetDefault("scraper.item_max_retries", 3)
	v.SetDefault("scraper.chrome.remote_url", "")
	v.SetDefault("scraper.chrome.headless", true)
	v.SetDefault("scraper.chrome.no_sandbox", true)
	v.SetDefault("scraper.chrome.wait_selector_timeout", 20)

	v.SetDefault("suppliers", defaultSuppliers())

	v.SetDefault("storage.region", "eu-west-3")
	v.SetDefault("storage.use_path_style", true)
	v.SetDefault("storage.local_dir", "./backups")
}

func defaultSuppliers() []map[string]any {
	category := func(slug, name, parent, url string) map[string]any {
		return map[string]any{"slug": slug, "name": name, "parent": parent, "listing_url": url}
	}
	return []map[string]any{
		{
			"slug":     "bouney",
			"name":     "Bouney",
			"base_url": "https://www.bouney.fr",
			"fetch":    FetchHTTP,
			"categories": []map[string]any{
				category("melamines", "Panneaux mélaminés", "panneaux", "https://www.bouney.fr/panneaux/panneaux-melamines"),
				category("stratifies", "Stratifiés", "panneaux", "https://www.bouney.fr/panneaux/stratifies"),
				category("mdf", "MDF", "panneaux/bruts", "https://www.bouney.fr/panneaux/panneaux-bruts/mdf"),
				category("chants", "Chants", "", "https://www.bouney.fr/chants"),
			},
		},
		{
			"slug":     "dispano",
			"name":     "Dispano",
			"base_url": "https://www.dispano.fr",
			"fetch":    FetchBrowser,
			"categories": []map[string]any{
				category("melamines", "Panneaux mélaminés", "panneaux", "https://www.dispano.fr/c/panneaux-melamines"),
				category("contreplaques", "Contreplaqués", "panneaux/bruts", "https://www.dispano.fr/c/contreplaques"),
				category("plaques-bois", "Panneaux plaqués bois", "panneaux", "https://www.dispano.fr/c/panneaux-plaques-bois"),
			},
		},
	}
}
