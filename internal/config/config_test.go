package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("CUTX_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "cutx_consumer", cfg.Redis.ConsumerGroup)
	require.Len(t, cfg.Suppliers, 2)

	bouney, ok := cfg.Supplier("bouney")
	require.True(t, ok)
	assert.Equal(t, FetchHTTP, bouney.Fetch)
	assert.NotEmpty(t, bouney.Categories)

	dispano, ok := cfg.Supplier("dispano")
	require.True(t, ok)
	assert.Equal(t, FetchBrowser, dispano.Fetch)
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9090
scraper:
  max_workers: 2
suppliers:
  - slug: bouney
    name: Bouney
    base_url: https://www.bouney.fr
    fetch: http
    categories:
      - slug: osb
        name: OSB
        parent: panneaux/bruts
        listing_url: https://www.bouney.fr/osb
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CUTX_CONFIG", path)
	t.Setenv("DATABASE_NAME", "cutx_test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Scraper.MaxWorkers)
	assert.Equal(t, "cutx_test", cfg.Database.Name)
	require.Len(t, cfg.Suppliers, 1)
	assert.Equal(t, "panneaux/bruts/osb", cfg.Suppliers[0].Categories[0].FullPath())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Scraper: ScraperConfig{MaxWorkers: 1, MaxRequestsPerSecond: 1},
			Suppliers: []SupplierConfig{
				{Slug: "bouney", Fetch: FetchHTTP, Categories: []CategoryConfig{{Slug: "mdf", ListingURL: "https://x/mdf"}}},
				{Slug: "dispano", Fetch: FetchBrowser},
			},
		}
	}

	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no workers", func(c *Config) { c.Scraper.MaxWorkers = 0 }, "max_workers"},
		{"no rate", func(c *Config) { c.Scraper.MaxRequestsPerSecond = -1 }, "max_requests_per_second"},
		{"duplicate slug", func(c *Config) { c.Suppliers[1].Slug = "bouney" }, "duplicate slug"},
		{"unknown fetch", func(c *Config) { c.Suppliers[0].Fetch = "ftp" }, "unknown fetch mode"},
		{"category without url", func(c *Config) { c.Suppliers[0].Categories[0].ListingURL = "" }, "listing_url"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestCategoryFullPath(t *testing.T) {
	assert.Equal(t, "chants", CategoryConfig{Slug: "chants"}.FullPath())
	assert.Equal(t, "panneaux/melamines", CategoryConfig{Slug: "melamines", Parent: "/panneaux/"}.FullPath())
	assert.Equal(t, "a/b", CategoryConfig{Slug: "ignored", Parent: "x", Path: "/a/b/"}.FullPath())
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "cutx", SSLMode: "disable", MaxConns: 4}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=cutx sslmode=disable", d.DSN())
}
