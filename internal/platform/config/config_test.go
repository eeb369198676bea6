package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{
		"ACCOUNTING_ADDR":    ":9090",
		"DATABASE_URL":       "postgres://localhost/books",
		"DATABASE_MIGRATE":   "true",
		"KAFKA_BROKERS":      "k1:9092, k2:9092,",
		"MAX_PAGE_SIZE":      "500",
		"CATEGORY_CACHE_TTL": "30s",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres://localhost/books", cfg.Database.URL)
	assert.True(t, cfg.Database.Migrate)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, 500, cfg.Paging.MaxPageSize)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
}

func TestApplyEnvRejectsMalformedNumbers(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(envMap(map[string]string{"MAX_PAGE_SIZE": "lots"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAX_PAGE_SIZE")
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "accounting.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":7000"
  public_base_url: "https://books.example.com"
paging:
  default_page_size: 50
  max_page_size: 100
redis:
  cache_ttl: 1m
`), 0o600))

	t.Setenv("ACCOUNTING_CONFIG", path)
	t.Setenv("ACCOUNTING_ADDR", ":7001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":7001", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Paging.DefaultPageSize)
	assert.Equal(t, time.Minute, cfg.Redis.CacheTTL)

	base, err := cfg.Server.PublicBase()
	require.NoError(t, err)
	assert.Equal(t, "books.example.com", base.Host)
}

func TestLoadFileUnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paging:\n  pagesize: 3\n"), 0o600))
	t.Setenv("ACCOUNTING_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("default page size above max", func(t *testing.T) {
		cfg := Default()
		cfg.Paging.DefaultPageSize = 2000
		require.Error(t, cfg.Validate())
	})

	t.Run("relative public base", func(t *testing.T) {
		cfg := Default()
		cfg.Server.PublicBaseURL = "/ledger"
		require.Error(t, cfg.Validate())
	})

	t.Run("defaults are valid", func(t *testing.T) {
		require.NoError(t, Default().Validate())
	})
}
