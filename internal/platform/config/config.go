package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	platformstrings "accounting/pkg/platform/strings"
)

// Config is the full process configuration.
type Config struct {
	Server   Server      `yaml:"server"`
	Database Database    `yaml:"database"`
	Redis    RedisConfig `yaml:"redis"`
	Kafka    Kafka       `yaml:"kafka"`
	Outbox   Outbox      `yaml:"outbox"`
	Paging   Paging      `yaml:"paging"`
	Auth     Auth        `yaml:"auth"`
	Log      Log         `yaml:"log"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr string `yaml:"addr"`
	// PublicBaseURL overrides the scheme and host taken from each request when
	// rendering resource links.
	PublicBaseURL   string        `yaml:"public_base_url"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Database configures the relational store. An empty URL selects the
// in-memory stores.
type Database struct {
	URL          string        `yaml:"url"`
	Migrate      bool          `yaml:"migrate"`
	MaxOpenConns int           `yaml:"max_open_conns"`
	MaxIdleConns int           `yaml:"max_idle_conns"`
	TxTimeout    time.Duration `yaml:"tx_timeout"`
}

// RedisConfig configures the optional category cache.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
}

// Kafka configures domain event publishing. No brokers disables it.
type Kafka struct {
	Brokers           []string `yaml:"brokers"`
	Topic             string   `yaml:"topic"`
	Partitions        int32    `yaml:"partitions"`
	ReplicationFactor int16    `yaml:"replication_factor"`
}

// Outbox configures the publishing worker.
type Outbox struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
}

// Paging bounds collection page sizes.
type Paging struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// Auth enables bearer-token checks when SigningKey is set.
type Auth struct {
	SigningKey    string `yaml:"signing_key"`
	RequiredScope string `yaml:"required_scope"`
	Issuer        string `yaml:"issuer"`
}

// Log selects level and output format.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Database: Database{
			MaxOpenConns: 20,
			MaxIdleConns: 5,
			TxTimeout:    5 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  500 * time.Millisecond,
			WriteTimeout: 500 * time.Millisecond,
			CacheTTL:     5 * time.Minute,
		},
		Kafka: Kafka{
			Topic:             "accounting.events",
			Partitions:        3,
			ReplicationFactor: 1,
		},
		Outbox: Outbox{
			PollInterval: time.Second,
			BatchSize:    100,
		},
		Paging: Paging{
			DefaultPageSize: 200,
			MaxPageSize:     1000,
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// ACCOUNTING_CONFIG if set, then environment variables.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("ACCOUNTING_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString(getenv, "ACCOUNTING_ADDR", &c.Server.Addr)
	setString(getenv, "PUBLIC_BASE_URL", &c.Server.PublicBaseURL)
	setString(getenv, "DATABASE_URL", &c.Database.URL)
	setString(getenv, "REDIS_URL", &c.Redis.URL)
	setString(getenv, "KAFKA_TOPIC", &c.Kafka.Topic)
	setString(getenv, "JWT_SIGNING_KEY", &c.Auth.SigningKey)
	setString(getenv, "REQUIRED_SCOPE", &c.Auth.RequiredScope)
	setString(getenv, "JWT_ISSUER", &c.Auth.Issuer)
	setString(getenv, "LOG_LEVEL", &c.Log.Level)
	setString(getenv, "LOG_FORMAT", &c.Log.Format)

	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = platformstrings.SplitList(v, ",")
	}

	var err error
	set := func(e error) {
		if err == nil {
			err = e
		}
	}
	set(setBool(getenv, "DATABASE_MIGRATE", &c.Database.Migrate))
	set(setInt(getenv, "DATABASE_MAX_OPEN_CONNS", &c.Database.MaxOpenConns))
	set(setDuration(getenv, "TX_TIMEOUT", &c.Database.TxTimeout))
	set(setInt(getenv, "REDIS_POOL_SIZE", &c.Redis.PoolSize))
	set(setDuration(getenv, "CATEGORY_CACHE_TTL", &c.Redis.CacheTTL))
	set(setDuration(getenv, "OUTBOX_POLL_INTERVAL", &c.Outbox.PollInterval))
	set(setInt(getenv, "OUTBOX_BATCH_SIZE", &c.Outbox.BatchSize))
	set(setInt(getenv, "DEFAULT_PAGE_SIZE", &c.Paging.DefaultPageSize))
	set(setInt(getenv, "MAX_PAGE_SIZE", &c.Paging.MaxPageSize))
	set(setDuration(getenv, "SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout))
	return err
}

// Validate rejects settings the process cannot run with.
func (c Config) Validate() error {
	if c.Paging.DefaultPageSize < 1 || c.Paging.MaxPageSize < 1 {
		return fmt.Errorf("page sizes must be positive")
	}
	if c.Paging.DefaultPageSize > c.Paging.MaxPageSize {
		return fmt.Errorf("default page size %d exceeds max page size %d", c.Paging.DefaultPageSize, c.Paging.MaxPageSize)
	}
	if c.Server.PublicBaseURL != "" {
		if _, err := c.Server.PublicBase(); err != nil {
			return err
		}
	}
	if c.Outbox.BatchSize < 1 {
		return fmt.Errorf("outbox batch size must be positive")
	}
	return nil
}

// PublicBase parses PublicBaseURL. It returns nil when unset.
func (s Server) PublicBase() (*url.URL, error) {
	if s.PublicBaseURL == "" {
		return nil, nil
	}
	u, err := url.Parse(s.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse public base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("public base url %q must be absolute", s.PublicBaseURL)
	}
	return u, nil
}

// KafkaEnabled reports whether domain events are published.
func (c Config) KafkaEnabled() bool {
	return len(c.Kafka.Brokers) > 0
}

func setString(getenv func(string) string, key string, dst *string) {
	if v := getenv(key); v != "" {
		*dst = v
	}
}

func setInt(getenv func(string) string, key string, dst *int) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(getenv func(string) string, key string, dst *bool) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(getenv func(string) string, key string, dst *time.Duration) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

