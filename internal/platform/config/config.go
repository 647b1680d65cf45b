// Package config loads daemon settings from an optional TOML file overlaid
// with REGISTRY_* environment variables. Environment values win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	platformstrings "sns/pkg/platform/strings"
)

type Config struct {
	Server   Server   `toml:"server"`
	Database Database `toml:"database"`
	Redis    Redis    `toml:"redis"`
	Kafka    Kafka    `toml:"kafka"`
	NATS     NATS     `toml:"nats"`
	Outbox   Outbox   `toml:"outbox"`
	Genesis  Genesis  `toml:"genesis"`
	Registry Registry `toml:"registry"`
	Log      Log      `toml:"log"`
	Snapshot Snapshot `toml:"snapshot"`
}

// Server is the operational HTTP listener (health, readiness, metrics).
type Server struct {
	Addr string `toml:"addr"` // REGISTRY_ADDR
}

// Database selects the substrate. An empty URL runs the in-memory store.
type Database struct {
	URL string `toml:"url"` // REGISTRY_DATABASE_URL
}

type Redis struct {
	URL          string        `toml:"url"` // REGISTRY_REDIS_URL (empty = in-process cache)
	PoolSize     int           `toml:"pool_size"`
	MinIdleConns int           `toml:"min_idle_conns"`
	DialTimeout  time.Duration `toml:"dial_timeout"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

type Kafka struct {
	Brokers []string `toml:"brokers"` // REGISTRY_KAFKA_BROKERS, comma separated
	Topic   string   `toml:"topic"`   // REGISTRY_KAFKA_TOPIC
}

type NATS struct {
	URL string `toml:"url"` // REGISTRY_NATS_URL
}

type Outbox struct {
	Interval  time.Duration `toml:"interval"` // REGISTRY_OUTBOX_INTERVAL
	BatchSize int           `toml:"batch_size"`
}

// Genesis describes the registry config created on first start. Identities
// are hex addresses.
type Genesis struct {
	Admin        string `toml:"admin"`          // REGISTRY_ADMIN
	Treasury     string `toml:"treasury"`       // REGISTRY_TREASURY
	Deployer     string `toml:"deployer"`       // REGISTRY_DEPLOYER (default admin)
	PricePerChar uint64 `toml:"price_per_char"` // REGISTRY_PRICE_PER_CHAR
	FundDeployer bool   `toml:"fund_deployer"`  // REGISTRY_FUND_DEPLOYER, dev only
}

type Registry struct {
	MinimumReserve uint64        `toml:"minimum_reserve"` // REGISTRY_MIN_RESERVE (0 = rent-exempt default)
	CacheTTL       time.Duration `toml:"cache_ttl"`       // REGISTRY_CACHE_TTL
}

type Log struct {
	Level  string `toml:"level"`  // REGISTRY_LOG_LEVEL
	Format string `toml:"format"` // REGISTRY_LOG_FORMAT (json|text)
}

type Snapshot struct {
	S3Bucket   string `toml:"s3_bucket"`   // REGISTRY_SNAPSHOT_S3_BUCKET
	S3Region   string `toml:"s3_region"`   // REGISTRY_SNAPSHOT_S3_REGION
	S3Endpoint string `toml:"s3_endpoint"` // REGISTRY_SNAPSHOT_S3_ENDPOINT
	S3Key      string `toml:"s3_key"`      // REGISTRY_SNAPSHOT_S3_KEY
	Path       string `toml:"path"`        // REGISTRY_SNAPSHOT_PATH
}

func defaults() *Config {
	return &Config{
		Server: Server{Addr: ":8080"},
		Redis: Redis{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka:    Kafka{Topic: "sns.registry.events"},
		Outbox:   Outbox{Interval: time.Second, BatchSize: 100},
		Registry: Registry{CacheTTL: 30 * time.Second},
		Log:      Log{Level: "info", Format: "json"},
		Snapshot: Snapshot{S3Region: "us-east-1", S3Key: "sns/registry.jsonl"},
	}
}

// Load reads REGISTRY_CONFIG_FILE when set, then applies the environment.
func Load() (*Config, error) {
	c := defaults()
	if path := os.Getenv("REGISTRY_CONFIG_FILE"); path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if c.Genesis.Deployer == "" {
		c.Genesis.Deployer = c.Genesis.Admin
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, "REGISTRY_ADDR")
	setString(&c.Database.URL, "REGISTRY_DATABASE_URL")
	setString(&c.Redis.URL, "REGISTRY_REDIS_URL")
	setString(&c.Kafka.Topic, "REGISTRY_KAFKA_TOPIC")
	setString(&c.NATS.URL, "REGISTRY_NATS_URL")
	setString(&c.Genesis.Admin, "REGISTRY_ADMIN")
	setString(&c.Genesis.Treasury, "REGISTRY_TREASURY")
	setString(&c.Genesis.Deployer, "REGISTRY_DEPLOYER")
	setString(&c.Log.Level, "REGISTRY_LOG_LEVEL")
	setString(&c.Log.Format, "REGISTRY_LOG_FORMAT")
	setString(&c.Snapshot.S3Bucket, "REGISTRY_SNAPSHOT_S3_BUCKET")
	setString(&c.Snapshot.S3Region, "REGISTRY_SNAPSHOT_S3_REGION")
	setString(&c.Snapshot.S3Endpoint, "REGISTRY_SNAPSHOT_S3_ENDPOINT")
	setString(&c.Snapshot.S3Key, "REGISTRY_SNAPSHOT_S3_KEY")
	setString(&c.Snapshot.Path, "REGISTRY_SNAPSHOT_PATH")

	if v := os.Getenv("REGISTRY_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = platformstrings.SplitList(v, ",")
	}
	if err := setUint(&c.Genesis.PricePerChar, "REGISTRY_PRICE_PER_CHAR"); err != nil {
		return err
	}
	if err := setUint(&c.Registry.MinimumReserve, "REGISTRY_MIN_RESERVE"); err != nil {
		return err
	}
	if err := setDuration(&c.Outbox.Interval, "REGISTRY_OUTBOX_INTERVAL"); err != nil {
		return err
	}
	if err := setDuration(&c.Registry.CacheTTL, "REGISTRY_CACHE_TTL"); err != nil {
		return err
	}
	if v := os.Getenv("REGISTRY_FUND_DEPLOYER"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REGISTRY_FUND_DEPLOYER: %w", err)
		}
		c.Genesis.FundDeployer = b
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setUint(dst *uint64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
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
