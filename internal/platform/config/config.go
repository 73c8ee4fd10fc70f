// Package config loads the static server configuration from an optional YAML
// file, SMPD_* environment variables and built-in defaults, in that order of
// precedence from lowest to highest: defaults, file, environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"smpd/internal/domain"
	"smpd/internal/identifier"
	"smpd/internal/storage"
	"smpd/pkg/platform/lists"
)

const EnvPrefix = "SMPD"

type Config struct {
	Server      Server      `mapstructure:"server"`
	Log         Log         `mapstructure:"log"`
	Storage     Storage     `mapstructure:"storage"`
	Identifiers Identifiers `mapstructure:"identifiers"`
	SML         SML         `mapstructure:"sml"`
	Settings    Settings    `mapstructure:"settings"`
	Kafka       Kafka       `mapstructure:"kafka"`
	Tracing     Tracing     `mapstructure:"tracing"`
}

type Server struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Storage struct {
	Kind     string   `mapstructure:"kind"`
	File     File     `mapstructure:"file"`
	Postgres Postgres `mapstructure:"postgres"`
	Redis    Redis    `mapstructure:"redis"`
	Cache    Cache    `mapstructure:"cache"`
}

type File struct {
	Dir string `mapstructure:"dir"`
}

type Postgres struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// Redis mirrors what the go-redis client accepts on top of the URL.
type Redis struct {
	URL          string        `mapstructure:"url"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type Cache struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// Identifiers lists the schemes whose values compare case-insensitively.
type Identifiers struct {
	ParticipantSchemes  []string `mapstructure:"participant_schemes"`
	DocumentTypeSchemes []string `mapstructure:"document_type_schemes"`
	ProcessSchemes      []string `mapstructure:"process_schemes"`
}

type SML struct {
	SMPID          string        `mapstructure:"smp_id"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	CertFile       string        `mapstructure:"cert_file"`
	KeyFile        string        `mapstructure:"key_file"`
	CAFile         string        `mapstructure:"ca_file"`
}

// Settings seeds the runtime settings on first start only.
type Settings struct {
	RESTWritableAPIDisabled        bool   `mapstructure:"rest_writable_api_disabled"`
	DirectoryIntegrationEnabled    bool   `mapstructure:"directory_integration_enabled"`
	DirectoryIntegrationRequired   bool   `mapstructure:"directory_integration_required"`
	DirectoryIntegrationAutoUpdate bool   `mapstructure:"directory_integration_auto_update"`
	DirectoryHostName              string `mapstructure:"directory_host_name"`
	SMLRequired                    bool   `mapstructure:"sml_required"`
}

type Kafka struct {
	Enabled           bool          `mapstructure:"enabled"`
	Brokers           []string      `mapstructure:"brokers"`
	Topic             string        `mapstructure:"topic"`
	ClientID          string        `mapstructure:"client_id"`
	Partitions        int32         `mapstructure:"partitions"`
	ReplicationFactor int16         `mapstructure:"replication_factor"`
	ProduceTimeout    time.Duration `mapstructure:"produce_timeout"`
}

type Tracing struct {
	Enabled      bool    `mapstructure:"enabled"`
	Exporter     string  `mapstructure:"exporter"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	ServiceName  string  `mapstructure:"service_name"`
}

// Defaults is the configuration used when nothing else is set.
func Defaults() Config {
	return Config{
		Server: Server{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Log:    Log{Level: "info", Format: "json"},
		Storage: Storage{
			Kind: string(storage.KindMemory),
			File: File{Dir: "data"},
			Postgres: Postgres{
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Minute,
				Migrate:         true,
			},
			Redis: Redis{
				KeyPrefix:    "smpd:",
				PoolSize:     10,
				MinIdleConns: 2,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
			Cache: Cache{Enabled: false, TTL: 60 * time.Second},
		},
		Identifiers: Identifiers{
			ParticipantSchemes: identifier.DefaultParticipantSchemes,
			ProcessSchemes:     identifier.DefaultProcessSchemes,
		},
		SML: SML{ConnectTimeout: 5 * time.Second, RequestTimeout: 30 * time.Second},
		Settings: Settings{
			RESTWritableAPIDisabled:        false,
			DirectoryIntegrationEnabled:    true,
			DirectoryIntegrationRequired:   true,
			DirectoryIntegrationAutoUpdate: true,
			DirectoryHostName:              "https://directory.peppol.eu",
			SMLRequired:                    true,
		},
		Kafka: Kafka{
			Topic:             "smp-changes",
			ClientID:          "smpd",
			Partitions:        3,
			ReplicationFactor: 1,
			ProduceTimeout:    5 * time.Second,
		},
		Tracing: Tracing{
			Exporter:     "none",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
			ServiceName:  "smpd",
		},
	}
}

// InitialSettings converts the first-start seed to runtime settings. SML
// sync always starts disabled.
func (c Config) InitialSettings() domain.Settings {
	return domain.Settings{
		RESTWritableAPIDisabled:        c.Settings.RESTWritableAPIDisabled,
		DirectoryIntegrationEnabled:    c.Settings.DirectoryIntegrationEnabled,
		DirectoryIntegrationRequired:   c.Settings.DirectoryIntegrationRequired,
		DirectoryIntegrationAutoUpdate: c.Settings.DirectoryIntegrationAutoUpdate,
		DirectoryHostName:              c.Settings.DirectoryHostName,
		SMLRequired:                    c.Settings.SMLRequired,
	}
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("storage.kind", d.Storage.Kind)
	v.SetDefault("storage.file.dir", d.Storage.File.Dir)
	v.SetDefault("storage.postgres.dsn", d.Storage.Postgres.DSN)
	v.SetDefault("storage.postgres.max_open_conns", d.Storage.Postgres.MaxOpenConns)
	v.SetDefault("storage.postgres.max_idle_conns", d.Storage.Postgres.MaxIdleConns)
	v.SetDefault("storage.postgres.conn_max_lifetime", d.Storage.Postgres.ConnMaxLifetime)
	v.SetDefault("storage.postgres.migrate", d.Storage.Postgres.Migrate)
	v.SetDefault("storage.redis.url", d.Storage.Redis.URL)
	v.SetDefault("storage.redis.key_prefix", d.Storage.Redis.KeyPrefix)
	v.SetDefault("storage.redis.pool_size", d.Storage.Redis.PoolSize)
	v.SetDefault("storage.redis.min_idle_conns", d.Storage.Redis.MinIdleConns)
	v.SetDefault("storage.redis.dial_timeout", d.Storage.Redis.DialTimeout)
	v.SetDefault("storage.redis.read_timeout", d.Storage.Redis.ReadTimeout)
	v.SetDefault("storage.redis.write_timeout", d.Storage.Redis.WriteTimeout)
	v.SetDefault("storage.cache.enabled", d.Storage.Cache.Enabled)
	v.SetDefault("storage.cache.ttl", d.Storage.Cache.TTL)

	v.SetDefault("identifiers.participant_schemes", d.Identifiers.ParticipantSchemes)
	v.SetDefault("identifiers.document_type_schemes", d.Identifiers.DocumentTypeSchemes)
	v.SetDefault("identifiers.process_schemes", d.Identifiers.ProcessSchemes)

	v.SetDefault("sml.smp_id", d.SML.SMPID)
	v.SetDefault("sml.connect_timeout", d.SML.ConnectTimeout)
	v.SetDefault("sml.request_timeout", d.SML.RequestTimeout)
	v.SetDefault("sml.cert_file", d.SML.CertFile)
	v.SetDefault("sml.key_file", d.SML.KeyFile)
	v.SetDefault("sml.ca_file", d.SML.CAFile)

	v.SetDefault("settings.rest_writable_api_disabled", d.Settings.RESTWritableAPIDisabled)
	v.SetDefault("settings.directory_integration_enabled", d.Settings.DirectoryIntegrationEnabled)
	v.SetDefault("settings.directory_integration_required", d.Settings.DirectoryIntegrationRequired)
	v.SetDefault("settings.directory_integration_auto_update", d.Settings.DirectoryIntegrationAutoUpdate)
	v.SetDefault("settings.directory_host_name", d.Settings.DirectoryHostName)
	v.SetDefault("settings.sml_required", d.Settings.SMLRequired)

	v.SetDefault("kafka.enabled", d.Kafka.Enabled)
	v.SetDefault("kafka.brokers", d.Kafka.Brokers)
	v.SetDefault("kafka.topic", d.Kafka.Topic)
	v.SetDefault("kafka.client_id", d.Kafka.ClientID)
	v.SetDefault("kafka.partitions", d.Kafka.Partitions)
	v.SetDefault("kafka.replication_factor", d.Kafka.ReplicationFactor)
	v.SetDefault("kafka.produce_timeout", d.Kafka.ProduceTimeout)

	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

// Load reads path (optional) and the environment on top of Defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.Identifiers.ParticipantSchemes = lists.CleanFold(cfg.Identifiers.ParticipantSchemes)
	cfg.Identifiers.DocumentTypeSchemes = lists.CleanFold(cfg.Identifiers.DocumentTypeSchemes)
	cfg.Identifiers.ProcessSchemes = lists.CleanFold(cfg.Identifiers.ProcessSchemes)
	cfg.Kafka.Brokers = lists.Clean(cfg.Kafka.Brokers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the combinations Load cannot express as defaults.
func (c Config) Validate() error {
	kind, err := storage.ParseKind(c.Storage.Kind)
	if err != nil {
		return err
	}
	var errs []error
	switch kind {
	case storage.KindFile:
		if c.Storage.File.Dir == "" {
			errs = append(errs, errors.New("storage.file.dir is required for the file backend"))
		}
	case storage.KindSQL:
		if c.Storage.Postgres.DSN == "" {
			errs = append(errs, errors.New("storage.postgres.dsn is required for the sql backend"))
		}
	case storage.KindRedis:
		if c.Storage.Redis.URL == "" {
			errs = append(errs, errors.New("storage.redis.url is required for the redis backend"))
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	return errors.Join(errs...)
}
