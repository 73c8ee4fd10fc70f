package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	d := Defaults()
	assert.Equal(t, d.Server, cfg.Server)
	assert.Equal(t, d.Log, cfg.Log)
	assert.Equal(t, d.Storage.Kind, cfg.Storage.Kind)
	assert.Equal(t, d.Storage.Redis, cfg.Storage.Redis)
	assert.Equal(t, d.Storage.Cache, cfg.Storage.Cache)
	assert.Equal(t, d.SML, cfg.SML)
	assert.Equal(t, d.Settings, cfg.Settings)
	assert.Equal(t, d.Tracing, cfg.Tracing)
	assert.ElementsMatch(t, d.Identifiers.ParticipantSchemes, cfg.Identifiers.ParticipantSchemes)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smpd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
storage:
  kind: postgres
  postgres:
    dsn: postgres://smp@localhost/smp
  cache:
    enabled: true
    ttl: 30s
sml:
  smp_id: SMP-TEST
`), 0o600))
	t.Setenv("SMPD_SML_REQUEST_TIMEOUT", "45s")
	t.Setenv("SMPD_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres", cfg.Storage.Kind)
	assert.True(t, cfg.Storage.Cache.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Storage.Cache.TTL)
	assert.Equal(t, "SMP-TEST", cfg.SML.SMPID)
	assert.Equal(t, 45*time.Second, cfg.SML.RequestTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 10, cfg.Storage.Postgres.MaxOpenConns, "untouched keys keep their defaults")
}

func TestLoadCleansLists(t *testing.T) {
	t.Setenv("SMPD_KAFKA_ENABLED", "true")
	t.Setenv("SMPD_KAFKA_BROKERS", " kafka-1:9092,kafka-1:9092, kafka-2:9092")
	t.Setenv("SMPD_IDENTIFIERS_PROCESS_SCHEMES", "CENBII-PROCID-UBL, cenbii-procid-ubl")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"cenbii-procid-ubl"}, cfg.Identifiers.ProcessSchemes)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"unknown kind":      func(c *Config) { c.Storage.Kind = "xml" },
		"sql without dsn":   func(c *Config) { c.Storage.Kind = "sql" },
		"redis without url": func(c *Config) { c.Storage.Kind = "redis" },
		"file without dir": func(c *Config) {
			c.Storage.Kind = "file"
			c.Storage.File.Dir = ""
		},
		"kafka without brokers": func(c *Config) { c.Kafka.Enabled = true },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestInitialSettingsNeverEnablesSML(t *testing.T) {
	s := Defaults().InitialSettings()
	assert.False(t, s.SMLEnabled)
	assert.Empty(t, s.SMLInfoID)
	assert.True(t, s.SMLRequired)
	assert.Equal(t, "https://directory.peppol.eu", s.DirectoryHostName)
}
