package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
session:
  store: memory
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.4, cfg.Confidence.Reject)
	assert.Equal(t, 0.6, cfg.Confidence.Degraded)
	assert.Equal(t, 0.8, cfg.Confidence.Acceptable)
	assert.Equal(t, 0.85, cfg.ManualInput.BaziConfidence)
	assert.Equal(t, 0.90, cfg.ManualInput.FengshuiConfidence)
	assert.Equal(t, 50, cfg.Session.MaxMessages)
	assert.Equal(t, 15*time.Second, cfg.Analysis.Timeout())
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout())
	assert.False(t, cfg.LLM.Enabled())
}

func TestLoad_AnalyzersMap(t *testing.T) {
	path := writeConfig(t, `
session:
  store: memory
analysis:
  timeout_seconds: 3
  analyzers:
    bazi:
      base_url: http://bazi.local
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://bazi.local", cfg.Analysis.Analyzers["bazi"].BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Analysis.Timeout())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("XUANJI_SESSION_STORE", "memory")
	path := writeConfig(t, `
session:
  store: redis
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Session.Store)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Confidence:  ConfidenceConfig{Reject: 0.4, Degraded: 0.6, Acceptable: 0.8},
			ManualInput: ManualInputConfig{BaziConfidence: 0.85, FengshuiConfidence: 0.9, CompassConfidence: 0.9},
			Session:     SessionConfig{Store: "memory", MaxMessages: 10},
			Analysis:    AnalysisConfig{TimeoutSeconds: 5},
		}
	}

	t.Run("valid", func(t *testing.T) {
		cfg := base()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("non increasing thresholds", func(t *testing.T) {
		cfg := base()
		cfg.Confidence.Degraded = 0.3
		var cerr *ConfigurationError
		require.True(t, errors.As(cfg.Validate(), &cerr))
		assert.Equal(t, "confidence", cerr.Key)
	})

	t.Run("redis store without address", func(t *testing.T) {
		cfg := base()
		cfg.Session.Store = "redis"
		var cerr *ConfigurationError
		require.True(t, errors.As(cfg.Validate(), &cerr))
		assert.Equal(t, "database.redis.addr", cerr.Key)
	})

	t.Run("unknown store", func(t *testing.T) {
		cfg := base()
		cfg.Session.Store = "etcd"
		var cerr *ConfigurationError
		require.True(t, errors.As(cfg.Validate(), &cerr))
		assert.Equal(t, "session.store", cerr.Key)
	})

	t.Run("kafka enabled without brokers", func(t *testing.T) {
		cfg := base()
		cfg.Kafka.Enabled = true
		cfg.Kafka.Topic = "t"
		var cerr *ConfigurationError
		require.True(t, errors.As(cfg.Validate(), &cerr))
		assert.Equal(t, "kafka", cerr.Key)
	})

	t.Run("manual confidence out of range", func(t *testing.T) {
		cfg := base()
		cfg.ManualInput.CompassConfidence = 1.2
		var cerr *ConfigurationError
		require.True(t, errors.As(cfg.Validate(), &cerr))
		assert.Equal(t, "manual_input.compass_confidence", cerr.Key)
	})
}
