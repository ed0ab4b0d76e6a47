package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineConfig struct {
	URL      string        `env:"PS_TEST_ES_URL" envDefault:"http://localhost:9200"`
	Index    string        `env:"PS_TEST_ES_INDEX" envDefault:"products"`
	Timeout  time.Duration `env:"PS_TEST_ES_TIMEOUT" envDefault:"5s"`
	Breaker  bool          `env:"PS_TEST_ES_BREAKER"`
	Brokers  []string      `env:"PS_TEST_BROKERS" envSeparator:","`
	MaxConns int           `env:"PS_TEST_MAX_CONNS" envDefault:"100"`
}

type secretConfig struct {
	Password string `env:"PS_TEST_ES_PASSWORD,required"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg engineConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, engineConfig{
		URL:      "http://localhost:9200",
		Index:    "products",
		Timeout:  5 * time.Second,
		MaxConns: 100,
	}, cfg)
}

func TestLoad_ProcessEnvironment(t *testing.T) {
	t.Setenv("PS_TEST_ES_INDEX", "products_v2")
	t.Setenv("PS_TEST_ES_TIMEOUT", "250ms")
	t.Setenv("PS_TEST_ES_BREAKER", "true")
	t.Setenv("PS_TEST_BROKERS", "kafka-1:9092,kafka-2:9092")

	var cfg engineConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "products_v2", cfg.Index)
	assert.Equal(t, 250*time.Millisecond, cfg.Timeout)
	assert.True(t, cfg.Breaker)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
}

func TestLoadFrom(t *testing.T) {
	t.Setenv("PS_TEST_ES_INDEX", "from-process")

	var cfg engineConfig
	require.NoError(t, LoadFrom(&cfg, map[string]string{"PS_TEST_ES_URL": "http://es.search.svc:9200"}))

	assert.Equal(t, "http://es.search.svc:9200", cfg.URL)
	assert.Equal(t, "products", cfg.Index, "process environment must be ignored")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
		cfg     any
	}{
		{"required missing", nil, &secretConfig{}},
		{"bad duration", map[string]string{"PS_TEST_ES_TIMEOUT": "soon"}, &engineConfig{}},
		{"bad int", map[string]string{"PS_TEST_MAX_CONNS": "many"}, &engineConfig{}},
		{"not a pointer", nil, engineConfig{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := LoadFrom(tt.cfg, tt.environ)

			require.Error(t, err)
			assert.Contains(t, err.Error(), "parse config")
		})
	}
}

func TestLoad_RequiredSatisfied(t *testing.T) {
	var cfg secretConfig
	require.NoError(t, LoadFrom(&cfg, map[string]string{"PS_TEST_ES_PASSWORD": "changeme"}))
	assert.Equal(t, "changeme", cfg.Password)
}

func TestLoad_WrapsEnvError(t *testing.T) {
	err := LoadFrom(&secretConfig{}, nil)

	var agg env.AggregateError
	require.ErrorAs(t, err, &agg)
	require.Len(t, agg.Errors, 1)
	assert.Contains(t, agg.Errors[0].Error(), "PS_TEST_ES_PASSWORD")
}
