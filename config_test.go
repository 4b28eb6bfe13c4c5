package loom

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	assert.NilError(t, err)
	assert.Equal(t, cfg.LogLevel, "info")
	assert.Equal(t, cfg.LogPretty, false)
	assert.Equal(t, cfg.InspectorEnabled, false)
	assert.Equal(t, cfg.InspectorPort, "7171")
	assert.Equal(t, cfg.StatsdAddress, "")
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LOOM_LOG_LEVEL", "debug")
	t.Setenv("LOOM_LOG_PRETTY", "true")
	t.Setenv("LOOM_INSPECTOR_ENABLED", "true")
	t.Setenv("LOOM_INSPECTOR_PORT", "9999")
	t.Setenv("LOOM_STATSD_ADDRESS", "localhost:8125")

	cfg, err := LoadConfig()
	assert.NilError(t, err)
	assert.Equal(t, cfg.LogLevel, "debug")
	assert.Equal(t, cfg.LogPretty, true)
	assert.Equal(t, cfg.InspectorEnabled, true)
	assert.Equal(t, cfg.InspectorPort, "9999")
	assert.Equal(t, cfg.StatsdAddress, "localhost:8125")
}

func TestLoadConfigRejectsBadLogLevel(t *testing.T) {
	t.Setenv("LOOM_LOG_LEVEL", "shouting")

	_, err := LoadConfig()
	assert.Assert(t, err != nil)
}

func TestStatsdTagList(t *testing.T) {
	cfg := defaultConfig()
	assert.Assert(t, cfg.statsdTagList() == nil)

	cfg.StatsdTags = "env:dev, app:editor ,,"
	assert.DeepEqual(t, cfg.statsdTagList(), []string{"env:dev", "app:editor"})
}

func TestValidateRejectsInspectorWithoutPort(t *testing.T) {
	cfg := defaultConfig()
	cfg.InspectorEnabled = true
	cfg.InspectorPort = ""
	assert.Assert(t, cfg.Validate() != nil)
}
