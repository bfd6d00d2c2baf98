package config

import (
	"testing"
	"time"

	"flowdash/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATABASE_URL", "MAX_UPLOAD_MB", "SESSION_TTL", "DEFAULT_RENDERER",
		"SANKEY_UNIT", "SANKEY_UNIT_DIVISOR", "FILTER_COLUMNS", "DATE_DAY_FIRST"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, int64(50*1024*1024), cfg.Upload.MaxBytes())
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, "d3", cfg.Sankey.DefaultRenderer)
	assert.Equal(t, "MT", cfg.Sankey.Unit)
	assert.Equal(t, 100000.0, cfg.Sankey.UnitDivisor)
	assert.Equal(t, []string{"Plant", "Material"}, cfg.Sankey.FilterColumns)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://localhost/flowdash")
	t.Setenv("FILTER_COLUMNS", " Region , Fuel ,")
	t.Setenv("DEFAULT_RENDERER", "echarts")
	t.Setenv("SESSION_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, []string{"Region", "Fuel"}, cfg.Sankey.FilterColumns)
	assert.Equal(t, "echarts", cfg.Sankey.DefaultRenderer)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown renderer", "DEFAULT_RENDERER", "plotly"},
		{"single filter column", "FILTER_COLUMNS", "Plant"},
		{"zero divisor", "SANKEY_UNIT_DIVISOR", "0"},
		{"negative upload cap", "MAX_UPLOAD_MB", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.CodeConfigInvalid))
		})
	}
}
