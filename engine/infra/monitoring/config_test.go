package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compozy/arag/pkg/config"
)

func TestConfig_Validate(t *testing.T) {
	t.Run("Should accept the default path", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Validate())
	})

	cases := []struct {
		name string
		path string
		want string
	}{
		{"Should reject an empty path", "", "cannot be empty"},
		{"Should reject a relative path", "metrics", "must start with '/'"},
		{"Should reject paths under the api prefix", "/api/metrics", "cannot be under /api/"},
		{"Should reject query parameters", "/metrics?x=1", "query parameters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := (&Config{Enabled: true, Path: tc.path}).Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	t.Run("Should copy the monitoring section", func(t *testing.T) {
		cfg := FromAppConfig(&config.MonitoringConfig{Enabled: true, Path: "/prom"})
		assert.True(t, cfg.Enabled)
		assert.Equal(t, "/prom", cfg.Path)
	})

	t.Run("Should keep the default path when unset", func(t *testing.T) {
		cfg := FromAppConfig(&config.MonitoringConfig{Enabled: true})
		assert.Equal(t, "/metrics", cfg.Path)
		assert.False(t, FromAppConfig(nil).Enabled)
	})
}
