package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := NewDefault()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 5, cfg.Crawler.MaxPages)
	assert.Equal(t, 10*time.Second, cfg.Network.NavigationTimeout)
	require.Len(t, cfg.Executor.Viewports, 2)

	desktop, ok := cfg.Viewport("desktop")
	require.True(t, ok)
	assert.Equal(t, int64(1280), desktop.Width)
	assert.Equal(t, int64(720), desktop.Height)
	assert.False(t, desktop.Mobile)

	mobile, ok := cfg.Viewport("mobile")
	require.True(t, ok)
	assert.Equal(t, int64(375), mobile.Width)
	assert.Equal(t, int64(667), mobile.Height)
	assert.True(t, mobile.Mobile)
	assert.True(t, mobile.Touch)
	assert.NotEmpty(t, mobile.UserAgent)
}

func TestValidateRejectsBadValues(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "zero max pages",
			mutate: func(c *Config) { c.Crawler.MaxPages = 0 },
			errMsg: "max_pages",
		},
		{
			name:   "negative rate",
			mutate: func(c *Config) { c.Crawler.RatePerSecond = -1 },
			errMsg: "rate_per_second",
		},
		{
			name:   "no viewports",
			mutate: func(c *Config) { c.Executor.Viewports = nil },
			errMsg: "viewports",
		},
		{
			name: "unnamed viewport",
			mutate: func(c *Config) {
				c.Executor.Viewports = []ViewportProfile{{Width: 100, Height: 100}}
			},
			errMsg: "named",
		},
		{
			name: "duplicate viewport",
			mutate: func(c *Config) {
				c.Executor.Viewports = []ViewportProfile{
					{Name: "desktop", Width: 1, Height: 1},
					{Name: "desktop", Width: 2, Height: 2},
				}
			},
			errMsg: "twice",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewDefault()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestResolveViewportsPreservesOrder(t *testing.T) {
	cfg := NewDefault()

	profiles, unknown := cfg.ResolveViewports([]string{"mobile", "tv", "desktop"})
	require.Len(t, profiles, 2)
	assert.Equal(t, "mobile", profiles[0].Name)
	assert.Equal(t, "desktop", profiles[1].Name)
	assert.Equal(t, []string{"tv"}, unknown)
}

func TestConfigFileOverridesDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("crawler.max_pages", 12)
	v.Set("executor.max_duration", "90s")

	cfg, err := NewFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Crawler.MaxPages)
	assert.Equal(t, 90*time.Second, cfg.Executor.MaxDuration)
}
