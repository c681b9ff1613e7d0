package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigAppliesDefaults(t *testing.T) {
	t.Parallel()
	// --- given ---
	yml := `
listen_port: 8080
`

	// --- when ---
	cfg, err := ParseConfig([]byte(yml))

	// --- then ---
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.ListenPort)
	assert.Equal(t, time.UTC, cfg.Timezone)
	assert.Equal(t, time.Minute, cfg.PollInterval)
	assert.Equal(t, 5*time.Second, cfg.ListPushInterval)
	assert.Equal(t, time.Minute, cfg.TrendPushInterval)
	assert.Equal(t, time.Second, cfg.PlaybackPushInterval)
	assert.Equal(t, 5*time.Minute, cfg.PlaybackStep)
	assert.Equal(t, 9*time.Hour+30*time.Minute, cfg.SessionOpen)
	assert.Equal(t, 15*time.Hour, cfg.SessionClose)
}

func TestParseConfigReadsEverything(t *testing.T) {
	t.Parallel()
	// --- given ---
	yml := `
listen_port: 9000
timezone: Asia/Shanghai
log_level: debug
poll_interval: 30s
list_push_interval: 2s
trend_push_interval: 45s
playback_push_interval: 500ms
playback_step: 1m
session_open: 9h
session_close: 16h
sina_base_url: http://sina.test
tushare_host: http://tushare.test
tushare_token: secret
baostock_command: ["python3", "fetcher.py"]
`

	// --- when ---
	cfg, err := ParseConfig([]byte(yml))

	// --- then ---
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.ListenPort)
	assert.Equal(t, "Asia/Shanghai", cfg.Timezone.String())
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.ListPushInterval)
	assert.Equal(t, 45*time.Second, cfg.TrendPushInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.PlaybackPushInterval)
	assert.Equal(t, time.Minute, cfg.PlaybackStep)
	assert.Equal(t, 9*time.Hour, cfg.SessionOpen)
	assert.Equal(t, 16*time.Hour, cfg.SessionClose)
	assert.Equal(t, "http://sina.test", cfg.SinaBaseURL)
	assert.Equal(t, "http://tushare.test", cfg.TushareHost)
	assert.Equal(t, "secret", cfg.TushareToken)
	assert.Equal(t, []string{"python3", "fetcher.py"}, cfg.BaoStockCommand)
}

func TestParseConfigRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		yml  string
	}{
		{"not yaml", `:[`},
		{"missing listen port", `timezone: UTC`},
		{"bad timezone", "listen_port: 8080\ntimezone: Mars/Olympus"},
		{"bad duration", "listen_port: 8080\npoll_interval: soon"},
		{"negative duration", "listen_port: 8080\npoll_interval: -5s"},
		{"session open after close", "listen_port: 8080\nsession_open: 16h\nsession_close: 9h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// --- when ---
			_, err := ParseConfig([]byte(tt.yml))

			// --- then ---
			assert.Error(t, err)
		})
	}
}
