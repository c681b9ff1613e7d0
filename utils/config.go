package utils

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/quotepulse/quotepulse/utils/log"
)

// Config is the instance configuration, parsed from the YAML file given to
// `quotepulse start`.
type Config struct {
	ListenPort string
	Timezone   *time.Location

	// PollInterval is how often the live synchronizer pulls from upstream.
	PollInterval time.Duration
	// Default per-token push intervals; see TokenSettings.
	ListPushInterval     time.Duration
	TrendPushInterval    time.Duration
	PlaybackPushInterval time.Duration
	// PlaybackStep is the virtual time one playback tick advances by.
	PlaybackStep time.Duration

	// Trading session window as offsets from midnight.
	SessionOpen  time.Duration
	SessionClose time.Duration

	SinaBaseURL     string
	TushareHost     string
	TushareToken    string
	BaoStockCommand []string
}

// ParseConfig parses and validates the YAML configuration, applying
// defaults for everything optional.
func ParseConfig(data []byte) (*Config, error) {
	var aux struct {
		ListenPort           string   `yaml:"listen_port"`
		Timezone             string   `yaml:"timezone"`
		LogLevel             string   `yaml:"log_level"`
		PollInterval         string   `yaml:"poll_interval"`
		ListPushInterval     string   `yaml:"list_push_interval"`
		TrendPushInterval    string   `yaml:"trend_push_interval"`
		PlaybackPushInterval string   `yaml:"playback_push_interval"`
		PlaybackStep         string   `yaml:"playback_step"`
		SessionOpen          string   `yaml:"session_open"`
		SessionClose         string   `yaml:"session_close"`
		SinaBaseURL          string   `yaml:"sina_base_url"`
		TushareHost          string   `yaml:"tushare_host"`
		TushareToken         string   `yaml:"tushare_token"`
		BaoStockCommand      []string `yaml:"baostock_command"`
	}
	if err := yaml.Unmarshal(data, &aux); err != nil {
		return nil, err
	}

	m := &Config{}
	if aux.ListenPort == "" {
		return nil, errors.New("invalid listen port")
	}
	m.ListenPort = aux.ListenPort

	var err error
	// "" loads UTC, which is the default anyway.
	m.Timezone, err = time.LoadLocation(aux.Timezone)
	if err != nil {
		return nil, errors.Errorf("invalid timezone %q", aux.Timezone)
	}

	if aux.LogLevel != "" {
		switch strings.ToLower(aux.LogLevel) {
		case "fatal":
			log.SetLevel(log.FATAL)
		case "error":
			log.SetLevel(log.ERROR)
		case "warning":
			log.SetLevel(log.WARNING)
		case "debug":
			log.SetLevel(log.DEBUG)
		case "info":
			log.SetLevel(log.INFO)
		default:
			log.Warn("unknown log level %q, using info", aux.LogLevel)
		}
	}

	durations := []struct {
		name     string
		raw      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"poll_interval", aux.PollInterval, time.Minute, &m.PollInterval},
		{"list_push_interval", aux.ListPushInterval, 5 * time.Second, &m.ListPushInterval},
		{"trend_push_interval", aux.TrendPushInterval, time.Minute, &m.TrendPushInterval},
		{"playback_push_interval", aux.PlaybackPushInterval, time.Second, &m.PlaybackPushInterval},
		{"playback_step", aux.PlaybackStep, 5 * time.Minute, &m.PlaybackStep},
		{"session_open", aux.SessionOpen, 9*time.Hour + 30*time.Minute, &m.SessionOpen},
		{"session_close", aux.SessionClose, 15 * time.Hour, &m.SessionClose},
	}
	for _, d := range durations {
		if d.raw == "" {
			*d.dst = d.fallback
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil || v <= 0 {
			return nil, errors.Errorf("invalid %s %q", d.name, d.raw)
		}
		*d.dst = v
	}
	if m.SessionOpen >= m.SessionClose {
		return nil, errors.New("session_open must precede session_close")
	}

	m.SinaBaseURL = aux.SinaBaseURL
	m.TushareHost = aux.TushareHost
	m.TushareToken = aux.TushareToken
	m.BaoStockCommand = aux.BaoStockCommand
	return m, nil
}
