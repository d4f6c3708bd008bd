package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen       = "udp"
	defaultBindAddr     = ":7355"
	defaultJitterMs     = 150
	defaultMetricsAddr  = ":9355"
	defaultLateMs       = 500
	defaultWordSpaceGap = 200
)

// config is the receiver driver's YAML configuration, following the
// teacher's bridge.Config/LoadConfig split of a flat runtime struct and a
// nested yamlConfig decoding shape.
type config struct {
	Listen       string
	BindAddr     string
	Timestamped  bool
	Callsign     string
	JitterMs     time.Duration
	LateMs       time.Duration
	WordSpaceGap time.Duration
	MetricsAddr  string
	Debug        bool
}

type yamlConfig struct {
	Transport struct {
		Listen      string `yaml:"listen"`
		BindAddr    string `yaml:"bind_addr"`
		Timestamped bool   `yaml:"timestamped"`
	} `yaml:"transport"`
	Callsign string `yaml:"callsign"`
	Jitter   struct {
		BufferMs     int `yaml:"buffer_ms"`
		LateMs       int `yaml:"late_ms"`
		WordSpaceGap int `yaml:"word_space_gap_ms"`
	} `yaml:"jitter"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Debug bool `yaml:"debug"`
}

func loadConfig(path string) (config, error) {
	cfg := config{
		Listen:       defaultListen,
		BindAddr:     defaultBindAddr,
		Callsign:     "RX",
		JitterMs:     defaultJitterMs * time.Millisecond,
		LateMs:       defaultLateMs * time.Millisecond,
		WordSpaceGap: defaultWordSpaceGap * time.Millisecond,
		MetricsAddr:  defaultMetricsAddr,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // driver's own convenience: config is optional
		}
		return config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yc.Transport.Listen != "" {
		cfg.Listen = yc.Transport.Listen
	}
	if yc.Transport.BindAddr != "" {
		cfg.BindAddr = yc.Transport.BindAddr
	}
	cfg.Timestamped = yc.Transport.Timestamped
	if yc.Callsign != "" {
		cfg.Callsign = yc.Callsign
	}
	if yc.Jitter.BufferMs > 0 {
		cfg.JitterMs = time.Duration(yc.Jitter.BufferMs) * time.Millisecond
	}
	if yc.Jitter.LateMs > 0 {
		cfg.LateMs = time.Duration(yc.Jitter.LateMs) * time.Millisecond
	}
	if yc.Jitter.WordSpaceGap > 0 {
		cfg.WordSpaceGap = time.Duration(yc.Jitter.WordSpaceGap) * time.Millisecond
	}
	if yc.Metrics.Addr != "" {
		cfg.MetricsAddr = yc.Metrics.Addr
	}
	cfg.Debug = yc.Debug

	switch cfg.Listen {
	case "udp", "tcp":
	default:
		return config{}, fmt.Errorf("transport.listen must be udp or tcp (ws interop is cwlink-relay's job), got %q", cfg.Listen)
	}

	return cfg, nil
}
