package main

import "time"

const (
	defaultBackendAddr    = "127.0.0.1:14182"
	defaultConnectTimeout = 5 * time.Second
	defaultMaxLineSize    = 1024 * 1024 // 1MB
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	BackendAddr       string        `mapstructure:"backend-addr"`
	ConnectTimeout    time.Duration `mapstructure:"connect-timeout"`
	TimelineAttrs     []string      `mapstructure:"timeline-attrs"`
	TimelineAttrsFile string        `mapstructure:"timeline-attrs-file"`
	MaxLineSize       int           `mapstructure:"max-line-size"`
	ConfigPath        string        `mapstructure:"-"` // not from config file
}
