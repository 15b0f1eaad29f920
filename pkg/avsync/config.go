package avsync

import "time"

type Config struct {
	DBPath         string
	TempDir        string
	FFmpegPath     string
	SampleRate     int
	MaxOffset      time.Duration
	Window         time.Duration
	Step           time.Duration
	ExtractTimeout time.Duration
	Fingerprinting bool
	Deep           bool
	Logger         Logger
	Store          AuditStore
	Progress       ProgressFunc
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithFFmpegPath(path string) Option {
	return func(c *Config) {
		c.FFmpegPath = path
	}
}

func WithSampleRate(rate int) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

func WithMaxOffset(d time.Duration) Option {
	return func(c *Config) {
		c.MaxOffset = d
	}
}

func WithWindow(d time.Duration) Option {
	return func(c *Config) {
		c.Window = d
	}
}

func WithStep(d time.Duration) Option {
	return func(c *Config) {
		c.Step = d
	}
}

func WithExtractTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.ExtractTimeout = d
	}
}

func WithFingerprinting(enabled bool) Option {
	return func(c *Config) {
		c.Fingerprinting = enabled
	}
}

func WithDeepAnalysis() Option {
	return func(c *Config) {
		c.Deep = true
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

func WithAuditStore(store AuditStore) Option {
	return func(c *Config) {
		c.Store = store
	}
}

func WithProgress(fn ProgressFunc) Option {
	return func(c *Config) {
		c.Progress = fn
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:         "avsync.sqlite3",
		TempDir:        "/tmp",
		SampleRate:     8000,
		Fingerprinting: true,
		Logger:         nil,
	}
}
