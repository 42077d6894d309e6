// Package config handles toolkit configuration loading and management.
package config

import "time"

// Config holds all animtool settings.
type Config struct {
	Tool     ToolConfig     `yaml:"tool"`
	Eval     EvalConfig     `yaml:"eval"`
	Optimise OptimiseConfig `yaml:"optimise"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ToolConfig holds output and sampling settings.
type ToolConfig struct {
	DefaultFormat string  `yaml:"default_format"` // skel or rig
	SampleRate    float32 `yaml:"sample_rate"`    // samples per second for the sample command
	Pretty        bool    `yaml:"pretty"`         // align tabular output
}

// EvalConfig holds batch evaluation settings.
type EvalConfig struct {
	Workers     int           `yaml:"workers"` // 0 = NumCPU-1
	QueueSize   int           `yaml:"queue_size"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// OptimiseConfig holds keyframe optimisation settings.
type OptimiseConfig struct {
	KeepIdentityTracks bool `yaml:"keep_identity_tracks"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Tool: ToolConfig{
			DefaultFormat: "skel",
			SampleRate:    30,
			Pretty:        true,
		},
		Eval: EvalConfig{
			Workers:     0,
			QueueSize:   256,
			IdleTimeout: time.Second,
		},
		Optimise: OptimiseConfig{
			KeepIdentityTracks: false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
