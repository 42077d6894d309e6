package config

import "flag"

var (
	flagConfig  = flag.String("config", "", "Path to config file")
	flagDebug   = flag.Bool("debug", false, "Enable debug logging")
	flagWorkers = flag.Int("workers", 0, "Worker count for batch evaluation (0 = auto)")
	flagFormat  = flag.String("format", "", "Default output format (skel or rig)")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagWorkers > 0 {
		cfg.Eval.Workers = *flagWorkers
	}
	if *flagFormat != "" {
		cfg.Tool.DefaultFormat = *flagFormat
	}
}
