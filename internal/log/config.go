package log

// Config controls the logger's level, output pattern, and appenders.
type Config struct {
	Level   string     `mapstructure:"level"`   // debug / info / warn / error
	Pattern string     `mapstructure:"pattern"` // %time [%level] %caller: %msg%n
	Time    string     `mapstructure:"time"`    // time layout for %time
	File    FileConfig `mapstructure:"file"`
}

// FileConfig configures the rotating file appender.
type FileConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig is console-only logging at info level.
func DefaultConfig() *Config {
	return &Config{
		Level:   "info",
		Pattern: "%time [%level] %caller: %msg%n",
		Time:    "2006-01-02 15:04:05",
	}
}
