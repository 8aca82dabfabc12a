// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"geomesh.io/hyperbr/internal/log"
)

// GlobalConfig is the top-level static configuration. It maps to the
// `hyperbr:` root key in YAML; env vars use the HYPERBR_ prefix via the
// key replacer (e.g. hyperbr.log.level -> HYPERBR_LOG_LEVEL).
type GlobalConfig struct {
	Node      NodeConfig      `mapstructure:"node"`
	Control   ControlConfig   `mapstructure:"control"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Forward   ForwardConfig   `mapstructure:"forward"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Firmware  FirmwareConfig  `mapstructure:"firmware"`
	Log       log.Config      `mapstructure:"log"`
}

// NodeConfig identifies this border router and its own hyperspace
// coordinate, stamped into outbound packets.
type NodeConfig struct {
	Hostname string  `mapstructure:"hostname"` // empty = os.Hostname()
	R        float32 `mapstructure:"r"`
	T        float32 `mapstructure:"t"`
	Seq      uint8   `mapstructure:"seq"`
}

// ControlConfig contains local control plane settings.
type ControlConfig struct {
	Socket  string `mapstructure:"socket"`
	PIDFile string `mapstructure:"pid_file"`
}

// IngestConfig configures the packet ingest side.
type IngestConfig struct {
	Source     SourceConfig `mapstructure:"source"`
	Workers    int          `mapstructure:"workers"`
	BufferSize int          `mapstructure:"buffer_size"` // per-packet buffer capacity, octets
	QueueSize  int          `mapstructure:"queue_size"`
}

// SourceConfig selects and configures a packet source.
type SourceConfig struct {
	Type   string `mapstructure:"type"`   // "udp" | "file"
	Listen string `mapstructure:"listen"` // udp: listen address
	Path   string `mapstructure:"path"`   // file: pcap path
}

// ForwardConfig configures the packet egress side.
type ForwardConfig struct {
	Sink SinkConfig `mapstructure:"sink"`
}

// SinkConfig selects and configures a packet sink.
type SinkConfig struct {
	Type         string `mapstructure:"type"`    // "udp" | "console"
	Address      string `mapstructure:"address"` // udp: tunnel remote
	HopLimit     int    `mapstructure:"hop_limit"`
	TrafficClass int    `mapstructure:"traffic_class"`
}

// RegistryConfig configures device table persistence.
type RegistryConfig struct {
	DataDir    string `mapstructure:"data_dir"`
	Persist    bool   `mapstructure:"persist"`
	StaleAfter string `mapstructure:"stale_after"` // prune age, "0" disables
}

// DashboardConfig configures the HTTP/WebSocket dashboard surface.
type DashboardConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// FirmwareConfig bounds firmware update sessions.
type FirmwareConfig struct {
	ChunkSize int    `mapstructure:"chunk_size"`
	Interval  string `mapstructure:"interval"` // delay between chunks, e.g. "100ms"
	Port      int    `mapstructure:"port"`     // UDP port devices receive chunks on
}

// configRoot is the wrapper matching the YAML structure `hyperbr: ...`.
type configRoot struct {
	Hyperbr GlobalConfig `mapstructure:"hyperbr"`
}

// Load loads configuration from path.
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Hyperbr

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values, all under the `hyperbr.` root.
func setDefaults(v *viper.Viper) {
	v.SetDefault("hyperbr.control.socket", "/var/run/hyperbr.sock")
	v.SetDefault("hyperbr.control.pid_file", "/var/run/hyperbr.pid")

	v.SetDefault("hyperbr.ingest.source.type", "udp")
	v.SetDefault("hyperbr.ingest.source.listen", ":4739")
	v.SetDefault("hyperbr.ingest.workers", 1)
	v.SetDefault("hyperbr.ingest.buffer_size", 2048)
	v.SetDefault("hyperbr.ingest.queue_size", 1024)

	v.SetDefault("hyperbr.forward.sink.type", "console")
	v.SetDefault("hyperbr.forward.sink.hop_limit", 64)

	v.SetDefault("hyperbr.registry.data_dir", "/var/lib/hyperbr")
	v.SetDefault("hyperbr.registry.persist", true)
	v.SetDefault("hyperbr.registry.stale_after", "24h")

	v.SetDefault("hyperbr.dashboard.enabled", true)
	v.SetDefault("hyperbr.dashboard.listen", ":8073")

	v.SetDefault("hyperbr.firmware.chunk_size", 1024)
	v.SetDefault("hyperbr.firmware.interval", "100ms")
	v.SetDefault("hyperbr.firmware.port", 9522)

	v.SetDefault("hyperbr.log.level", "info")
	v.SetDefault("hyperbr.log.pattern", "%time [%level] %caller: %msg%n")
	v.SetDefault("hyperbr.log.time", "2006-01-02 15:04:05")
}

// ValidateAndApplyDefaults validates the configuration and resolves
// runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug/info/warn/error)", cfg.Log.Level)
	}

	if cfg.Node.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("failed to get hostname: %w", err)
		}
		cfg.Node.Hostname = hostname
	}

	switch cfg.Ingest.Source.Type {
	case "udp":
		if cfg.Ingest.Source.Listen == "" {
			return fmt.Errorf("ingest.source.listen is required for the udp source")
		}
	case "file":
		if cfg.Ingest.Source.Path == "" {
			return fmt.Errorf("ingest.source.path is required for the file source")
		}
	default:
		return fmt.Errorf("unsupported ingest.source.type: %s (udp/file)", cfg.Ingest.Source.Type)
	}

	switch cfg.Forward.Sink.Type {
	case "udp":
		if cfg.Forward.Sink.Address == "" {
			return fmt.Errorf("forward.sink.address is required for the udp sink")
		}
	case "console":
	default:
		return fmt.Errorf("unsupported forward.sink.type: %s (udp/console)", cfg.Forward.Sink.Type)
	}

	if cfg.Ingest.Workers <= 0 {
		cfg.Ingest.Workers = 1
	}
	if cfg.Ingest.BufferSize < 1280 {
		// IPv6 minimum MTU; smaller buffers cannot hold a full packet.
		cfg.Ingest.BufferSize = 1280
	}
	if cfg.Ingest.QueueSize <= 0 {
		cfg.Ingest.QueueSize = 1024
	}

	if cfg.Firmware.ChunkSize <= 0 {
		cfg.Firmware.ChunkSize = 1024
	}
	if _, err := time.ParseDuration(cfg.Firmware.Interval); err != nil {
		return fmt.Errorf("invalid firmware.interval: %w", err)
	}
	if cfg.Firmware.Port <= 0 || cfg.Firmware.Port > 65535 {
		cfg.Firmware.Port = 9522
	}

	if cfg.Registry.StaleAfter != "" {
		if _, err := time.ParseDuration(cfg.Registry.StaleAfter); err != nil {
			return fmt.Errorf("invalid registry.stale_after: %w", err)
		}
	}

	return nil
}

// FirmwareInterval returns the parsed chunk interval. Validation already
// guaranteed the value parses.
func (cfg *GlobalConfig) FirmwareInterval() time.Duration {
	d, _ := time.ParseDuration(cfg.Firmware.Interval)
	return d
}

// RegistryStaleAfter returns the parsed prune age; zero means pruning
// is disabled.
func (cfg *GlobalConfig) RegistryStaleAfter() time.Duration {
	if cfg.Registry.StaleAfter == "" {
		return 0
	}
	d, _ := time.ParseDuration(cfg.Registry.StaleAfter)
	return d
}
