package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// PrimaryEnvVar names the environment variable holding an explicit
// override path for the primary config file.
const PrimaryEnvVar = "ODIN_FEED_CONFIG"

// PrimaryFileName is the default primary config file name.
const PrimaryFileName = "odin-feed.conf"

// Primary holds the flat key=value primary configuration.
type Primary struct {
	MulticastAddr       string
	Port                int
	InterfaceAddr       string
	RuntimeThreads      uint64
	MetricsEnabled      bool
	MetricsListenAddr   string
	MetricsIntervalSecs uint64
	LogLevel            string
	LogFilePath         string
}

// defaultPrimary returns the documented defaults.
func defaultPrimary() Primary {
	return Primary{
		MulticastAddr:       "239.255.1.1",
		Port:                55555,
		InterfaceAddr:       "0.0.0.0",
		RuntimeThreads:      0,
		MetricsEnabled:      false,
		MetricsListenAddr:   ":9090",
		MetricsIntervalSecs: 10,
		LogLevel:            "info",
		LogFilePath:         "",
	}
}

// LoadPrimary discovers and parses the primary config file. A missing
// file is a fatal configuration error; every key is optional within the
// file itself (documented defaults apply).
func LoadPrimary() (Primary, error) {
	path, err := discoverFile(PrimaryEnvVar, PrimaryFileName)
	if err != nil {
		return Primary{}, err
	}
	return LoadPrimaryFrom(path)
}

// LoadPrimaryFrom parses the primary config file at path.
func LoadPrimaryFrom(path string) (Primary, error) {
	d := defaultPrimary()

	v := viper.New()
	v.SetConfigType("properties")
	v.SetDefault("multicast_addr", d.MulticastAddr)
	v.SetDefault("port", d.Port)
	v.SetDefault("interface_addr", d.InterfaceAddr)
	v.SetDefault("runtime_threads", d.RuntimeThreads)
	v.SetDefault("metrics_enabled", d.MetricsEnabled)
	v.SetDefault("metrics_listen_addr", d.MetricsListenAddr)
	v.SetDefault("metrics_interval_secs", d.MetricsIntervalSecs)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file_path", d.LogFilePath)

	v.SetEnvPrefix("ODIN")
	v.AutomaticEnv()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Primary{}, fmt.Errorf("config: reading primary config %s: %w", path, err)
	}

	cfg := Primary{
		MulticastAddr:       v.GetString("multicast_addr"),
		Port:                v.GetInt("port"),
		InterfaceAddr:       v.GetString("interface_addr"),
		RuntimeThreads:      v.GetUint64("runtime_threads"),
		MetricsEnabled:      v.GetBool("metrics_enabled"),
		MetricsListenAddr:   v.GetString("metrics_listen_addr"),
		MetricsIntervalSecs: v.GetUint64("metrics_interval_secs"),
		LogLevel:            v.GetString("log_level"),
		LogFilePath:         v.GetString("log_file_path"),
	}

	if cfg.Port <= 0 {
		return Primary{}, fmt.Errorf("config: invalid port %d", cfg.Port)
	}

	return cfg, nil
}
