package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// EndpointsEnvVar names the environment variable holding an explicit
// override path for the endpoints file.
const EndpointsEnvVar = "ODIN_FEED_ENDPOINTS"

// EndpointsFileName is the default endpoints file name.
const EndpointsFileName = "endpoints.ini"

// Endpoint holds one exchange's connection parameters.
type Endpoint struct {
	Exchange       string
	WSURLBase      string
	TimeoutMs      int
	PingIntervalMs int
	Enabled        bool
}

// LoadEndpoints discovers and parses the endpoints file.
func LoadEndpoints() (map[string]Endpoint, error) {
	path, err := discoverFile(EndpointsEnvVar, EndpointsFileName)
	if err != nil {
		return nil, err
	}
	return LoadEndpointsFrom(path)
}

// LoadEndpointsFrom parses the endpoints file at path: ordinary
// `[ExchangeName]` ini sections with `ws_url_base`, `timeout_ms`,
// `ping_interval_ms`, `enabled` keys.
func LoadEndpointsFrom(path string) (map[string]Endpoint, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading endpoints file %s: %w", path, err)
	}

	out := make(map[string]Endpoint)
	for _, section := range f.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		ep := Endpoint{
			Exchange:       section.Name(),
			WSURLBase:      section.Key("ws_url_base").String(),
			TimeoutMs:      section.Key("timeout_ms").MustInt(5000),
			PingIntervalMs: section.Key("ping_interval_ms").MustInt(20000),
			Enabled:        section.Key("enabled").MustBool(true),
		}
		if ep.WSURLBase == "" {
			return nil, fmt.Errorf("config: endpoint %q missing ws_url_base", ep.Exchange)
		}
		out[ep.Exchange] = ep
	}

	return out, nil
}
