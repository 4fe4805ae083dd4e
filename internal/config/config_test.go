package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing temp file %s: %v", path, err)
	}
	return path
}

func TestLoadPrimaryFromDefaults(t *testing.T) {
	path := writeTemp(t, "odin-feed.conf", "port=12345\n")
	cfg, err := LoadPrimaryFrom(path)
	if err != nil {
		t.Fatalf("LoadPrimaryFrom: %v", err)
	}
	if cfg.Port != 12345 {
		t.Errorf("Port = %d, want 12345", cfg.Port)
	}
	if cfg.MulticastAddr != "239.255.1.1" {
		t.Errorf("MulticastAddr = %q, want default", cfg.MulticastAddr)
	}
	if cfg.MetricsListenAddr != ":9090" {
		t.Errorf("MetricsListenAddr = %q, want default :9090", cfg.MetricsListenAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadPrimaryFromOverridesAllKeys(t *testing.T) {
	contents := "multicast_addr=239.1.1.1\n" +
		"port=7000\n" +
		"interface_addr=10.0.0.1\n" +
		"runtime_threads=4\n" +
		"metrics_enabled=true\n" +
		"metrics_listen_addr=:9999\n" +
		"metrics_interval_secs=5\n" +
		"log_level=debug\n" +
		"log_file_path=/tmp/odin.log\n"
	path := writeTemp(t, "odin-feed.conf", contents)

	cfg, err := LoadPrimaryFrom(path)
	if err != nil {
		t.Fatalf("LoadPrimaryFrom: %v", err)
	}
	want := Primary{
		MulticastAddr:       "239.1.1.1",
		Port:                7000,
		InterfaceAddr:       "10.0.0.1",
		RuntimeThreads:      4,
		MetricsEnabled:      true,
		MetricsListenAddr:   ":9999",
		MetricsIntervalSecs: 5,
		LogLevel:            "debug",
		LogFilePath:         "/tmp/odin.log",
	}
	if cfg != want {
		t.Fatalf("got %+v, want %+v", cfg, want)
	}
}

func TestLoadPrimaryFromRejectsInvalidPort(t *testing.T) {
	path := writeTemp(t, "odin-feed.conf", "port=0\n")
	if _, err := LoadPrimaryFrom(path); err == nil {
		t.Fatalf("expected error for port=0")
	}
}

func TestLoadPrimaryFromMissingFile(t *testing.T) {
	if _, err := LoadPrimaryFrom(filepath.Join(t.TempDir(), "does-not-exist.conf")); err == nil {
		t.Fatalf("expected error for missing primary config file")
	}
}

func TestLoadEndpointsFromParsesSections(t *testing.T) {
	contents := "[BinanceSpot]\n" +
		"ws_url_base = wss://stream.binance.com:9443/ws\n" +
		"timeout_ms = 3000\n\n" +
		"[BinanceFutures]\n" +
		"ws_url_base = wss://fstream.binance.com/ws\n" +
		"enabled = false\n"
	path := writeTemp(t, "endpoints.ini", contents)

	endpoints, err := LoadEndpointsFrom(path)
	if err != nil {
		t.Fatalf("LoadEndpointsFrom: %v", err)
	}
	if len(endpoints) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(endpoints))
	}

	spot := endpoints["BinanceSpot"]
	if spot.WSURLBase != "wss://stream.binance.com:9443/ws" {
		t.Errorf("spot.WSURLBase = %q", spot.WSURLBase)
	}
	if spot.TimeoutMs != 3000 {
		t.Errorf("spot.TimeoutMs = %d, want 3000", spot.TimeoutMs)
	}
	if spot.PingIntervalMs != 20000 {
		t.Errorf("spot.PingIntervalMs = %d, want default 20000", spot.PingIntervalMs)
	}
	if !spot.Enabled {
		t.Errorf("spot.Enabled = false, want default true")
	}

	futures := endpoints["BinanceFutures"]
	if futures.Enabled {
		t.Errorf("futures.Enabled = true, want false (explicit override)")
	}
}

func TestLoadEndpointsFromRejectsMissingWSURLBase(t *testing.T) {
	path := writeTemp(t, "endpoints.ini", "[BinanceSpot]\ntimeout_ms = 3000\n")
	if _, err := LoadEndpointsFrom(path); err == nil {
		t.Fatalf("expected error for endpoint missing ws_url_base")
	}
}

func TestLoadSymbolsFromParsesCommaListsAndBTCIsolation(t *testing.T) {
	contents := "[BinanceSpot]\n" +
		"BTC^USDT\n" +
		"ETH^USDT,XRP^USDT,ADA^USDT\n"
	path := writeTemp(t, "symbols.ini", contents)

	sessions, err := LoadSymbolsFrom(path)
	if err != nil {
		t.Fatalf("LoadSymbolsFrom: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	var btcSession, groupSession *SessionSpec
	for i := range sessions {
		if sessions[i].IsBTCSession {
			btcSession = &sessions[i]
		} else {
			groupSession = &sessions[i]
		}
	}
	if btcSession == nil {
		t.Fatalf("expected one session flagged IsBTCSession")
	}
	if len(btcSession.Symbols) != 1 || btcSession.Symbols[0] != "BTC^USDT" {
		t.Fatalf("unexpected BTC session symbols: %v", btcSession.Symbols)
	}
	if groupSession == nil || len(groupSession.Symbols) != 3 {
		t.Fatalf("expected a 3-symbol group session, got %+v", groupSession)
	}
}

func TestLoadSymbolsFromSkipsBlankLines(t *testing.T) {
	path := writeTemp(t, "symbols.ini", "[BinanceSpot]\n\nBTC^USDT,ETH^USDT\n")
	sessions, err := LoadSymbolsFrom(path)
	if err != nil {
		t.Fatalf("LoadSymbolsFrom: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	if sessions[0].Exchange != "BinanceSpot" {
		t.Errorf("Exchange = %q, want BinanceSpot", sessions[0].Exchange)
	}
}

func TestRunDurationSeconds(t *testing.T) {
	if secs, ok := RunDurationSeconds([]string{"odin-feed", "60"}); !ok || secs != 60 {
		t.Errorf("RunDurationSeconds(60) = (%d, %v), want (60, true)", secs, ok)
	}
	if _, ok := RunDurationSeconds([]string{"odin-feed"}); ok {
		t.Errorf("expected ok=false with no positional argument")
	}
	if _, ok := RunDurationSeconds([]string{"odin-feed", "-1"}); ok {
		t.Errorf("expected ok=false for a non-positive duration")
	}
	if _, ok := RunDurationSeconds([]string{"odin-feed", "notanumber"}); ok {
		t.Errorf("expected ok=false for a non-numeric argument")
	}
}

func TestDiscoverFileEnvVarOverride(t *testing.T) {
	path := writeTemp(t, "custom.conf", "port=1\n")
	t.Setenv(PrimaryEnvVar, path)

	cfg, err := LoadPrimary()
	if err != nil {
		t.Fatalf("LoadPrimary via env override: %v", err)
	}
	if cfg.Port != 1 {
		t.Errorf("Port = %d, want 1", cfg.Port)
	}
}

func TestDiscoverFileEnvVarPointsToMissingFile(t *testing.T) {
	t.Setenv(PrimaryEnvVar, filepath.Join(t.TempDir(), "missing.conf"))
	if _, err := LoadPrimary(); err == nil {
		t.Fatalf("expected error when env override path does not exist")
	}
}
