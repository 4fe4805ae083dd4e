package config

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// SymbolsEnvVar names the environment variable holding an explicit
// override path for the symbols file.
const SymbolsEnvVar = "ODIN_FEED_SYMBOLS"

// SymbolsFileName is the default symbols file name.
const SymbolsFileName = "symbols.ini"

// SessionSpec is one configured (exchange, symbol-group) session,
// corresponding to one supervisor task.
type SessionSpec struct {
	Exchange     string
	Symbols      []string
	IsBTCSession bool
}

// LoadSymbols discovers and parses the symbols file.
func LoadSymbols() ([]SessionSpec, error) {
	path, err := discoverFile(SymbolsEnvVar, SymbolsFileName)
	if err != nil {
		return nil, err
	}
	return LoadSymbolsFrom(path)
}

// LoadSymbolsFrom parses the symbols file at path. Each non-comment line
// within a `[ExchangeName]` section is a comma-separated symbol list
// forming one session; a single-symbol line starting with "BTC^" is
// marked IsBTCSession so BTC gets its own session for latency isolation.
//
// Lines have no "key=value" shape, so the file is loaded with
// AllowBooleanKeys: ini.v1 treats a bare line (no '=') as a key with an
// empty value, and Key.Name() returns the full line text.
func LoadSymbolsFrom(path string) ([]SessionSpec, error) {
	f, err := ini.LoadSources(ini.LoadOptions{AllowBooleanKeys: true}, path)
	if err != nil {
		return nil, fmt.Errorf("config: reading symbols file %s: %w", path, err)
	}

	var sessions []SessionSpec
	for _, section := range f.Sections() {
		if section.Name() == ini.DefaultSection {
			continue
		}
		exchange := section.Name()
		for _, key := range section.Keys() {
			line := strings.TrimSpace(key.Name())
			if line == "" {
				continue
			}
			raw := strings.Split(line, ",")
			symbols := make([]string, 0, len(raw))
			for _, s := range raw {
				s = strings.TrimSpace(s)
				if s != "" {
					symbols = append(symbols, s)
				}
			}
			if len(symbols) == 0 {
				continue
			}
			isBTC := len(symbols) == 1 && strings.HasPrefix(strings.ToUpper(symbols[0]), "BTC^")
			sessions = append(sessions, SessionSpec{
				Exchange:     exchange,
				Symbols:      symbols,
				IsBTCSession: isBTC,
			})
		}
	}

	return sessions, nil
}
