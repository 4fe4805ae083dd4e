package config

import (
	"fmt"

	"github.com/joho/godotenv"
)

// Config is the fully loaded configuration surface: primary settings,
// one SessionSpec per configured (exchange, symbol-group), and one
// Endpoint per exchange section in the endpoints file.
type Config struct {
	Primary   Primary
	Sessions  []SessionSpec
	Endpoints map[string]Endpoint
}

// LoadDotEnv loads a ".env" file from the current directory if present,
// setting override environment variables before file discovery runs.
// Absence of a .env file is not an error -- it is an optional developer
// convenience.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// Load loads all three configuration files via their discovery order.
// A missing or unparseable required file is a fatal configuration error.
func Load() (Config, error) {
	LoadDotEnv()

	primary, err := LoadPrimary()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	sessions, err := LoadSymbols()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if len(sessions) == 0 {
		return Config{}, fmt.Errorf("config: no sessions configured in symbols file")
	}

	endpoints, err := LoadEndpoints()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	return Config{Primary: primary, Sessions: sessions, Endpoints: endpoints}, nil
}

// RunDurationSeconds parses the CLI's one optional positional argument: a
// positive integer interpreted as total run duration in seconds. Absent
// or non-positive means "run until interrupt" (0, false).
func RunDurationSeconds(args []string) (int, bool) {
	if len(args) < 2 {
		return 0, false
	}
	var n int
	if _, err := fmt.Sscanf(args[1], "%d", &n); err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
