// Package config implements the three-file configuration surface: a flat
// key=value primary config (viper), a [Section]-keyed symbols file and a
// [Section]-keyed endpoints file (both ini.v1 -- viper does not expose
// repeated same-shaped `[Section]` blocks as a list the way raw ini.v1
// does).
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// discoverFile resolves a configuration file's path: an environment
// variable override holding the full path, then the current working
// directory, then the executable's directory, then the executable's
// grandparent directory (dev layout), each tried for a file named
// defaultName.
func discoverFile(envVar, defaultName string) (string, error) {
	if p := os.Getenv(envVar); p != "" {
		if fileExists(p) {
			return p, nil
		}
		return "", fmt.Errorf("config: %s=%q does not exist", envVar, p)
	}

	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, defaultName)
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		candidate := filepath.Join(exeDir, defaultName)
		if fileExists(candidate) {
			return candidate, nil
		}

		grandparent := filepath.Dir(filepath.Dir(exeDir))
		candidate = filepath.Join(grandparent, defaultName)
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("config: %s not found (checked env %s, cwd, executable dir, executable grandparent)", defaultName, envVar)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
