package config

import (
	"os"
	"runtime"
)

// DataDirectory returns the directory h2d stores its configuration in
// when no explicit path is given on the command line.
func DataDirectory() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return appData + "\\h2d"
		}
		return "."
	}
	if home := os.Getenv("HOME"); home != "" {
		return home + "/.h2d"
	}
	return "."
}

// DefaultPath returns the default config.yaml location under
// DataDirectory.
func DefaultPath() string {
	return DataDirectory() + string(os.PathSeparator) + "config.yaml"
}
