//go:build darwin

package modelfetch

import (
	"os"
	"path/filepath"
)

// defaultStateDir returns the default status record directory for macOS:
// ~/Library/Application Support/modelfetch/
func defaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "Library", "Application Support", "modelfetch"), nil
}
