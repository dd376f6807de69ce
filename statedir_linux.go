//go:build linux

package modelfetch

import (
	"os"
	"path/filepath"
)

// defaultStateDir returns the default status record directory for Linux.
// Uses $XDG_DATA_HOME/modelfetch/ if set, otherwise
// ~/.local/share/modelfetch/
func defaultStateDir() (string, error) {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "modelfetch"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "modelfetch"), nil
}
