//go:build windows

package modelfetch

import (
	"errors"
	"os"
	"path/filepath"
)

// defaultStateDir returns the default status record directory for Windows:
// %APPDATA%\modelfetch\
func defaultStateDir() (string, error) {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		return "", errors.New("APPDATA environment variable not set")
	}
	return filepath.Join(appData, "modelfetch"), nil
}
