package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.docingest/logs/).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".docingest", "logs")
	}
	return filepath.Join(home, ".docingest", "logs")
}

// DefaultLogPath returns the default run log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "run.log")
}
