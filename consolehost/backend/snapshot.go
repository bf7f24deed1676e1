package backend

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// CreateSnapshotConfig creates a snapshot configuration from CLI parameters.
// Without a directory a temporary one is created.
func CreateSnapshotConfig(interval int, directory, romPath string) (SnapshotConfig, error) {
	config := SnapshotConfig{
		Enabled:  interval > 0,
		Interval: interval,
	}

	if !config.Enabled {
		return config, nil
	}

	if directory == "" {
		tempDir, err := os.MkdirTemp("", "consolehost-snapshots-*")
		if err != nil {
			return config, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		config.Directory = tempDir
	} else {
		if err := os.MkdirAll(directory, 0o755); err != nil {
			return config, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		config.Directory = directory
	}

	config.GameName = filepath.Base(romPath)
	config.GameName = strings.TrimSuffix(config.GameName, filepath.Ext(config.GameName))
	if config.GameName == "" || config.GameName == "." {
		config.GameName = "pattern"
	}

	return config, nil
}
