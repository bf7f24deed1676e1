// Package debug holds developer tooling shared by the backends.
package debug

import (
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/valerio/go-consolehost/consolehost/video"
)

var errEmptyFrame = errors.New("no frame data available")

// TakeSnapshot saves frame to the working directory, named after the game.
// Failures are logged.
func TakeSnapshot(frame video.Frame, gameName string) {
	if frame.Empty() {
		slog.Warn("No frame data available for snapshot")
		return
	}

	baseName := "consolehost_snapshot"
	if gameName != "" {
		baseName = fmt.Sprintf("%s_snapshot", gameName)
	}
	if _, err := SaveFramePNGToDir(frame, baseName, ""); err != nil {
		slog.Error("Failed to save snapshot", "error", err)
	}
}

// SaveFramePNGToDir writes frame as <baseName>_<timestamp>.png into
// directory (the working directory when empty) and returns the path.
func SaveFramePNGToDir(frame video.Frame, baseName, directory string) (string, error) {
	if frame.Empty() {
		return "", errEmptyFrame
	}

	if directory == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		directory = cwd
	}

	timestamp := time.Now().Format("20060102_150405")
	path := filepath.Join(directory, fmt.Sprintf("%s_%s.png", baseName, timestamp))
	return path, SaveFramePNG(frame, path)
}

// SaveFramePNG encodes frame as a PNG at path.
func SaveFramePNG(frame video.Frame, path string) error {
	if frame.Empty() {
		return errEmptyFrame
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer file.Close()

	if err := png.Encode(file, frame.ToImage()); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}

	slog.Info("Snapshot saved", "path", path, "size", fmt.Sprintf("%dx%d", frame.Width, frame.Height), "format", "PNG")
	return nil
}
