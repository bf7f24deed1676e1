// Package backend defines what a renderer must provide to a session.
// Implementations live in the subpackages.
package backend

import (
	"context"

	"github.com/valerio/go-consolehost/consolehost/video"
)

// FrameConsumer presents the frames a session produces.
type FrameConsumer interface {
	// UpdateTexture receives one frame per tick on the tick goroutine. It
	// must return quickly and must not call back into the session. The
	// frame is only valid for the duration of the call.
	UpdateTexture(frame video.Frame)

	// PrepareForCleanup releases presentation resources. The session
	// bounds it with a timeout carried by ctx.
	PrepareForCleanup(ctx context.Context) error
}

// SnapshotConfig holds configuration for frame snapshots.
type SnapshotConfig struct {
	Enabled   bool
	Interval  int    // save a snapshot every N frames
	Directory string // directory to save snapshots
	GameName  string // game name for snapshot filenames
}
