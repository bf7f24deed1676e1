// Package headless is a frame consumer for automated runs: it counts frames,
// saves periodic PNG snapshots and reports when a frame budget is reached.
package headless

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/valerio/go-consolehost/consolehost/backend"
	"github.com/valerio/go-consolehost/consolehost/debug"
	"github.com/valerio/go-consolehost/consolehost/logging"
	"github.com/valerio/go-consolehost/consolehost/video"
)

// snapshotBacklog is how many snapshots may wait for the writer before new
// ones are skipped.
const snapshotBacklog = 8

type snapshot struct {
	frame video.Frame
	index uint64
}

// Backend implements backend.FrameConsumer without any presentation.
// Snapshots are encoded on a separate goroutine so UpdateTexture never
// waits on disk.
type Backend struct {
	maxFrames      uint64
	snapshotConfig backend.SnapshotConfig

	frameCount atomic.Uint64
	skipped    atomic.Uint64

	mu        sync.Mutex
	snapshots chan snapshot
	closed    bool
	writer    sync.WaitGroup

	done     chan struct{}
	doneOnce sync.Once
	logger   *slog.Logger
}

// New creates a headless backend that signals Done after maxFrames frames.
// Zero means run until shut down.
func New(maxFrames int, snapshotConfig backend.SnapshotConfig) *Backend {
	h := &Backend{
		maxFrames:      uint64(max(maxFrames, 0)),
		snapshotConfig: snapshotConfig,
		snapshots:      make(chan snapshot, snapshotBacklog),
		done:           make(chan struct{}),
		logger:         logging.Deferred(),
	}

	h.writer.Add(1)
	go h.writeSnapshots()

	h.logger.Info("Running headless mode",
		"frames", maxFrames,
		"snapshot_interval", snapshotConfig.Interval,
		"snapshot_dir", snapshotConfig.Directory)
	return h
}

// UpdateTexture counts the frame and queues a snapshot when one is due.
func (h *Backend) UpdateTexture(frame video.Frame) {
	n := h.frameCount.Add(1)

	if h.snapshotConfig.Enabled && n%uint64(h.snapshotConfig.Interval) == 0 {
		h.queueSnapshot(frame, n)
	}

	if n%60 == 0 {
		h.logger.Debug("Frame progress", "completed", n, "total", h.maxFrames)
	}

	if h.maxFrames > 0 && n == h.maxFrames {
		// final snapshot unless one was just taken
		if h.snapshotConfig.Enabled && n%uint64(h.snapshotConfig.Interval) != 0 {
			h.queueSnapshot(frame, n)
		}
		h.logger.Info("Headless execution completed", "frames", n)
		h.doneOnce.Do(func() { close(h.done) })
	}
}

// Done is closed once the frame budget has been delivered.
func (h *Backend) Done() <-chan struct{} {
	return h.done
}

func (h *Backend) Frames() uint64 {
	return h.frameCount.Load()
}

// PrepareForCleanup waits for queued snapshots to be written, or for ctx.
func (h *Backend) PrepareForCleanup(ctx context.Context) error {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.snapshots)
	}
	h.mu.Unlock()

	flushed := make(chan struct{})
	go func() {
		h.writer.Wait()
		close(flushed)
	}()

	select {
	case <-flushed:
		if skipped := h.skipped.Load(); skipped > 0 {
			h.logger.Warn("Snapshots skipped, writer fell behind", "count", skipped)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush snapshots: %w", ctx.Err())
	}
}

func (h *Backend) queueSnapshot(frame video.Frame, index uint64) {
	if frame.Empty() {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		h.skipped.Add(1)
		return
	}
	select {
	case h.snapshots <- snapshot{frame: frame.Clone(), index: index}:
	default:
		h.skipped.Add(1)
	}
}

func (h *Backend) writeSnapshots() {
	defer h.writer.Done()
	for s := range h.snapshots {
		name := fmt.Sprintf("%s_frame_%d", h.snapshotConfig.GameName, s.index)
		if _, err := debug.SaveFramePNGToDir(s.frame, name, h.snapshotConfig.Directory); err != nil {
			h.logger.Error("Failed to save PNG snapshot", "frame", s.index, "error", err)
		}
	}
}

var _ backend.FrameConsumer = (*Backend)(nil)
