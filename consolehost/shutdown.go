package consolehost

import (
	"context"
	"fmt"

	"github.com/valerio/go-consolehost/consolehost/backend"
)

// Shutdown tears the session down. Only the first call does any work;
// later and concurrent calls return at once, wait on Done to see the end.
// Every step runs even if an earlier one failed or panicked, and renderer
// cleanup is bounded by the configured shutdown timeout and ctx.
func (s *Session) Shutdown(ctx context.Context) {
	if !s.store.BeginShutdown() {
		return
	}
	s.logger.Info("Shutting down", "game", s.GameName())

	s.mu.Lock()
	consumer, adapter := s.consumer, s.adapter
	s.mu.Unlock()

	if consumer != nil {
		s.step("renderer cleanup", func() error { return s.cleanupRenderer(ctx, consumer) })
	}
	s.step("stop clock", func() error {
		s.clock.Stop()
		return nil
	})
	if adapter != nil {
		s.step("adapter shutdown", func() error {
			adapter.Shutdown()
			return nil
		})
	}
	s.step("release tick source", func() error {
		s.clock.ReleaseSource()
		return nil
	})
	s.step("clear input", func() error {
		s.queue.Clear()
		return nil
	})
	s.step("close audio", s.pipeline.Close)

	s.logger.Info("Shutdown complete", "frames", s.clock.Stats().Frames)
	close(s.done)
}

// cleanupRenderer races PrepareForCleanup against the timeout. The loser
// is cancelled through ctx; a consumer that ignores it is left behind.
func (s *Session) cleanupRenderer(ctx context.Context, consumer backend.FrameConsumer) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				result <- fmt.Errorf("panic: %v", r)
			}
		}()
		result <- consumer.PrepareForCleanup(ctx)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w after %s: %w", ErrTimeout, s.cfg.ShutdownTimeout, ctx.Err())
	}
}

// step runs one shutdown step, logging instead of propagating failures.
func (s *Session) step(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Shutdown step panicked", "step", name, "panic", r)
		}
	}()
	if err := fn(); err != nil {
		s.logger.Warn("Shutdown step failed", "step", name, "error", err)
		return
	}
	s.logger.Debug("Shutdown step done", "step", name)
}
