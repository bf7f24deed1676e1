//go:build unix

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/valerio/go-consolehost/consolehost"
)

// forwardLifecycleSignals maps job control to the session: SIGTSTP
// backgrounds it, SIGCONT brings it back. It returns after shutdown.
func forwardLifecycleSignals(session *consolehost.Session) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTSTP, syscall.SIGCONT)
	defer signal.Stop(sigs)

	for {
		select {
		case <-session.Done():
			return
		case sig := <-sigs:
			if sig == syscall.SIGTSTP {
				session.Background()
				continue
			}
			// there is no pause menu in a terminal, coming back resumes
			if session.Foreground() {
				if err := session.Resume(); err != nil {
					slog.Debug("Resume after foreground ignored", "error", err)
				}
			}
		}
	}
}
