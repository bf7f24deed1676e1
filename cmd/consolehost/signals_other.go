//go:build !unix

package main

import "github.com/valerio/go-consolehost/consolehost"

func forwardLifecycleSignals(session *consolehost.Session) {
	<-session.Done()
}
