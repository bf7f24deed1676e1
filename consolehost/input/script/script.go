// Package script drives input from a Lua script, for demos and repeatable
// runs without a keyboard.
//
// A script sees these globals:
//
//	press(name)          press a button or trigger a host action
//	release(name)        release a button
//	tap(name [, ms])     press, wait ms (default 50), release
//	wait(ms)             sleep
//	log(msg)             write an info log line
//
// Names are the short action names: up, down, left, right, a, b, x, y, l,
// r, select, start, pause, fastforward, snapshot, menu, quit.
package script

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/valerio/go-consolehost/consolehost/input/action"
	"github.com/valerio/go-consolehost/consolehost/input/event"
	"github.com/valerio/go-consolehost/consolehost/logging"
)

const defaultTap = 50 * time.Millisecond

// Trigger receives the actions a script produces. input.Manager
// satisfies it.
type Trigger interface {
	Trigger(act action.Action, evt event.Type)
}

type Runner struct {
	target Trigger
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

type Option func(*Runner)

// WithSleep replaces the wall-clock wait, for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) { r.sleep = sleep }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func NewRunner(target Trigger, opts ...Option) *Runner {
	r := &Runner{
		target: target,
		sleep:  sleepContext,
		logger: logging.Deferred(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunFile runs the script at path until it ends or ctx is cancelled.
func (r *Runner) RunFile(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	return r.Run(ctx, path, string(src))
}

// Run executes src. A cancelled ctx stops the script at its next
// instruction or wait and is returned as ctx.Err().
func (r *Runner) Run(ctx context.Context, name, src string) error {
	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	r.register(ctx, L)

	r.logger.Info("Running input script", "script", name)
	err := L.DoString(src)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("script %s: %w", name, err)
	}
	r.logger.Info("Input script finished", "script", name)
	return nil
}

func (r *Runner) register(ctx context.Context, L *lua.LState) {
	L.SetGlobal("press", L.NewFunction(func(L *lua.LState) int {
		r.target.Trigger(checkAction(L, 1), event.Press)
		return 0
	}))
	L.SetGlobal("release", L.NewFunction(func(L *lua.LState) int {
		r.target.Trigger(checkAction(L, 1), event.Release)
		return 0
	}))
	L.SetGlobal("tap", L.NewFunction(func(L *lua.LState) int {
		act := checkAction(L, 1)
		hold := time.Duration(L.OptInt(2, int(defaultTap/time.Millisecond))) * time.Millisecond
		r.target.Trigger(act, event.Press)
		err := r.sleep(ctx, hold)
		r.target.Trigger(act, event.Release)
		if err != nil {
			L.RaiseError("%s", err.Error())
		}
		return 0
	}))
	L.SetGlobal("wait", L.NewFunction(func(L *lua.LState) int {
		ms := L.CheckInt(1)
		if ms < 0 {
			L.ArgError(1, "wait time must not be negative")
		}
		if err := r.sleep(ctx, time.Duration(ms)*time.Millisecond); err != nil {
			L.RaiseError("%s", err.Error())
		}
		return 0
	}))
	L.SetGlobal("log", L.NewFunction(func(L *lua.LState) int {
		r.logger.Info(L.CheckString(1), "source", "script")
		return 0
	}))
}

func checkAction(L *lua.LState, n int) action.Action {
	name := L.CheckString(n)
	act, ok := action.Parse(name)
	if !ok {
		L.ArgError(n, fmt.Sprintf("unknown action %q", name))
	}
	return act
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
