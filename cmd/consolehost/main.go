package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/urfave/cli"
	"golang.org/x/sync/errgroup"

	"github.com/valerio/go-consolehost/consolehost"
	"github.com/valerio/go-consolehost/consolehost/audio"
	"github.com/valerio/go-consolehost/consolehost/backend"
	"github.com/valerio/go-consolehost/consolehost/backend/headless"
	"github.com/valerio/go-consolehost/consolehost/backend/terminal"
	"github.com/valerio/go-consolehost/consolehost/config"
	"github.com/valerio/go-consolehost/consolehost/console"
	_ "github.com/valerio/go-consolehost/consolehost/console/testpattern"
	"github.com/valerio/go-consolehost/consolehost/input/script"
	"github.com/valerio/go-consolehost/consolehost/logging"
	"github.com/valerio/go-consolehost/consolehost/romfile"
	"github.com/valerio/go-consolehost/consolehost/timing"
)

func main() {
	app := cli.NewApp()
	app.Name = "consolehost"
	app.Description = "A host for emulated game consoles"
	app.Usage = "consolehost [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file or archive",
		},
		cli.StringFlag{
			Name:  "console",
			Usage: "Console type (nes, gba), overrides detection by file extension",
		},
		cli.StringFlag{
			Name:   "config",
			Usage:  "YAML configuration file",
			EnvVar: "CONSOLEHOST_CONFIG",
		},
		cli.BoolFlag{
			Name:  "headless",
			Usage: "Run without a terminal interface",
		},
		cli.IntFlag{
			Name:  "frames",
			Usage: "Number of frames to run in headless mode (required for headless)",
		},
		cli.BoolFlag{
			Name:  "test-pattern",
			Usage: "Run the built-in test pattern instead of a ROM",
		},
		cli.IntFlag{
			Name:  "snapshot-interval",
			Usage: "Save frame snapshots every N frames in headless mode (0 = disabled)",
		},
		cli.StringFlag{
			Name:  "snapshot-dir",
			Usage: "Directory to save frame snapshots (default: temp directory)",
		},
		cli.StringFlag{
			Name:   "audio",
			Usage:  "Audio output: oto, wav or none",
			EnvVar: "CONSOLEHOST_AUDIO",
		},
		cli.StringFlag{
			Name:  "wav",
			Usage: "WAV file written by the wav audio output",
		},
		cli.StringFlag{
			Name:  "script",
			Usage: "Lua script that drives input",
		},
		cli.StringSliceFlag{
			Name:  "cheat",
			Usage: "Cheat as TYPE:CODE, e.g. gamegenie6:SXIOPO (repeatable)",
		},
		cli.BoolFlag{
			Name:  "fast-forward",
			Usage: "Start at the console's maximum speed",
		},
		cli.StringFlag{
			Name:   "log-level",
			Usage:  "debug, info, warn or error",
			EnvVar: "LOG_LEVEL",
		},
		cli.StringFlag{
			Name:   "log-format",
			Usage:  "text or json",
			EnvVar: "LOG_FORMAT",
		},
		cli.StringFlag{
			Name:  "load-state",
			Usage: "Restore a saved state before starting",
		},
		cli.StringFlag{
			Name:  "save-state",
			Usage: "Save the state to this file on exit",
		},
	}
	app.Action = runHost

	err := app.Run(os.Args)
	if err != nil {
		slog.Error("Error running consolehost", "error", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if c.IsSet("audio") {
		cfg.AudioDevice = c.String("audio")
	}
	if c.IsSet("wav") {
		cfg.WAVPath = c.String("wav")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("log-format") {
		cfg.LogFormat = c.String("log-format")
	}
	if c.IsSet("snapshot-interval") {
		cfg.SnapshotInterval = c.Int("snapshot-interval")
	}
	if c.IsSet("snapshot-dir") {
		cfg.SnapshotDir = c.String("snapshot-dir")
	}
	return cfg, cfg.Validate()
}

func loadImage(c *cli.Context) (romfile.Image, string, error) {
	if c.Bool("test-pattern") {
		slog.Info("Running in test pattern mode")
		return romfile.Image{Type: console.Pattern}, "", nil
	}

	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() == 0 {
			cli.ShowAppHelp(c)
			return romfile.Image{}, "", errors.New("no ROM path provided")
		}
		romPath = c.Args().Get(0)
	}

	img, err := romfile.Load(romPath)
	if err != nil {
		return img, romPath, err
	}
	if name := c.String("console"); name != "" {
		t, err := console.ParseType(name)
		if err != nil {
			return img, romPath, err
		}
		img.Type = t
	}
	return img, romPath, nil
}

func runHost(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	img, romPath, err := loadImage(c)
	if err != nil {
		return err
	}

	headlessMode := c.Bool("headless")
	frames := c.Int("frames")
	if headlessMode && frames <= 0 {
		return errors.New("headless mode requires --frames option with a positive value")
	}

	opts := []consolehost.Option{}
	var wav *audio.LazyWAV
	switch cfg.AudioDevice {
	case config.AudioOto:
		opts = append(opts, consolehost.WithDeviceFactory(audio.OtoFactory(cfg.Volume)))
	case config.AudioWAV:
		wav = audio.NewLazyWAV(cfg.WAVPath)
		opts = append(opts, consolehost.WithDeviceFactory(wav.Open))
	}
	if headlessMode {
		opts = append(opts, consolehost.WithSource(func() timing.Source { return timing.NewFreeRunningSource() }))
	}

	session := consolehost.New(cfg, opts...)
	defer func() {
		session.Shutdown(context.Background())
		if wav != nil {
			if err := wav.Close(); err != nil {
				slog.Error("Failed to finalise WAV file", "error", err)
			} else {
				slog.Info("Audio recorded", "path", cfg.WAVPath)
			}
		}
	}()

	if err := session.Load(img.Type, img.ROM); err != nil {
		return err
	}
	for _, code := range c.StringSlice("cheat") {
		cheat, err := console.ParseCheat(code)
		if err != nil {
			return err
		}
		if err := session.ActivateCheat(cheat); err != nil {
			slog.Warn("Cheat rejected", "code", code, "error", err)
		}
	}
	if path := c.String("load-state"); path != "" {
		if err := session.LoadState(path); err != nil {
			return err
		}
	}

	var consumer backend.FrameConsumer
	var framesDone <-chan struct{}
	if headlessMode {
		snapshots, err := backend.CreateSnapshotConfig(cfg.SnapshotInterval, cfg.SnapshotDir, romPath)
		if err != nil {
			return err
		}
		h := headless.New(frames, snapshots)
		consumer, framesDone = h, h.Done()
	} else {
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("%w: %w", consolehost.ErrRendererInit, err)
		}
		consumer = terminal.New(screen, session.Inputs(), session.GameName())
	}

	if err := session.AttachRenderer(consumer); err != nil {
		return err
	}
	if c.Bool("fast-forward") {
		session.SetFastForward(true)
	}
	if err := session.Start(); err != nil {
		return err
	}

	return supervise(c, session, framesDone)
}

// supervise runs the session until the frame budget is spent, the user
// quits or a termination signal arrives, then shuts it down.
func supervise(c *cli.Context, session *consolehost.Session, framesDone <-chan struct{}) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-ctx.Done():
			slog.Info("Signal received")
		case <-session.QuitRequested():
		case <-framesDone:
			slog.Info("Headless execution completed", "frames", session.ClockStats().Frames)
		}

		if path := c.String("save-state"); path != "" {
			if err := session.SaveState(path); err != nil {
				slog.Error("Failed to save state", "path", path, "error", err)
			}
		}
		session.Shutdown(context.Background())
		return nil
	})

	g.Go(func() error {
		forwardLifecycleSignals(session)
		return nil
	})

	if path := c.String("script"); path != "" {
		g.Go(func() error {
			scriptCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			go func() {
				<-session.Done()
				cancel()
			}()

			err := script.NewRunner(session.Inputs()).RunFile(scriptCtx, path)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("Input script failed", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}
