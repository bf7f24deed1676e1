// Package terminal renders frames in a terminal with tcell and turns key
// presses into input actions.
package terminal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/valerio/go-consolehost/consolehost/backend"
	"github.com/valerio/go-consolehost/consolehost/backend/terminal/render"
	"github.com/valerio/go-consolehost/consolehost/debug"
	"github.com/valerio/go-consolehost/consolehost/input"
	"github.com/valerio/go-consolehost/consolehost/input/action"
	"github.com/valerio/go-consolehost/consolehost/input/event"
	"github.com/valerio/go-consolehost/consolehost/video"
)

const (
	refreshInterval = time.Second / 60

	// Terminals report key repeats but never releases, so a console button
	// counts as released once no repeat arrived for this long.
	keyTimeout = 100 * time.Millisecond

	minTermWidth  = 80
	minTermHeight = 24
	logBufferSize = 200
)

// Backend implements backend.FrameConsumer using tcell for terminal
// rendering. Frames are copied on delivery and drawn by its own goroutine.
type Backend struct {
	screen tcell.Screen
	inputs *input.Manager
	title  string

	logBuffer  *render.LogBuffer
	logLevel   *slog.LevelVar
	prevLogger *slog.Logger

	mu     sync.Mutex
	frame  video.Frame
	frames uint64

	held map[action.Action]time.Time // poll goroutine only

	dirty     chan struct{}
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	keyEvents chan *tcell.EventKey
	now       func() time.Time
}

// New creates a terminal backend drawing on screen. Keys are routed
// through inputs. Use tcell.NewScreen for a real terminal.
func New(screen tcell.Screen, inputs *input.Manager, title string) *Backend {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	return &Backend{
		screen:    screen,
		inputs:    inputs,
		title:     title,
		logBuffer: render.NewLogBuffer(logBufferSize),
		logLevel:  level,
		held:      make(map[action.Action]time.Time),
		dirty:     make(chan struct{}, 1),
		stop:      make(chan struct{}),
		keyEvents: make(chan *tcell.EventKey, 64),
		now:       time.Now,
	}
}

// Init takes over the terminal and the default logger, whose output moves
// to the side panel until cleanup.
func (t *Backend) Init() error {
	if err := t.screen.Init(); err != nil {
		return fmt.Errorf("failed to initialize terminal: %w", err)
	}
	t.screen.SetStyle(tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorWhite))
	t.screen.Clear()

	t.prevLogger = slog.Default()
	slog.SetDefault(slog.New(render.NewLogBufferHandler(t.logBuffer, slog.LevelDebug)))

	t.inputs.On(action.HostLogLevelIncrease, func() { t.changeLogLevel(-4) })
	t.inputs.On(action.HostLogLevelDecrease, func() { t.changeLogLevel(4) })
	t.inputs.On(action.HostSnapshot, func() {
		t.mu.Lock()
		frame := t.frame.Clone()
		t.mu.Unlock()
		debug.TakeSnapshot(frame, t.title)
	})

	t.wg.Add(3)
	go t.pollEvents()
	go t.handleKeys()
	go t.drawLoop()

	slog.Info("Terminal backend initialized", "title", t.title)
	return nil
}

// UpdateTexture copies the frame and wakes the draw goroutine.
func (t *Backend) UpdateTexture(frame video.Frame) {
	t.mu.Lock()
	if len(t.frame.Pixels) != len(frame.Pixels) {
		t.frame.Pixels = make([]uint16, len(frame.Pixels))
	}
	copy(t.frame.Pixels, frame.Pixels)
	t.frame.Width, t.frame.Height = frame.Width, frame.Height
	t.frames++
	t.mu.Unlock()

	select {
	case t.dirty <- struct{}{}:
	default:
	}
}

// PrepareForCleanup stops the goroutines, restores the terminal and the
// previous logger.
func (t *Backend) PrepareForCleanup(ctx context.Context) error {
	t.stopOnce.Do(func() {
		close(t.stop)
		t.screen.Fini()
		if t.prevLogger != nil {
			slog.SetDefault(t.prevLogger)
		}
	})

	stopped := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
		slog.Info("Terminal backend cleaned up")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("terminal cleanup: %w", ctx.Err())
	}
}

// pollEvents forwards key events. PollEvent returns nil once the screen is
// finalised.
func (t *Backend) pollEvents() {
	defer t.wg.Done()
	for {
		ev := t.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return
		case *tcell.EventKey:
			select {
			case t.keyEvents <- ev:
			case <-t.stop:
				return
			}
		case *tcell.EventResize:
			t.screen.Sync()
			t.requestDraw()
		}
	}
}

// handleKeys owns the held-key table: presses arrive from the poll
// goroutine, releases are synthesised when a key stops repeating.
func (t *Backend) handleKeys() {
	defer t.wg.Done()
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case ev := <-t.keyEvents:
			t.processKeyEvent(ev)
		case <-ticker.C:
			t.expireKeys()
		}
	}
}

func (t *Backend) processKeyEvent(ev *tcell.EventKey) {
	act, ok := actionForKey(ev)
	if !ok {
		return
	}

	if !act.IsConsole() {
		t.inputs.Trigger(act, event.Press)
		t.inputs.Trigger(act, event.Release)
		return
	}

	if _, held := t.held[act]; !held {
		slog.Debug("Key press", "action", act)
		t.inputs.Trigger(act, event.Press)
	}
	t.held[act] = t.now()
}

func (t *Backend) expireKeys() {
	now := t.now()
	for act, lastSeen := range t.held {
		if now.Sub(lastSeen) >= keyTimeout {
			delete(t.held, act)
			slog.Debug("Key release", "action", act)
			t.inputs.Trigger(act, event.Release)
		}
	}
}

func (t *Backend) requestDraw() {
	select {
	case t.dirty <- struct{}{}:
	default:
	}
}

// drawLoop renders from its own copy of the frame so UpdateTexture only
// ever waits for a memcpy, never for tcell.
func (t *Backend) drawLoop() {
	defer t.wg.Done()
	var frame video.Frame
	for {
		select {
		case <-t.stop:
			return
		case <-t.dirty:
			t.mu.Lock()
			if len(frame.Pixels) != len(t.frame.Pixels) {
				frame.Pixels = make([]uint16, len(t.frame.Pixels))
			}
			copy(frame.Pixels, t.frame.Pixels)
			frame.Width, frame.Height = t.frame.Width, t.frame.Height
			count := t.frames
			t.mu.Unlock()

			t.render(frame, count)
			t.screen.Show()
		}
	}
}

// changeLogLevel moves the side panel filter by delta (slog levels are
// four apart), clamped to debug..error.
func (t *Backend) changeLogLevel(delta slog.Level) {
	old := t.logLevel.Level()
	next := min(max(old+delta, slog.LevelDebug), slog.LevelError)
	if next != old {
		t.logLevel.Set(next)
		slog.Info("Log filter changed", "from", old, "to", next)
	}
}

func (t *Backend) render(frame video.Frame, count uint64) {
	termWidth, termHeight := t.screen.Size()
	t.screen.Clear()

	if termWidth < minTermWidth || termHeight < minTermHeight {
		style := tcell.StyleDefault.Foreground(tcell.ColorRed)
		drawText(t.screen, 0, termHeight/2, termWidth, style,
			fmt.Sprintf("Terminal too small! Need at least %dx%d", minTermWidth, minTermHeight))
		return
	}

	gameCols := termWidth * 2 / 3
	gameRows := termHeight - 2
	drawn := t.drawFrame(frame, 0, 1, gameCols, gameRows)

	dividerX := drawn + 1
	t.drawBorders(termWidth, termHeight, dividerX, count)
	t.drawLogs(dividerX+1, 1, termWidth-dividerX-1, termHeight)
}

// drawFrame samples the frame into at most cols x rows cells and returns
// the number of columns used.
func (t *Backend) drawFrame(frame video.Frame, x0, y0, cols, rows int) int {
	if frame.Empty() {
		return cols
	}
	step := render.FitStep(frame.Width, frame.Height, cols, rows)
	if step == 0 {
		return 0
	}

	outCols := frame.Width / step
	for row := 0; row*2*step < frame.Height && row < rows; row++ {
		top := row * 2 * step
		bottom := top + step
		for col := 0; col < outCols; col++ {
			x := col * step
			topPixel := frame.At(x, top)
			bottomPixel := video.BlackColor
			if bottom < frame.Height {
				bottomPixel = frame.At(x, bottom)
			}
			ch, style := render.HalfBlock(topPixel, bottomPixel)
			t.screen.SetContent(x0+col, y0+row, ch, nil, style)
		}
	}
	return outCols
}

func (t *Backend) drawBorders(termWidth, termHeight, dividerX int, frames uint64) {
	borderStyle := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	titleStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)

	for y := 0; y < termHeight-1; y++ {
		t.screen.SetContent(dividerX, y, '│', nil, borderStyle)
	}

	drawText(t.screen, 1, 0, dividerX-1, titleStyle, fmt.Sprintf(" %s [frame %d] ", t.title, frames))
	drawText(t.screen, dividerX+2, 0, termWidth-dividerX-2, titleStyle,
		fmt.Sprintf(" Logs [%s] (-/+ filter) ", t.logLevel.Level()))

	helpText := " Z/X=A/B  Enter=start  Space=pause  F=fast-forward  F9=snapshot  Esc=quit "
	drawText(t.screen, 0, termHeight-1, termWidth, borderStyle, helpText)
}

func (t *Backend) drawLogs(startX, startY, width, termHeight int) {
	availableHeight := termHeight - startY - 1
	if width <= 0 || availableHeight <= 0 {
		return
	}

	debugStyle := tcell.StyleDefault.Foreground(tcell.ColorGray)
	infoStyle := tcell.StyleDefault.Foreground(tcell.ColorBlue)
	warnStyle := tcell.StyleDefault.Foreground(tcell.ColorYellow)
	errStyle := tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)

	for i, entry := range t.logBuffer.GetRecent(availableHeight, t.logLevel.Level()) {
		style := infoStyle
		switch {
		case entry.Level >= slog.LevelError:
			style = errStyle
		case entry.Level >= slog.LevelWarn:
			style = warnStyle
		case entry.Level < slog.LevelInfo:
			style = debugStyle
		}

		text := render.FormatLogEntry(entry)
		if len(text) > width && width > 3 {
			text = text[:width-3] + "..."
		}
		drawText(t.screen, startX, startY+i, width, style, text)
	}
}

func drawText(screen tcell.Screen, x, y, width int, style tcell.Style, text string) {
	i := 0
	for _, ch := range text {
		if i >= width {
			return
		}
		screen.SetContent(x+i, y, ch, nil, style)
		i++
	}
}

var _ backend.FrameConsumer = (*Backend)(nil)
