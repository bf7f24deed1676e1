package terminal

import (
	"github.com/gdamore/tcell/v2"
	"github.com/valerio/go-consolehost/consolehost/input"
	"github.com/valerio/go-consolehost/consolehost/input/action"
)

// tcellKeyNameMap converts tcell keys to key names used in default mappings.
var tcellKeyNameMap = map[tcell.Key]string{
	tcell.KeyEnter:  "Enter",
	tcell.KeyTab:    "Tab",
	tcell.KeyUp:     "Up",
	tcell.KeyDown:   "Down",
	tcell.KeyLeft:   "Left",
	tcell.KeyRight:  "Right",
	tcell.KeyEscape: "Escape",
	tcell.KeyF9:     "F9",
}

// buildKeyMapping creates the key mapping from default mappings.
func buildKeyMapping() map[tcell.Key]action.Action {
	mapping := make(map[tcell.Key]action.Action)
	for key, keyName := range tcellKeyNameMap {
		if act, ok := input.GetDefaultMapping(keyName); ok {
			mapping[key] = act
		}
	}
	mapping[tcell.KeyCtrlC] = action.HostQuit
	return mapping
}

// buildRuneMapping creates the rune mapping from default mappings. Single
// character key names map to their rune.
func buildRuneMapping() map[rune]action.Action {
	mapping := make(map[rune]action.Action)
	for keyName, act := range input.DefaultKeyMap {
		if r := []rune(keyName); len(r) == 1 {
			mapping[r[0]] = act
		}
	}
	if act, ok := input.GetDefaultMapping("Space"); ok {
		mapping[' '] = act
	}
	return mapping
}

var (
	keyMapping  = buildKeyMapping()
	runeMapping = buildRuneMapping()
)

func actionForKey(ev *tcell.EventKey) (action.Action, bool) {
	if ev.Key() == tcell.KeyRune {
		act, ok := runeMapping[ev.Rune()]
		return act, ok
	}
	act, ok := keyMapping[ev.Key()]
	return act, ok
}
