package input

import "github.com/valerio/go-consolehost/consolehost/input/action"

// DefaultKeyMap provides default key mappings that work across backends.
// Backends can use these mappings as a base and override/extend as needed.
var DefaultKeyMap = map[string]action.Action{
	// Console controls
	"z":     action.ButtonA,
	"x":     action.ButtonB,
	"c":     action.ButtonX,
	"v":     action.ButtonY,
	"q":     action.ButtonL,
	"e":     action.ButtonR,
	"Enter": action.ButtonStart,
	"Tab":   action.ButtonSelect,
	"Up":    action.ButtonUp,
	"Down":  action.ButtonDown,
	"Left":  action.ButtonLeft,
	"Right": action.ButtonRight,

	// Alternative arrow keys (WASD)
	"w": action.ButtonUp,
	"s": action.ButtonDown,
	"a": action.ButtonLeft,
	"d": action.ButtonRight,

	// Host controls
	"Space":  action.HostPauseToggle,
	"p":      action.HostPauseToggle,
	"f":      action.HostFastForwardToggle,
	"m":      action.HostMenu,
	"F9":     action.HostSnapshot,
	"Escape": action.HostQuit,

	"+": action.HostLogLevelIncrease,
	"=": action.HostLogLevelIncrease, // Alternative without shift
	"-": action.HostLogLevelDecrease,
	"_": action.HostLogLevelDecrease, // Alternative with shift
}

// GetDefaultMapping returns the default action for a key, if one exists
func GetDefaultMapping(key string) (action.Action, bool) {
	act, ok := DefaultKeyMap[key]
	return act, ok
}
