package action

// Action represents input actions that can be performed in the host
type Action int

const (
	// Console controls, forwarded to the running adapter
	ButtonUp Action = iota
	ButtonDown
	ButtonLeft
	ButtonRight
	ButtonA
	ButtonB
	ButtonX
	ButtonY
	ButtonL
	ButtonR
	ButtonSelect
	ButtonStart

	// Host features
	HostMenu
	HostPauseToggle
	HostFastForwardToggle
	HostSnapshot
	HostQuit
	HostLogLevelIncrease
	HostLogLevelDecrease
)

// Category groups actions by who handles them.
type Category int

const (
	// CategoryConsole actions go through the input queue to the adapter.
	CategoryConsole Category = iota
	// CategoryHost actions are handled by the host itself.
	CategoryHost
)

// Info describes an action for logging and key help.
type Info struct {
	Name        string
	Description string
	Category    Category
}

var infos = map[Action]Info{
	ButtonUp:              {"up", "D-pad up", CategoryConsole},
	ButtonDown:            {"down", "D-pad down", CategoryConsole},
	ButtonLeft:            {"left", "D-pad left", CategoryConsole},
	ButtonRight:           {"right", "D-pad right", CategoryConsole},
	ButtonA:               {"a", "A button", CategoryConsole},
	ButtonB:               {"b", "B button", CategoryConsole},
	ButtonX:               {"x", "X button", CategoryConsole},
	ButtonY:               {"y", "Y button", CategoryConsole},
	ButtonL:               {"l", "Left shoulder", CategoryConsole},
	ButtonR:               {"r", "Right shoulder", CategoryConsole},
	ButtonSelect:          {"select", "Select button", CategoryConsole},
	ButtonStart:           {"start", "Start button", CategoryConsole},
	HostMenu:              {"menu", "Open pause menu", CategoryHost},
	HostPauseToggle:       {"pause", "Pause/resume", CategoryHost},
	HostFastForwardToggle: {"fastforward", "Toggle fast-forward", CategoryHost},
	HostSnapshot:          {"snapshot", "Save a PNG snapshot", CategoryHost},
	HostQuit:              {"quit", "Quit", CategoryHost},
	HostLogLevelIncrease:  {"loglevel+", "More verbose logs", CategoryHost},
	HostLogLevelDecrease:  {"loglevel-", "Less verbose logs", CategoryHost},
}

// GetInfo returns the description of an action. Unknown actions are
// reported as host actions named "unknown".
func GetInfo(act Action) Info {
	if info, ok := infos[act]; ok {
		return info
	}
	return Info{Name: "unknown", Description: "Unknown action", Category: CategoryHost}
}

// String returns the short name of the action.
func (a Action) String() string {
	return GetInfo(a).Name
}

// IsConsole reports whether the action is a console button.
func (a Action) IsConsole() bool {
	return GetInfo(a).Category == CategoryConsole
}

// Opposite returns the directional action that can never be held together
// with a. The second result is false for non-directional actions.
func (a Action) Opposite() (Action, bool) {
	switch a {
	case ButtonUp:
		return ButtonDown, true
	case ButtonDown:
		return ButtonUp, true
	case ButtonLeft:
		return ButtonRight, true
	case ButtonRight:
		return ButtonLeft, true
	}
	return a, false
}

// Parse looks an action up by its short name.
func Parse(name string) (Action, bool) {
	for act, info := range infos {
		if info.Name == name {
			return act, true
		}
	}
	return 0, false
}
