package event

// Type represents the type of input event
type Type int

const (
	Press   Type = iota // Button pressed down
	Release             // Button released
)

// FromPressed maps a pressed flag to an event type.
func FromPressed(pressed bool) Type {
	if pressed {
		return Press
	}
	return Release
}

func (t Type) String() string {
	if t == Press {
		return "press"
	}
	return "release"
}
