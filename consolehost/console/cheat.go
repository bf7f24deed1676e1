package console

import (
	"errors"
	"fmt"
	"strings"
)

// CheatType is the code format of a cheat.
type CheatType int

const (
	ActionReplay CheatType = iota
	GameShark
	CodeBreaker
	GameGenie6
	GameGenie8
)

var cheatTypeNames = map[CheatType]string{
	ActionReplay: "ActionReplay",
	GameShark:    "GameShark",
	CodeBreaker:  "CodeBreaker",
	GameGenie6:   "GameGenie6",
	GameGenie8:   "GameGenie8",
}

func (t CheatType) String() string {
	if name, ok := cheatTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("CheatType(%d)", int(t))
}

// ParseCheatType accepts the type names case-insensitively, ignoring
// spaces, dashes and underscores ("game-genie-6" works).
func ParseCheatType(name string) (CheatType, error) {
	key := normalizeCheatName(name)
	for t, n := range cheatTypeNames {
		if strings.ToLower(n) == key {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown cheat type %q", name)
}

func normalizeCheatName(name string) string {
	return strings.ToLower(strings.NewReplacer(" ", "", "-", "", "_", "").Replace(name))
}

var ErrInvalidCheat = errors.New("invalid cheat")

// Cheat is a code the adapter patches into the running game.
type Cheat struct {
	Code   string
	Type   CheatType
	Name   string
	Active bool
}

// ParseCheat reads the TYPE:CODE form used on the command line. The cheat
// is returned active and named after its code.
func ParseCheat(s string) (Cheat, error) {
	typeName, code, ok := strings.Cut(s, ":")
	if !ok {
		return Cheat{}, fmt.Errorf("%w: %q is not TYPE:CODE", ErrInvalidCheat, s)
	}
	t, err := ParseCheatType(typeName)
	if err != nil {
		return Cheat{}, fmt.Errorf("%w: %w", ErrInvalidCheat, err)
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Cheat{}, fmt.Errorf("%w: empty code", ErrInvalidCheat)
	}
	return Cheat{Code: code, Type: t, Name: code, Active: true}, nil
}
