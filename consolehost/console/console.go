// Package console describes the emulated systems a session can host and the
// adapter interface every system implements.
package console

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Type identifies an emulated system.
type Type string

const (
	NES     Type = "nes"
	GBA     Type = "gba"
	Pattern Type = "pattern"
)

// Spec holds the fixed properties of a console type.
type Spec struct {
	Type           Type
	Name           string
	Width          int
	Height         int
	Extensions     []string
	MaxFastForward int
}

var specs = map[Type]Spec{
	NES: {
		Type:           NES,
		Name:           "Nintendo Entertainment System",
		Width:          256,
		Height:         240,
		Extensions:     []string{"nes"},
		MaxFastForward: 4,
	},
	GBA: {
		Type:           GBA,
		Name:           "Game Boy Advance",
		Width:          240,
		Height:         160,
		Extensions:     []string{"gba"},
		MaxFastForward: 3,
	},
	Pattern: {
		Type:           Pattern,
		Name:           "Test pattern",
		Width:          256,
		Height:         240,
		MaxFastForward: 4,
	},
}

// SpecFor returns the properties of t.
func SpecFor(t Type) (Spec, bool) {
	s, ok := specs[t]
	return s, ok
}

// ParseType accepts a console name in any case.
func ParseType(name string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := specs[t]; !ok {
		return "", fmt.Errorf("unknown console type %q", name)
	}
	return t, nil
}

// FromExtension picks the console type for a ROM file extension, with or
// without the leading dot.
func FromExtension(ext string) (Type, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, s := range specs {
		for _, e := range s.Extensions {
			if e == ext {
				return s.Type, true
			}
		}
	}
	return "", false
}

// FromPath is FromExtension applied to a file name.
func FromPath(path string) (Type, bool) {
	return FromExtension(filepath.Ext(path))
}

// Extensions lists every ROM extension some console type accepts.
func Extensions() []string {
	var out []string
	for _, s := range specs {
		out = append(out, s.Extensions...)
	}
	sort.Strings(out)
	return out
}
