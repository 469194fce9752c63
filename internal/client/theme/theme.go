// Package theme holds the user's appearance preference shown on the
// ThemeSettings screen. Palettes are out of scope; only the choice is kept.
package theme

import "fmt"

// Mode is the selected appearance.
type Mode string

const (
	Light  Mode = "light"
	Dark   Mode = "dark"
	System Mode = "system"
)

// Default is the mode before the user picks one.
const Default = System

// Parse accepts "light", "dark" or "system". An empty string yields Default.
func Parse(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return Default, nil
	case Light, Dark, System:
		return m, nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

// Toggle flips light to dark and anything else to light.
func (m Mode) Toggle() Mode {
	if m == Light {
		return Dark
	}
	return Light
}
