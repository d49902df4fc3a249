package highlight

import "strings"

type Mode int

const (
	ModeAuto Mode = iota
	ModeLight
	ModeDark
)

func (m Mode) String() string {
	switch m {
	case ModeLight:
		return "light"
	case ModeDark:
		return "dark"
	default:
		return "auto"
	}
}

func ModeFromString(raw string) Mode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ModeDark.String():
		return ModeDark
	case ModeLight.String():
		return ModeLight
	default:
		return ModeAuto
	}
}
