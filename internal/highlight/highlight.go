//go:build !nosyntaxhighlight

// Package highlight colors diffs for terminal output.
package highlight

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	darkmode "github.com/thiagokokada/dark-mode-go"
)

var detectDarkMode = darkmode.IsDarkMode

// Dark resolves mode against the desktop color scheme.
func (m Mode) Dark() bool {
	switch m {
	case ModeDark:
		return true
	case ModeLight:
		return false
	default:
		if detectDarkMode == nil {
			return false
		}
		dark, err := detectDarkMode()
		if err != nil {
			slog.Debug("detect dark-mode", slog.Any("error", err))
			return false
		}
		return dark
	}
}

func styleFor(m Mode) *chroma.Style {
	name := "github"
	if m.Dark() {
		name = "github-dark"
	}
	if st := styles.Get(name); st != nil {
		return st
	}
	return styles.Fallback
}

// Diff writes diff to w with terminal colors.
func Diff(w io.Writer, diff string, m Mode) error {
	if diff != "" && !strings.HasSuffix(diff, "\n") {
		diff += "\n"
	}
	lexer := lexers.Get("diff")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, diff)
	if err != nil {
		return fmt.Errorf("tokenise diff: %w", err)
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		formatter = formatters.Fallback
	}
	return formatter.Format(w, styleFor(m), iterator)
}
