//go:build nosyntaxhighlight

package highlight

import (
	"io"
	"strings"
)

func (m Mode) Dark() bool { return m == ModeDark }

// Diff writes diff to w unchanged.
func Diff(w io.Writer, diff string, _ Mode) error {
	if diff != "" && !strings.HasSuffix(diff, "\n") {
		diff += "\n"
	}
	_, err := io.WriteString(w, diff)
	return err
}
