package output

import (
	"io"
	"os"
	"runtime"

	"github.com/mattn/go-isatty"
)

// IsTerminal reports whether w is stdout or stderr attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if f != os.Stdout && f != os.Stderr {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SupportsColors checks if the terminal supports colors.
func SupportsColors() bool {
	return supportsColors(os.Getenv)
}

func supportsColors(getenv func(string) string) bool {
	// Check for explicit color disable
	if getenv("NO_COLOR") != "" {
		return false
	}

	// Check for explicit color enable
	if getenv("FORCE_COLOR") != "" {
		return true
	}

	// Modern Windows terminals support ANSI colors
	if runtime.GOOS == "windows" {
		return true
	}

	term := getenv("TERM")
	return term != "" && term != "dumb"
}

// UseColors reports whether output to w should be colored.
func UseColors(w io.Writer, noColor bool) bool {
	return !noColor && IsTerminal(w) && SupportsColors()
}
