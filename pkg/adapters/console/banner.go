package console

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the Warden banner.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	if !IsTerminal(w) {
		p = termenv.Ascii
	}
	lines := []struct{ text, color string }{
		{" __      __                 _            ", "#fbbf24"},
		{" \\ \\    / /_ _ _ _ ___  ___| |___ _ _   ", "#f59e0b"},
		{"  \\ \\/\\/ / _` | '_/ _` |/ -_) ' \\| ' \\  ", "#f97316"},
		{"   \\_/\\_/\\__,_|_| \\__,_|\\___|_||_|_||_| ", "#ef4444"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
