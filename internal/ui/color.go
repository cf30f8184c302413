package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// SetColorForcing picks the Lip Gloss color profile. disable wins over force;
// with neither, NO_COLOR and the terminal decide.
func SetColorForcing(force, disable bool) {
	switch {
	case disable || strings.TrimSpace(os.Getenv("NO_COLOR")) != "":
		lipgloss.SetColorProfile(termenv.Ascii)
	case force:
		lipgloss.SetColorProfile(termenv.ANSI256)
	default:
		profile := termenv.EnvColorProfile()
		term := strings.ToLower(os.Getenv("TERM"))
		if profile == termenv.ANSI && strings.Contains(term, "256color") {
			profile = termenv.ANSI256
		}
		lipgloss.SetColorProfile(profile)
	}
}
