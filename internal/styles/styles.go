package styles

import (
	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/compat"
)

var (
	Bold   = lipgloss.NewStyle().Bold(true)
	Faint  = lipgloss.NewStyle().Foreground(compat.AdaptiveColor{Light: lipgloss.Color("#9B9B9B"), Dark: lipgloss.Color("#5C5C5C")})
	Header = lipgloss.NewStyle().Bold(true).PaddingRight(2)
	Cell   = lipgloss.NewStyle().PaddingRight(2)

	Passed  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	Failed  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	Errored = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	Skipped = lipgloss.NewStyle().Foreground(compat.AdaptiveColor{Light: lipgloss.Color("#A49FA5"), Dark: lipgloss.Color("#777777")})

	TagLabel = lipgloss.NewStyle().Foreground(compat.AdaptiveColor{Light: lipgloss.Color("#FFFFFF"), Dark: lipgloss.Color("#000000")}).
			Background(lipgloss.Color("#7D56F4")).
			PaddingRight(1).
			PaddingLeft(1).
			MarginRight(1)
)
