package console

import "github.com/gdamore/tcell/v2"

// Theme holds the colors of the full-screen console.
type Theme struct {
	BorderColor      tcell.Color
	BorderFocusColor tcell.Color
	MenuKeyColor     tcell.Color
	TitleColor       tcell.Color
}

// DefaultTheme returns a dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BorderColor:      tcell.ColorDodgerBlue,
		BorderFocusColor: tcell.ColorLightSkyBlue,
		MenuKeyColor:     tcell.ColorDodgerBlue,
		TitleColor:       tcell.ColorFuchsia,
	}
}
