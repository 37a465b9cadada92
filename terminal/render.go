package terminal

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"blockfall/tetris"
)

const (
	// ASCII colors.
	Cyan    = "36"
	Orange  = "38;5;214"
	Yellow  = "33"
	Red     = "31"
	Magenta = "35"
	White   = "37"

	resetPos    = "\033[H"        // Reset cursor position to 0,0
	clearScreen = "\033[2J\033[H" // Clear the screen and reset the cursor
	empty       = "  "
)

//go:embed "layout.tmpl"
var layout string

var colorMap = map[tetris.Kind]string{
	tetris.Line:   Cyan,
	tetris.LShape: Orange,
	tetris.Square: Yellow,
	tetris.ZShape: Red,
	tetris.TShape: Magenta,
}

type templateData struct {
	Grid    [tetris.Height][tetris.Width]string
	Score   int
	Message string
}

func block(color string) string {
	return fmt.Sprintf("\x1b[7m\x1b[%sm[]\x1b[0m", color)
}

func loadTemplate() (*template.Template, error) {
	// we use the console raw so new lines don't automatically transform into carriage return
	// to fix that we add a carriage return to every new line in the layout.
	l := strings.ReplaceAll(layout, "\n", "\r\n")
	l = strings.ReplaceAll(l, "Blockfall", "\033[1mBlockfall\033[0m")
	return template.New("layout").Parse(l)
}

// grid renders settled cells in white and the active piece in its color.
// Rows in hidden are left blank, which is how cleared rows flash.
func grid(s *tetris.Snapshot, hidden map[int]bool) [tetris.Height][tetris.Width]string {
	rendered := [tetris.Height][tetris.Width]string{}
	for y := range tetris.Height {
		for x := range tetris.Width {
			rendered[y][x] = empty
		}
	}
	if s == nil {
		return rendered
	}

	for _, c := range s.Settled {
		if !hidden[c.Row] {
			rendered[c.Row][c.Col] = block(White)
		}
	}
	// cells above the ceiling aren't drawn.
	for _, c := range s.Active {
		if c.Row >= 0 {
			rendered[c.Row][c.Col] = block(colorMap[s.Kind])
		}
	}
	return rendered
}

func message(s *tetris.Snapshot) string {
	if s == nil {
		return "(n)ew game  (q)uit"
	}
	switch s.State {
	case tetris.Paused:
		return "paused  (space) resume"
	case tetris.GameOver:
		return "Game Over!  (n)ew game"
	case tetris.Stopped:
		return "(n)ew game  (q)uit"
	default:
		return ""
	}
}
