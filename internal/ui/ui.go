// Package ui styles command output.
//
// Colors are only emitted when stdout is a terminal and the environment
// allows them (NO_COLOR, TERM=dumb). Otherwise every Render function returns
// its input unchanged.
package ui

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const (
	ColorPass   = "#22C55E"
	ColorWarn   = "#F59E0B"
	ColorFail   = "#EF4444"
	ColorAccent = "#3B82F6"
)

var (
	mu       sync.RWMutex
	renderer = newRenderer(os.Stdout)
)

// SetOutput points the package renderer at out and re-detects its color
// profile.
func SetOutput(out io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	renderer = newRenderer(out)
}

func newRenderer(out io.Writer) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(out)
	r.SetColorProfile(Profile(out))
	return r
}

// Profile returns the color profile for out: Ascii unless out is a terminal.
func Profile(out io.Writer) termenv.Profile {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return termenv.Ascii
	}
	return termenv.NewOutput(f).EnvColorProfile()
}

func render(s, hex string, bold bool) string {
	mu.RLock()
	r := renderer
	mu.RUnlock()
	return r.NewStyle().Foreground(lipgloss.Color(hex)).Bold(bold).Render(s)
}

// RenderPass renders s as success.
func RenderPass(s string) string { return render(s, ColorPass, true) }

// RenderWarn renders s as a warning.
func RenderWarn(s string) string { return render(s, ColorWarn, true) }

// RenderFail renders s as an error.
func RenderFail(s string) string { return render(s, ColorFail, true) }

// RenderAccent highlights s.
func RenderAccent(s string) string { return render(s, ColorAccent, false) }

// RenderStatus renders a status label in its lifecycle color.
func RenderStatus(label, hex string) string { return render(label, hex, true) }
