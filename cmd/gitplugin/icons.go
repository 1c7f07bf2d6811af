package gitplugin

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/midweste/wp-git-plugin-repository/internal/config"
	"github.com/midweste/wp-git-plugin-repository/internal/lib/updater"
)

// getColorConfigFunc provides access to the flags from root.go
// This is set in root.go's init() function
var getColorConfigFunc func() config.ConfigFlags

// SetColorConfigFunc sets the function to access color config
func SetColorConfigFunc(fn func() config.ConfigFlags) {
	getColorConfigFunc = fn
}

func getColorConfig() config.ConfigFlags {
	if getColorConfigFunc != nil {
		return getColorConfigFunc()
	}
	return config.ConfigFlags{Color: config.ColorModeAuto}
}

// isTerminalFn is swapped in tests.
var isTerminalFn = func() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// shouldUseColors determines if colors should be used based on color mode and TTY status
func shouldUseColors() bool {
	switch getColorConfig().Color {
	case config.ColorModeAlways:
		return true
	case config.ColorModeNever:
		return false
	default:
		return isTerminalFn()
	}
}

var (
	styleOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	styleFail    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	styleMuted   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleVersion = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

type icon struct {
	glyph string
	text  string
	style lipgloss.Style
}

func (i icon) String() string {
	if !shouldUseColors() {
		return i.text
	}
	return i.style.Render(i.glyph)
}

var (
	iconCheck = icon{glyph: "✓", text: "[✓]", style: styleOK}
	iconClose = icon{glyph: "✗", text: "[✗]", style: styleFail}
	iconAlert = icon{glyph: "!", text: "[!]", style: styleWarn}
	iconSame  = icon{glyph: "=", text: "[=]", style: styleMuted}
)

func IconCheck() string { return iconCheck.String() }
func IconClose() string { return iconClose.String() }
func IconAlert() string { return iconAlert.String() }

// IconOutcome maps a resolution outcome to its status marker.
func IconOutcome(o updater.Outcome) string {
	switch o {
	case updater.OutcomeAvailable:
		return iconCheck.String()
	case updater.OutcomeUnverified:
		return iconAlert.String()
	case updater.OutcomeFailed:
		return iconClose.String()
	default:
		return iconSame.String()
	}
}

// Version renders a version number, highlighted on a color terminal.
func Version(v string) string {
	if !shouldUseColors() {
		return v
	}
	return styleVersion.Render(v)
}

// Muted renders secondary text.
func Muted(s string) string {
	if !shouldUseColors() {
		return s
	}
	return styleMuted.Render(s)
}
