// Package ui renders command output for the terminal.
package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Banner printed by interactive commands
const Banner = `
 ┌─┐┌─┐┌─┐┌┬┐┌─┐┬─┐┌─┐┬ ┬┬  ┌─┐┬─┐
 ├─┘│ │└─┐ │ │  ├┬┘├─┤││││  ├┤ ├┬┘
 ┴  └─┘└─┘ ┴ └─┘┴└─┴ ┴└┴┘┴─┘└─┘┴└─
`

var (
	cyan    = lipgloss.Color("6")
	yellow  = lipgloss.Color("3")
	red     = lipgloss.Color("1")
	green   = lipgloss.Color("2")
	magenta = lipgloss.Color("5")
	grey    = lipgloss.Color("8")
)

// Styles used across commands
var (
	LabelStyle     = lipgloss.NewStyle().Foreground(cyan)
	ValueStyle     = lipgloss.NewStyle().Foreground(yellow)
	ErrorStyle     = lipgloss.NewStyle().Foreground(red).Bold(true)
	SuccessStyle   = lipgloss.NewStyle().Foreground(green)
	WarningStyle   = lipgloss.NewStyle().Foreground(yellow)
	HighlightStyle = lipgloss.NewStyle().Foreground(magenta).Bold(true)
	DimStyle       = lipgloss.NewStyle().Foreground(grey)
)

var (
	mu    sync.Mutex
	out   io.Writer = os.Stdout
	quiet bool
	plain bool
)

// SetOutput redirects all output; nil restores stdout
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	out = w
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// SetNoColor disables styling
func SetNoColor(noColor bool) {
	mu.Lock()
	defer mu.Unlock()
	plain = noColor
}

func render(style lipgloss.Style, s string) string {
	if plain {
		return s
	}
	return style.Render(s)
}

func emit(alwaysShow bool, s string) {
	mu.Lock()
	defer mu.Unlock()
	if quiet && !alwaysShow {
		return
	}
	fmt.Fprintln(out, s)
}

// PrintBanner prints the banner
func PrintBanner() {
	emit(false, render(LabelStyle, Banner))
}

// PrintError prints an error message, with an optional detail
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		msg = msg + ": " + fmt.Sprint(args[0])
	}
	emit(true, render(ErrorStyle, msg))
}

// PrintSuccess prints a success message
func PrintSuccess(msg string) {
	emit(false, render(SuccessStyle, msg))
}

// PrintInfo prints a label and value pair
func PrintInfo(label string, value string) {
	emit(false, render(LabelStyle, label+":")+" "+render(ValueStyle, value))
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprint(args[0])
	}
	emit(false, render(WarningStyle, msg))
}

// PrintHighlight prints a highlighted message
func PrintHighlight(msg string) {
	emit(false, render(HighlightStyle, msg))
}

// Print writes a pre-rendered block
func Print(block string) {
	emit(false, block)
}
