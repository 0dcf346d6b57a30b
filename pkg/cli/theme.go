package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for terminal output.
type Theme struct {
	Primary lipgloss.Color // headings and labels
	Error   lipgloss.Color // error messages
	Dim     lipgloss.Color // help text, metadata
}

// DefaultTheme is the default theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Error:   lipgloss.Color("#ff5f87"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Heading lipgloss.Style
	Label   lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Border  lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Heading: lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		Dim:     lipgloss.NewStyle().Foreground(t.Dim),
		Border:  lipgloss.NewStyle().Foreground(t.Primary),
	}
}

// DefaultStyles are the styles for DefaultTheme.
var DefaultStyles = NewStyles(DefaultTheme)

// RenderHeading renders a section heading.
func (s Styles) RenderHeading(text string) string {
	return s.Heading.Render(text)
}

// RenderLabel renders a "label: value" pair with a styled label.
func (s Styles) RenderLabel(label, value string) string {
	return s.Label.Render(label+":") + " " + value
}

// RenderError renders an error line.
func (s Styles) RenderError(err error) string {
	return s.Error.Render("error: ") + err.Error()
}

// Frame renders a bordered block with a title line, for session views
// like the realtime talk status.
type Frame struct {
	Styles Styles
	Title  string
	Status string
}

// Render draws the frame around the given lines at the given width.
func (f Frame) Render(width int, lines []string) string {
	if width < 8 {
		width = 8
	}
	bc := f.Styles.Border
	inner := width - 4

	var out []string
	out = append(out, bc.Render("╭"+strings.Repeat("─", width-2)+"╮"))

	title := f.Styles.Heading.Render(f.Title)
	status := ""
	if f.Status != "" {
		status = f.Styles.Dim.Render("[" + f.Status + "]")
	}
	pad := max(0, width-5-lipgloss.Width(title)-lipgloss.Width(status))
	out = append(out, bc.Render("│")+" "+title+" "+status+strings.Repeat(" ", pad)+" "+bc.Render("│"))

	for _, line := range lines {
		if lipgloss.Width(line) > inner {
			line = truncateToWidth(line, inner-1) + "…"
		}
		pad := max(0, inner-lipgloss.Width(line))
		out = append(out, bc.Render("│")+" "+line+strings.Repeat(" ", pad)+" "+bc.Render("│"))
	}

	out = append(out, bc.Render("╰"+strings.Repeat("─", width-2)+"╯"))
	return strings.Join(out, "\n")
}

// truncateToWidth truncates a string to the given display width,
// handling wide characters correctly.
func truncateToWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	current := 0
	for i, r := range runes {
		w := lipgloss.Width(string(r))
		if current+w > width {
			return string(runes[:i])
		}
		current += w
	}
	return s
}

// Successf prints a styled success line to stdout.
func Successf(format string, args ...any) {
	fmt.Println(DefaultStyles.Heading.Render("✓") + " " + fmt.Sprintf(format, args...))
}
