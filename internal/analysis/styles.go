package analysis

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/spice-insight/internal/cli"
	"github.com/Veraticus/spice-insight/internal/model"
)

// Styles contains all styling definitions for result formatting.
type Styles struct {
	// Base styles from CLI package
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Info     lipgloss.Style
	Subtle   lipgloss.Style
	Normal   lipgloss.Style

	// Result-specific styles
	Box        lipgloss.Style
	Score      lipgloss.Style
	Positive   lipgloss.Style
	Neutral    lipgloss.Style
	Negative   lipgloss.Style
	Degraded   lipgloss.Style
	InsightBox lipgloss.Style
	PatternBox lipgloss.Style
	AnomalyBox lipgloss.Style
}

// NewStyles creates a new Styles instance with default styling.
func NewStyles() *Styles {
	s := &Styles{
		Title:    cli.TitleStyle,
		Subtitle: cli.SubtitleStyle,
		Success:  cli.SuccessStyle,
		Warning:  cli.WarningStyle,
		Error:    cli.ErrorStyle,
		Info:     cli.InfoStyle,
		Subtle:   cli.SubtleStyle,
		Normal:   lipgloss.NewStyle(),
	}

	s.Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(cli.SubtleColor).
		Padding(0, 1)

	s.Score = lipgloss.NewStyle().
		Bold(true).
		Foreground(cli.PrimaryColor)

	s.Positive = lipgloss.NewStyle().
		Bold(true).
		Foreground(cli.SuccessColor)

	s.Neutral = lipgloss.NewStyle().
		Bold(true).
		Foreground(cli.InfoColor)

	s.Negative = lipgloss.NewStyle().
		Bold(true).
		Foreground(cli.WarningColor)

	s.Degraded = lipgloss.NewStyle().
		Bold(true).
		Foreground(cli.ErrorColor).
		Background(lipgloss.Color("#2D0000"))

	s.InsightBox = lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(cli.InfoColor).
		Padding(0, 1).
		MarginTop(1)

	s.PatternBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(cli.SuccessColor).
		Padding(0, 1).
		MarginTop(1)

	s.AnomalyBox = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(cli.WarningColor).
		Padding(0, 1).
		MarginTop(1)

	return s
}

// WithWidth returns a new Styles instance adjusted for the given terminal width.
func (s *Styles) WithWidth(width int) *Styles {
	newStyles := *s

	if width > 0 && width < 100 {
		newStyles.Box = s.Box.Width(width - 4)
		newStyles.InsightBox = s.InsightBox.Width(width - 4)
		newStyles.PatternBox = s.PatternBox.Width(width - 4)
		newStyles.AnomalyBox = s.AnomalyBox.Width(width - 4)
	}

	return &newStyles
}

// ForSentiment returns the style for an insight's sentiment.
func (s *Styles) ForSentiment(sentiment model.Sentiment) lipgloss.Style {
	switch sentiment {
	case model.SentimentPositive:
		return s.Positive
	case model.SentimentNegative:
		return s.Negative
	case model.SentimentNeutral:
		return s.Neutral
	default:
		return s.Normal
	}
}

// ForScore returns the appropriate style for the given score value.
func (s *Styles) ForScore(score float64) lipgloss.Style {
	switch {
	case score >= 0.9:
		return s.Success
	case score >= 0.7:
		return s.Warning
	default:
		return s.Error
	}
}

// ForStatus returns the style for a stage status.
func (s *Styles) ForStatus(status StageStatus) lipgloss.Style {
	switch status {
	case StageComplete:
		return s.Success
	case StageProcessing:
		return s.Info
	case StageErrored:
		return s.Error
	default:
		return s.Subtle
	}
}

// RenderProgressBar creates an unstyled progress bar of the given width.
func (s *Styles) RenderProgressBar(progress float64, width int) string {
	if width <= 0 {
		width = 30
	}

	filled := int(float64(width) * progress)
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return repeatChar("█", filled) + repeatChar("░", width-filled)
}

// RenderBox renders content in a styled box with optional title.
func (s *Styles) RenderBox(content string, title string, style lipgloss.Style) string {
	if title != "" {
		// lipgloss v1.1.0 has no border titles
		titleStyled := s.Info.Bold(true).Render(" " + title + " ")
		return style.Render(titleStyled + "\n" + content)
	}
	return style.Render(content)
}

func repeatChar(char string, n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(char, n)
}
