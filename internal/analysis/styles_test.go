package analysis

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-insight/internal/model"
)

func stripANSI(s string) string {
	for strings.Contains(s, "\x1b[") {
		start := strings.Index(s, "\x1b[")
		end := strings.Index(s[start:], "m")
		if end == -1 {
			break
		}
		s = s[:start] + s[start+end+1:]
	}
	return s
}

func TestRepeatChar(t *testing.T) {
	tests := []struct {
		name     string
		char     string
		expected string
		n        int
	}{
		{name: "zero repetitions", char: "x", n: 0, expected: ""},
		{name: "negative repetitions", char: "x", n: -5, expected: ""},
		{name: "multiple repetitions", char: "█", n: 5, expected: "█████"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, repeatChar(tt.char, tt.n))
		})
	}
}

func TestStyles_ForScore(t *testing.T) {
	styles := NewStyles()

	tests := []struct {
		want  lipgloss.Style
		name  string
		score float64
	}{
		{name: "excellent", score: 0.95, want: styles.Success},
		{name: "boundary 0.9", score: 0.9, want: styles.Success},
		{name: "good", score: 0.75, want: styles.Warning},
		{name: "boundary 0.7", score: 0.7, want: styles.Warning},
		{name: "poor", score: 0.2, want: styles.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, styles.ForScore(tt.score))
		})
	}
}

func TestStyles_ForSentimentAndStatus(t *testing.T) {
	styles := NewStyles()

	assert.Equal(t, styles.Positive, styles.ForSentiment(model.SentimentPositive))
	assert.Equal(t, styles.Negative, styles.ForSentiment(model.SentimentNegative))
	assert.Equal(t, styles.Neutral, styles.ForSentiment(model.SentimentNeutral))
	assert.Equal(t, styles.Normal, styles.ForSentiment("unknown"))

	assert.Equal(t, styles.Success, styles.ForStatus(StageComplete))
	assert.Equal(t, styles.Info, styles.ForStatus(StageProcessing))
	assert.Equal(t, styles.Error, styles.ForStatus(StageErrored))
	assert.Equal(t, styles.Subtle, styles.ForStatus(StageIdle))
}

func TestStyles_RenderBox(t *testing.T) {
	styles := NewStyles()

	tests := []struct {
		name    string
		content string
		title   string
	}{
		{name: "without title", content: "Test content"},
		{name: "with title", content: "Body", title: "Summary"},
		{name: "multiline", content: "Line 1\nLine 2", title: "Multi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stripped := stripANSI(styles.RenderBox(tt.content, tt.title, styles.Box))
			for _, line := range strings.Split(tt.content, "\n") {
				assert.Contains(t, stripped, line)
			}
			if tt.title != "" {
				assert.Contains(t, stripped, tt.title)
			}
		})
	}
}

func TestStyles_RenderProgressBar(t *testing.T) {
	styles := NewStyles()

	tests := []struct {
		name       string
		progress   float64
		width      int
		wantFilled int
		wantTotal  int
	}{
		{name: "zero width uses default", progress: 0.5, width: 0, wantFilled: 15, wantTotal: 30},
		{name: "clamped high", progress: 10, width: 20, wantFilled: 20, wantTotal: 20},
		{name: "clamped low", progress: -0.5, width: 20, wantFilled: 0, wantTotal: 20},
		{name: "truncates", progress: 0.999, width: 10, wantFilled: 9, wantTotal: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := styles.RenderProgressBar(tt.progress, tt.width)
			filled := strings.Count(bar, "█")
			assert.Equal(t, tt.wantFilled, filled)
			assert.Equal(t, tt.wantTotal, filled+strings.Count(bar, "░"))
		})
	}
}

func TestStyles_WithWidth(t *testing.T) {
	original := NewStyles()

	for _, width := range []int{40, 99} {
		adjusted := original.WithWidth(width)
		require.NotNil(t, adjusted)
		assert.NotEqual(t, original.InsightBox, adjusted.InsightBox, width)
	}
	for _, width := range []int{-1, 0, 100, 140} {
		assert.Equal(t, original.InsightBox, original.WithWidth(width).InsightBox, width)
	}
}
