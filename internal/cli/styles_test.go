package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatHelpers(t *testing.T) {
	tests := []struct {
		format func(string) string
		name   string
		want   []string
	}{
		{name: "success", format: FormatSuccess, want: []string{SuccessIcon, "stored"}},
		{name: "error", format: FormatError, want: []string{ErrorIcon, "stored"}},
		{name: "warning", format: FormatWarning, want: []string{WarningIcon, "stored"}},
		{name: "info", format: FormatInfo, want: []string{InfoIcon, "stored"}},
		{name: "title", format: FormatTitle, want: []string{SpiceIcon, "stored"}},
		{name: "degraded", format: FormatDegraded, want: []string{"stored", "(degraded)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := tt.format("stored")
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
		})
	}
}
