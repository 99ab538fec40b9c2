package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTextClassification(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantLabel  string
		wantConf   float64
		wantErr    bool
		wantScores int
	}{
		{
			name:       "plain json",
			content:    `{"label":"neutral","confidence":0.6,"scores":{"neutral":0.6,"positive":0.2,"negative":0.2}}`,
			wantLabel:  "neutral",
			wantConf:   0.6,
			wantScores: 3,
		},
		{
			name:      "markdown wrapped with chatter",
			content:   "Here you go:\n```json\n{\"label\": \"LABEL_0\", \"confidence\": 0.77}\n```",
			wantLabel: "negative",
			wantConf:  0.77,
		},
		{
			name:      "confidence clamped",
			content:   `{"label":"pos","confidence":1.4}`,
			wantLabel: "positive",
			wantConf:  1,
		},
		{
			name:       "unknown score keys dropped",
			content:    `{"label":"positive","confidence":0.9,"scores":{"positive":0.9,"joy":0.1}}`,
			wantLabel:  "positive",
			wantConf:   0.9,
			wantScores: 1,
		},
		{
			name:    "unknown label",
			content: `{"label":"ecstatic","confidence":0.9}`,
			wantErr: true,
		},
		{
			name:    "not json",
			content: "I think it is negative",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTextClassification(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, got.Label)
			assert.InDelta(t, tt.wantConf, got.Confidence, 1e-9)
			assert.Len(t, got.Scores, tt.wantScores)
		})
	}
}

func TestBuildClassificationPrompt_IncludesDescription(t *testing.T) {
	prompt := buildClassificationPrompt("  AMAZON MKTPLACE  ")
	assert.Contains(t, prompt, "Description: AMAZON MKTPLACE\n")
}
