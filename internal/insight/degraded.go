package insight

import (
	"fmt"
	"strings"

	"github.com/Veraticus/spice-insight/internal/model"
)

// Degraded returns the record that stands in for a stage that failed. The
// error is not shown to the user.
func Degraded(stage string, _ error) model.InsightRecord {
	return model.InsightRecord{
		Stage:       stage,
		Title:       fmt.Sprintf("%s analysis failed", displayName(stage)),
		Description: "This part of the analysis could not be completed. The rest of your results are unaffected.",
		Sentiment:   model.SentimentNeutral,
		Degraded:    true,
	}
}

// Skipped reports input records that were left out because they could not be
// analyzed.
func Skipped(n int) model.InsightRecord {
	noun := "transactions were"
	if n == 1 {
		noun = "transaction was"
	}
	return model.InsightRecord{
		Stage:       "category",
		Title:       "Some transactions were skipped",
		Description: fmt.Sprintf("%d %s missing an id or date and left out of the analysis.", n, noun),
		Sentiment:   model.SentimentNeutral,
		KeyNumbers:  map[string]float64{"skipped": float64(n)},
		Degraded:    true,
	}
}

func displayName(stage string) string {
	if stage == "" {
		return "Stage"
	}
	return strings.ToUpper(stage[:1]) + stage[1:]
}
