package model

// Sentiment tags an insight for the narrative collaborator.
type Sentiment string

// Sentiments.
const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// InsightRecord is the uniform output unit of every analysis stage.
type InsightRecord struct {
	KeyNumbers      map[string]float64 `json:"key_numbers,omitempty" yaml:"key_numbers,omitempty"`
	Stage           string             `json:"stage" yaml:"stage"`
	Title           string             `json:"title" yaml:"title"`
	Description     string             `json:"description" yaml:"description"`
	Sentiment       Sentiment          `json:"sentiment" yaml:"sentiment"`
	Recommendations []string           `json:"recommendations,omitempty" yaml:"recommendations,omitempty"`
	Degraded        bool               `json:"degraded,omitempty" yaml:"degraded,omitempty"`
}
