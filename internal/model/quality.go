package model

// DataQualityScore summarizes how trustworthy one batch's categorization is.
type DataQualityScore struct {
	Completeness       float64 `json:"completeness"`
	CategorizationRate float64 `json:"categorization_rate"`
	Score              float64 `json:"score"`
	Total              int     `json:"total"`
}

// Grade returns a coarse label for the overall score.
func (q DataQualityScore) Grade() string {
	switch {
	case q.Score >= 0.9:
		return "excellent"
	case q.Score >= 0.7:
		return "good"
	case q.Score >= 0.5:
		return "fair"
	default:
		return "poor"
	}
}
