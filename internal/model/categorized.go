package model

import "math"

// AssignmentSource records which rule chose a transaction's category.
type AssignmentSource string

// Assignment sources, in the order the Category Assigner tries them.
const (
	SourceIncome     AssignmentSource = "income"
	SourceTransfer   AssignmentSource = "transfer"
	SourceKeyword    AssignmentSource = "keyword"
	SourceClassifier AssignmentSource = "classifier"
	SourceAmount     AssignmentSource = "amount"
	SourceDefault    AssignmentSource = "default"
)

// ClassifierSignal is the optional output of the external text classifier.
type ClassifierSignal struct {
	Scores     map[string]float64 `json:"scores,omitempty"`
	Label      string             `json:"label"`
	Confidence float64            `json:"confidence"`
}

// Sentiment labels understood from the classifier.
const (
	LabelPositive = "positive"
	LabelNegative = "negative"
	LabelNeutral  = "neutral"
)

// CategorizedTransaction is a Transaction annotated by one pipeline run.
type CategorizedTransaction struct {
	Signal      *ClassifierSignal `json:"signal,omitempty"`
	Category    Category          `json:"category"`
	MerchantKey string            `json:"merchant_key"`
	Source      AssignmentSource  `json:"source"`
	Transaction
	Confidence float64 `json:"confidence"`
}

// ClampConfidence forces a confidence value into [0,1].
func ClampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c):
		return 0
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
