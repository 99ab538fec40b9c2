package model

// Frequency is the inferred cadence of a recurring payment.
type Frequency string

// Frequencies. FrequencyNone means the cadence did not fit any known band.
const (
	FrequencyNone      Frequency = ""
	FrequencyDaily     Frequency = "Daily"
	FrequencyWeekly    Frequency = "Weekly"
	FrequencyMonthly   Frequency = "Monthly"
	FrequencyQuarterly Frequency = "Quarterly"
	FrequencyYearly    Frequency = "Yearly"
)

// RecurringPattern is the Pattern Detector's verdict for one canonical merchant.
type RecurringPattern struct {
	Merchant         string    `json:"merchant"`
	Frequency        Frequency `json:"frequency,omitempty"`
	Description      string    `json:"description"`
	Confidence       float64   `json:"confidence"`
	MeanAmount       float64   `json:"mean_amount"`
	TransactionCount int       `json:"transaction_count"`
	IsRecurring      bool      `json:"is_recurring"`
}
