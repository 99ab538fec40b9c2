package model

// AnomalyFlag marks a transaction whose amount is an outlier for its merchant.
type AnomalyFlag struct {
	TransactionID string  `json:"transaction_id"`
	Merchant      string  `json:"merchant"`
	Reason        string  `json:"reason"`
	Amount        float64 `json:"amount"`
	ZScore        float64 `json:"z_score"`
	Confidence    float64 `json:"confidence"`
}
