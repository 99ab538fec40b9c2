// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// Transaction is one immutable input record produced by the parsing collaborator.
// Amount is signed: positive values are inflows, negative values are outflows.
type Transaction struct {
	Date        time.Time `json:"date"`
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
}

// IsInflow reports whether money entered the account.
func (t Transaction) IsInflow() bool {
	return t.Amount > 0
}

// Validate checks the fields the pipeline relies on.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("transaction id is required")
	}
	if t.Date.IsZero() {
		return fmt.Errorf("transaction %s: date is required", t.ID)
	}
	return nil
}

// DescriptionHash returns a stable key for caching per-description lookups.
func (t Transaction) DescriptionHash() string {
	return HashText(t.Description)
}

// HashText normalizes text and returns its hex SHA-256 digest.
func HashText(text string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", sum)
}
