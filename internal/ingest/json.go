package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-insight/internal/common"
	"github.com/Veraticus/spice-insight/internal/model"
)

// dateLayouts are tried in order for the date field.
var dateLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"01/02/2006",
}

// Record is one input transaction as the parsing collaborator emits it.
// Amount accepts both JSON numbers and quoted decimals.
type Record struct {
	ID          string          `json:"id"`
	Date        string          `json:"date"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

type envelope struct {
	Transactions []Record `json:"transactions"`
}

// ParseJSON reads either a bare array of records or an object with a
// "transactions" array.
func ParseJSON(ctx context.Context, reader io.Reader) ([]model.Transaction, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON input: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []Record
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0:
		return nil, fmt.Errorf("%w: empty input", common.ErrInvalidInput)
	case trimmed[0] == '[':
		err = json.Unmarshal(trimmed, &records)
	default:
		var env envelope
		err = json.Unmarshal(trimmed, &env)
		records = env.Transactions
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode transactions: %w", common.ErrInvalidInput, err)
	}

	txns := make([]model.Transaction, 0, len(records))
	for i, rec := range records {
		txn, err := rec.Transaction()
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %w", common.ErrInvalidInput, i, err)
		}
		txns = append(txns, txn)
	}
	return txns, nil
}

// Transaction converts the record. Amounts are rounded to cents.
func (r Record) Transaction() (model.Transaction, error) {
	date, err := parseDate(r.Date)
	if err != nil {
		return model.Transaction{}, err
	}
	return model.Transaction{
		ID:          strings.TrimSpace(r.ID),
		Date:        date,
		Description: r.Description,
		Amount:      r.Amount.Round(2).InexactFloat64(),
	}, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}
