package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-insight/internal/common"
	"github.com/Veraticus/spice-insight/internal/model"
)

var (
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)\b`)
	// Opening tags at end of line missing their closing bracket.
	unclosedTagPattern = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	postedDatePrefix   = regexp.MustCompile(`^\d{2}/\d{2} `)
)

var cardPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

var genericNames = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
}

// OFXParser reads OFX and QFX statements. Amounts keep the statement's sign:
// debits are negative and credits positive.
type OFXParser struct {
	logger *slog.Logger
}

// NewOFXParser creates a new OFX parser.
func NewOFXParser(logger *slog.Logger) *OFXParser {
	return &OFXParser{logger: common.LoggerOrDefault(logger)}
}

// preprocess fixes common formatting issues in bank-exported files.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)
	return unclosedTagPattern.ReplaceAllString(content, "$1>")
}

// Parse reads every bank and credit card statement in the file.
func (p *OFXParser) Parse(ctx context.Context, reader io.Reader) ([]model.Transaction, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse OFX file: %w", common.ErrInvalidInput, err)
	}

	var (
		transactions      []model.Transaction
		bankStmts, ccStmt int
	)

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		bankStmts++
		transactions = append(transactions, p.convertList(stmt.BankTranList.Transactions, string(stmt.BankAcctFrom.AcctID))...)
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		ccStmt++
		transactions = append(transactions, p.convertList(stmt.BankTranList.Transactions, string(stmt.CCAcctFrom.AcctID))...)
	}

	p.logger.Info("Parsed OFX file",
		"total_transactions", len(transactions),
		"bank_statements", bankStmts,
		"cc_statements", ccStmt)

	return transactions, nil
}

func (p *OFXParser) convertList(list []ofxgo.Transaction, accountID string) []model.Transaction {
	txns := make([]model.Transaction, 0, len(list))
	for _, ofxTx := range list {
		txn, err := convertTransaction(ofxTx)
		if err != nil {
			p.logger.Warn("Skipping OFX transaction",
				"account", accountID,
				"fitid", string(ofxTx.FiTID),
				"error", err)
			continue
		}
		txns = append(txns, txn)
	}
	return txns
}

func convertTransaction(ofxTx ofxgo.Transaction) (model.Transaction, error) {
	amount, err := decimal.NewFromString(ofxTx.TrnAmt.FloatString(2))
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid amount: %w", err)
	}

	id := string(ofxTx.FiTID)
	if id == "" {
		id = "ofx-" + model.HashText(fmt.Sprintf("%s|%s|%s",
			ofxTx.DtPosted.Format(time.RFC3339), ofxTx.Name, amount.String()))[:16]
	}

	return model.Transaction{
		ID:          id,
		Date:        ofxTx.DtPosted.Time,
		Description: extractDescription(ofxTx),
		Amount:      amount.InexactFloat64(),
	}, nil
}

// extractDescription prefers PAYEE, then NAME, then MEMO when NAME is generic,
// and strips card-network prefixes.
func extractDescription(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && genericNames[strings.ToUpper(name)] {
		name = strings.TrimSpace(string(tx.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range cardPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	return postedDatePrefix.ReplaceAllString(name, "")
}
