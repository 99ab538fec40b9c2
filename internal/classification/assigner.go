// Package classification assigns every transaction one category from the
// fixed taxonomy.
package classification

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/Veraticus/spice-insight/internal/common"
	"github.com/Veraticus/spice-insight/internal/merchant"
	"github.com/Veraticus/spice-insight/internal/model"
)

// Confidences reported for each assignment source.
const (
	IncomeConfidence       = 0.9
	TransferConfidence     = 0.85
	KeywordConfidence      = 0.85
	AmountBucketConfidence = 0.6
	DefaultConfidence      = 0.6
	BlankDefaultConfidence = 0.5
)

// StrongSignal is the classifier confidence above which a label decides the category.
const StrongSignal = 0.7

const (
	smallPurchaseLimit  = 20.0
	mediumPurchaseLimit = 100.0
)

// SignalSource supplies the optional external classifier signal for a description.
// Implementations must not fail: a nil signal means none is available.
type SignalSource interface {
	Signal(ctx context.Context, text string) *model.ClassifierSignal
}

// compiledRule is a keyword set ready for matching.
type compiledRule struct {
	regex    *regexp.Regexp
	category model.Category
}

// Assigner maps transactions onto the category taxonomy.
type Assigner struct {
	logger   *slog.Logger
	transfer *regexp.Regexp
	rules    []compiledRule
	table    []KeywordSet
}

// NewAssigner compiles table into an Assigner. Every category in table must be a
// taxonomy member.
func NewAssigner(table []KeywordSet, logger *slog.Logger) (*Assigner, error) {
	rules := make([]compiledRule, 0, len(table))
	for _, set := range table {
		if !set.Category.IsValid() {
			return nil, fmt.Errorf("%w: category %q is not in the taxonomy", common.ErrInvalidConfig, set.Category)
		}
		regex, err := common.CompileWordPattern(set.Keywords)
		if err != nil {
			return nil, fmt.Errorf("failed to compile keywords for %s: %w", set.Category, err)
		}
		rules = append(rules, compiledRule{category: set.Category, regex: regex})
	}

	transfer, err := common.CompileWordPattern(TransferKeywords())
	if err != nil {
		return nil, fmt.Errorf("failed to compile transfer vocabulary: %w", err)
	}

	return &Assigner{
		logger:   common.LoggerOrDefault(logger),
		transfer: transfer,
		rules:    rules,
		table:    table,
	}, nil
}

// NewDefaultAssigner returns an Assigner over DefaultKeywordTable.
func NewDefaultAssigner(logger *slog.Logger) (*Assigner, error) {
	return NewAssigner(DefaultKeywordTable(), logger)
}

// Table returns the keyword table the Assigner was built from.
func (a *Assigner) Table() []KeywordSet {
	out := make([]KeywordSet, len(a.table))
	copy(out, a.table)
	return out
}

// Assign categorizes one transaction. signal may be nil.
func (a *Assigner) Assign(txn model.Transaction, signal *model.ClassifierSignal) model.CategorizedTransaction {
	out := model.CategorizedTransaction{
		Transaction: txn,
		MerchantKey: merchant.ExtractKey(txn.Description),
		Signal:      signal,
	}

	category, confidence, source := a.decide(txn, signal)
	out.Category = category
	out.Confidence = model.ClampConfidence(confidence)
	out.Source = source
	return out
}

func (a *Assigner) decide(txn model.Transaction, signal *model.ClassifierSignal) (model.Category, float64, model.AssignmentSource) {
	description := strings.TrimSpace(txn.Description)

	// Inflows never consult the classifier.
	if txn.IsInflow() {
		if description != "" && a.transfer.MatchString(description) {
			return model.CategoryTransfers, TransferConfidence, model.SourceTransfer
		}
		return model.CategoryIncome, IncomeConfidence, model.SourceIncome
	}

	if description == "" {
		return model.CategoryOther, BlankDefaultConfidence, model.SourceDefault
	}

	for _, rule := range a.rules {
		if rule.regex.MatchString(description) {
			return rule.category, KeywordConfidence, model.SourceKeyword
		}
	}

	if signal == nil {
		return model.CategoryOther, DefaultConfidence, model.SourceDefault
	}

	switch {
	case signal.Label == model.LabelPositive && signal.Confidence > StrongSignal:
		return model.CategoryInvestments, signal.Confidence, model.SourceClassifier
	case signal.Label == model.LabelNegative && signal.Confidence > StrongSignal:
		return model.CategoryBills, signal.Confidence, model.SourceClassifier
	}

	return amountBucket(txn.Amount), AmountBucketConfidence, model.SourceAmount
}

// amountBucket buckets a weakly-signaled outflow by magnitude.
func amountBucket(amount float64) model.Category {
	magnitude := math.Abs(amount)
	switch {
	case magnitude < smallPurchaseLimit:
		return model.CategoryFoodAndDining
	case magnitude < mediumPurchaseLimit:
		return model.CategoryShopping
	default:
		return model.CategoryMajorExpenses
	}
}

// AssignBatch categorizes txns in input order. Outflows whose description no
// keyword matches are offered to signals, which may be nil. Cancellation of ctx
// only stops classifier lookups; every transaction is still categorized.
func (a *Assigner) AssignBatch(ctx context.Context, txns []model.Transaction, signals SignalSource) []model.CategorizedTransaction {
	out := make([]model.CategorizedTransaction, 0, len(txns))
	degraded := 0
	// Repeated descriptions ask the signal source once per batch.
	asked := make(map[string]*model.ClassifierSignal)

	for _, txn := range txns {
		var signal *model.ClassifierSignal
		if signals != nil && a.needsSignal(txn) {
			key := txn.DescriptionHash()
			cached, ok := asked[key]
			switch {
			case ok:
				signal = cached
			case ctx.Err() == nil:
				signal = signals.Signal(ctx, txn.Description)
				asked[key] = signal
			}
			if signal == nil {
				degraded++
			}
		}
		out = append(out, a.Assign(txn, signal))
	}

	if degraded > 0 {
		a.logger.Debug("categorized without classifier signal",
			"transactions", degraded,
			"total", len(txns))
	}
	return out
}

// needsSignal reports whether the classifier could change txn's category.
func (a *Assigner) needsSignal(txn model.Transaction) bool {
	if txn.IsInflow() || strings.TrimSpace(txn.Description) == "" {
		return false
	}
	for _, rule := range a.rules {
		if rule.regex.MatchString(txn.Description) {
			return false
		}
	}
	return true
}
