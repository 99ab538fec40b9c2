package merchant

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/Veraticus/spice-insight/internal/common"
	"github.com/Veraticus/spice-insight/internal/model"
)

// Defaults for Config.
const (
	DefaultSimilarityThreshold = 0.8
	DefaultDimension           = 256
)

// Embedder returns a vector for a short text. Errors are expected and absorbed.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Config configures a Normalizer.
type Config struct {
	// SimilarityThreshold is the cosine similarity a key must exceed to join a cluster.
	SimilarityThreshold float64
	// Dimension is the length of hash fallback vectors.
	Dimension int
}

// Result is the outcome of normalizing one batch.
type Result struct {
	// Canonical maps every merchant key to its cluster's canonical name.
	Canonical map[string]string
	// Groups holds the batch's transactions per canonical name, in input order.
	Groups map[string][]model.CategorizedTransaction
	// Clusters in creation order.
	Clusters []model.MerchantCluster
	// Order lists canonical names in first-encounter order.
	Order []string
	// FallbackCount is how many keys used a hash vector instead of an embedding.
	FallbackCount int
}

// Normalizer clusters merchant keys with a greedy single pass.
type Normalizer struct {
	embedder  Embedder
	logger    *slog.Logger
	threshold float64
	dimension int
}

// NewNormalizer creates a Normalizer. embedder may be nil, in which case every
// key uses its hash vector.
func NewNormalizer(embedder Embedder, cfg Config, logger *slog.Logger) *Normalizer {
	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	return &Normalizer{
		embedder:  embedder,
		logger:    common.LoggerOrDefault(logger),
		threshold: cfg.SimilarityThreshold,
		dimension: cfg.Dimension,
	}
}

type cluster struct {
	canonical string
	vector    []float64
	members   []string
	// hashed clusters only accept hash-vector keys.
	hashed bool
}

// Normalize clusters the merchant keys of txns. Clustering depends on input
// order: each key joins the first existing cluster whose founding member it
// resembles, and clusters are never rebalanced. The same batch in the same
// order always yields the same clusters.
func (n *Normalizer) Normalize(ctx context.Context, txns []model.CategorizedTransaction) Result {
	keys := make([]string, len(txns))
	distinct := make([]string, 0, len(txns))
	seen := make(map[string]bool, len(txns))
	for i, txn := range txns {
		key := txn.MerchantKey
		if key == "" {
			key = ExtractKey(txn.Description)
		}
		keys[i] = key
		if !seen[key] {
			seen[key] = true
			distinct = append(distinct, key)
		}
	}

	result := Result{
		Canonical: make(map[string]string, len(distinct)),
		Groups:    make(map[string][]model.CategorizedTransaction),
	}

	var clusters []*cluster
	for _, key := range distinct {
		vec, fallback := n.vector(ctx, key)
		if fallback {
			result.FallbackCount++
		}

		joined := false
		for _, c := range clusters {
			if c.hashed != fallback {
				continue
			}
			if CosineSimilarity(vec, c.vector) > n.threshold {
				c.members = append(c.members, key)
				// Strictly shorter wins, so ties keep the earlier member.
				if utf8.RuneCountInString(key) < utf8.RuneCountInString(c.canonical) {
					c.canonical = key
				}
				joined = true
				break
			}
		}
		if !joined {
			clusters = append(clusters, &cluster{vector: vec, canonical: key, members: []string{key}, hashed: fallback})
		}
	}

	for _, c := range clusters {
		result.Clusters = append(result.Clusters, model.MerchantCluster{
			Canonical: c.canonical,
			Members:   c.members,
		})
		result.Order = append(result.Order, c.canonical)
		for _, m := range c.members {
			result.Canonical[m] = c.canonical
		}
	}

	for i, txn := range txns {
		txn.MerchantKey = keys[i]
		name := result.Canonical[keys[i]]
		result.Groups[name] = append(result.Groups[name], txn)
	}

	if result.FallbackCount > 0 {
		n.logger.Debug("merchant keys embedded with hash fallback",
			"fallback", result.FallbackCount,
			"keys", len(distinct))
	}
	return result
}

// vector returns the embedding for key, or its hash vector when embedding fails.
func (n *Normalizer) vector(ctx context.Context, key string) ([]float64, bool) {
	if n.embedder != nil && ctx.Err() == nil {
		vec, err := n.embedder.Embed(ctx, key)
		if err == nil && len(vec) > 0 {
			return vec, false
		}
	}
	return HashVector(key, n.dimension), true
}
