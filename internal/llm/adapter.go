package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Veraticus/spice-insight/internal/common"
	"github.com/Veraticus/spice-insight/internal/model"
)

// Capability names used for breakers, logs and metrics.
const (
	CapabilityClassify = "classify"
	CapabilityEmbed    = "embed"
	CapabilityGenerate = "generate"
)

// Call outcomes reported to the CallObserver.
const (
	OutcomeOK       = "ok"
	OutcomeCached   = "cached"
	OutcomeError    = "error"
	OutcomeDisabled = "disabled"
)

// CallObserver is notified once per logical capability call.
type CallObserver interface {
	ObserveExternalCall(capability, outcome string)
}

// AdapterConfig configures an Adapter.
type AdapterConfig struct {
	Breaker   BreakerSettings
	Retry     common.RetryPolicy
	CacheTTL  time.Duration
	RateLimit int
}

// Adapter wraps a Client so every call is cached, rate limited, guarded by a
// circuit breaker and retried under an explicit policy with per-attempt timeouts.
// A nil Client makes every call report ErrCapabilityUnavailable.
type Adapter struct {
	client          Client
	observer        CallObserver
	logger          *slog.Logger
	limiter         *rateLimiter
	classifications *ttlCache[TextClassification]
	embeddings      *ttlCache[[]float64]
	breakers        map[string]*gobreaker.CircuitBreaker[any]
	retry           common.RetryPolicy
}

// NewAdapter creates an Adapter around client.
func NewAdapter(client Client, cfg AdapterConfig, logger *slog.Logger, observer CallObserver) *Adapter {
	logger = common.LoggerOrDefault(logger)

	return &Adapter{
		client:          client,
		observer:        observer,
		logger:          logger,
		limiter:         newRateLimiter(cfg.RateLimit),
		classifications: newTTLCache[TextClassification](cfg.CacheTTL),
		embeddings:      newTTLCache[[]float64](cfg.CacheTTL),
		breakers: map[string]*gobreaker.CircuitBreaker[any]{
			CapabilityClassify: newBreaker(CapabilityClassify, cfg.Breaker, logger),
			CapabilityEmbed:    newBreaker(CapabilityEmbed, cfg.Breaker, logger),
			CapabilityGenerate: newBreaker(CapabilityGenerate, cfg.Breaker, logger),
		},
		retry: cfg.Retry.Normalize(),
	}
}

// Available reports whether a provider is configured at all.
func (a *Adapter) Available() bool {
	return a != nil && a.client != nil
}

// Classify returns the classifier's verdict for text, or an error when the
// capability is unavailable after retries.
func (a *Adapter) Classify(ctx context.Context, text string) (TextClassification, error) {
	if !a.Available() {
		a.observe(CapabilityClassify, OutcomeDisabled)
		return TextClassification{}, common.ErrCapabilityUnavailable
	}

	key := model.HashText(text)
	if cached, ok := a.classifications.get(key); ok {
		a.observe(CapabilityClassify, OutcomeCached)
		return cached, nil
	}

	result, err := execute(ctx, a, CapabilityClassify, func(ctx context.Context) (TextClassification, error) {
		return a.client.ClassifyText(ctx, text)
	})
	if err != nil {
		return TextClassification{}, err
	}

	a.classifications.set(key, result)
	return result, nil
}

// Signal is the never-failing form of Classify used by the Category Assigner.
// Any failure is logged and yields nil.
func (a *Adapter) Signal(ctx context.Context, text string) *model.ClassifierSignal {
	result, err := a.Classify(ctx, text)
	if err != nil {
		if a.Available() {
			a.logger.Debug("classifier signal unavailable, using local rules", "error", err)
		}
		return nil
	}
	return &model.ClassifierSignal{
		Label:      result.Label,
		Confidence: result.Confidence,
		Scores:     result.Scores,
	}
}

// Embed returns the embedding vector for text. Callers own the fallback.
func (a *Adapter) Embed(ctx context.Context, text string) ([]float64, error) {
	if !a.Available() {
		a.observe(CapabilityEmbed, OutcomeDisabled)
		return nil, common.ErrCapabilityUnavailable
	}

	key := model.HashText(text)
	if cached, ok := a.embeddings.get(key); ok {
		a.observe(CapabilityEmbed, OutcomeCached)
		return cached, nil
	}

	vector, err := execute(ctx, a, CapabilityEmbed, func(ctx context.Context) ([]float64, error) {
		return a.client.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}

	a.embeddings.set(key, vector)
	return vector, nil
}

// Narrate produces free text for the narrative stage. Results are not cached.
func (a *Adapter) Narrate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if !a.Available() {
		a.observe(CapabilityGenerate, OutcomeDisabled)
		return "", common.ErrCapabilityUnavailable
	}

	return execute(ctx, a, CapabilityGenerate, func(ctx context.Context) (string, error) {
		return a.client.Generate(ctx, systemPrompt, prompt)
	})
}

// Close stops background goroutines and cleans up resources.
func (a *Adapter) Close() error {
	if a == nil {
		return nil
	}
	a.classifications.Close()
	a.embeddings.Close()
	return nil
}

// execute runs fn through the limiter, the capability's breaker and the retry policy.
func execute[T any](ctx context.Context, a *Adapter, capability string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	waitCtx := ctx
	if a.retry.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, a.retry.AttemptTimeout)
		defer cancel()
	}
	if err := a.limiter.wait(waitCtx); err != nil {
		a.observe(capability, OutcomeError)
		return zero, fmt.Errorf("%w: %s: %w", common.ErrCapabilityUnavailable, capability, err)
	}

	var result T
	run := func() error {
		return common.WithRetry(ctx, func(attemptCtx context.Context) error {
			out, err := fn(attemptCtx)
			if err != nil {
				return err
			}
			result = out
			return nil
		}, a.retry)
	}

	var err error
	if breaker := a.breakers[capability]; breaker != nil {
		_, err = breaker.Execute(func() (any, error) {
			return nil, run()
		})
	} else {
		err = run()
	}

	if err != nil {
		a.observe(capability, OutcomeError)
		if isBreakerOpen(err) {
			a.logger.Debug("capability circuit open", "capability", capability)
		} else {
			a.logger.Warn("external capability call failed",
				"capability", capability,
				"error", err)
		}
		return zero, fmt.Errorf("%w: %s: %w", common.ErrCapabilityUnavailable, capability, err)
	}

	a.observe(capability, OutcomeOK)
	return result, nil
}

func (a *Adapter) observe(capability, outcome string) {
	if a != nil && a.observer != nil {
		a.observer.ObserveExternalCall(capability, outcome)
	}
}
