package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTTLCache(t *testing.T) {
	t.Run("basic operations", func(t *testing.T) {
		cache := newTTLCache[TextClassification](5 * time.Minute)
		defer cache.Close()

		_, found := cache.get("missing")
		assert.False(t, found)

		value := TextClassification{Label: "neutral", Confidence: 0.5}
		cache.set("key1", value)

		got, found := cache.get("key1")
		assert.True(t, found)
		assert.Equal(t, value, got)
		assert.Equal(t, 1, cache.size())
	})

	t.Run("expiration", func(t *testing.T) {
		cache := newTTLCache[[]float64](50 * time.Millisecond)
		defer cache.Close()

		cache.set("key2", []float64{1, 2})
		_, found := cache.get("key2")
		assert.True(t, found)

		time.Sleep(100 * time.Millisecond)

		_, found = cache.get("key2")
		assert.False(t, found)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		cache := newTTLCache[string](time.Minute)
		cache.Close()
		assert.NotPanics(t, cache.Close)
	})
}
