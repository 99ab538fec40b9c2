// Package llm provides access to the external text-classification and
// embedding capabilities. Provider clients (OpenAI, Ollama) speak the wire
// protocols; the Adapter wraps them with per-call timeouts, a retry policy,
// rate limiting, a circuit breaker and response caching so that an unavailable
// provider degrades a single lookup instead of failing the pipeline.
package llm
