package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/spice-insight/internal/analysis"
	"github.com/Veraticus/spice-insight/internal/service"
)

var _ service.ReportWriter = (*MockWriter)(nil)

// MockWriter is a mock implementation of ReportWriter for testing.
type MockWriter struct {
	WriteFunc      func(ctx context.Context, result *analysis.Result) error
	LastResult     *analysis.Result
	WriteCalls     []WriteCall
	WriteCallCount int
	mu             sync.Mutex
}

// WriteCall represents a single call to WriteResult.
type WriteCall struct {
	Error  error
	Result *analysis.Result
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		WriteCalls: make([]WriteCall, 0),
	}
}

// WriteResult implements the ReportWriter interface.
func (m *MockWriter) WriteResult(ctx context.Context, result *analysis.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount++
	m.LastResult = result

	var err error
	if m.WriteFunc != nil {
		err = m.WriteFunc(ctx, result)
	}

	m.WriteCalls = append(m.WriteCalls, WriteCall{
		Result: result,
		Error:  err,
	})

	return err
}

// GetWriteCalls returns a copy of all write calls.
func (m *MockWriter) GetWriteCalls() []WriteCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]WriteCall, len(m.WriteCalls))
	copy(calls, m.WriteCalls)
	return calls
}

// SetWriteError configures the mock to return err from every call.
func (m *MockWriter) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteFunc = func(context.Context, *analysis.Result) error {
		return err
	}
}
