package llm

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockProvider is a testify mock of Provider for use in tests.
type MockProvider struct {
	mock.Mock
}

// Name implements Provider.
func (m *MockProvider) Name() string {
	return "mock"
}

// Complete implements Provider.
func (m *MockProvider) Complete(ctx context.Context, req Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// ForOperation matches requests of the given operation.
func ForOperation(op Operation) any {
	return mock.MatchedBy(func(req Request) bool { return req.Operation == op })
}
