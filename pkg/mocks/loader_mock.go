package mocks

import (
	"context"
	"time"

	"github.com/goobi/goobi-production/pkg/diagram"
	"github.com/stretchr/testify/mock"
)

// MockSource is a mock implementation of diagram.Source interface.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Load(ctx context.Context, name string) (*diagram.Diagram, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*diagram.Diagram), args.Error(1)
}

func (m *MockSource) Modified(ctx context.Context, name string) (time.Time, error) {
	args := m.Called(ctx, name)

	return args.Get(0).(time.Time), args.Error(1)
}

func (m *MockSource) List(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]string), args.Error(1)
}
