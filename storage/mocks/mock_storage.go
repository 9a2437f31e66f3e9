package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"go-link-registry/types"
)

// MockStorage is a mock Storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Put(ctx context.Context, record types.LinkRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockStorage) Get(ctx context.Context, code string) (types.LinkRecord, error) {
	args := m.Called(ctx, code)
	return args.Get(0).(types.LinkRecord), args.Error(1)
}

func (m *MockStorage) ContainsLive(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}
