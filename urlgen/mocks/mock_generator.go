package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockGenerator is a mock Generator interface
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(length int) (string, error) {
	args := m.Called(length)
	return args.String(0), args.Error(1)
}
