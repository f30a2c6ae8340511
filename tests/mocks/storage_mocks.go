package mocks

import (
	"io"

	"github.com/stretchr/testify/mock"
)

// MockFileStorage implements storage.FileStorage
type MockFileStorage struct {
	mock.Mock
}

// Put stores a blob under key
func (m *MockFileStorage) Put(key string, content io.Reader) (int64, error) {
	args := m.Called(key, content)
	return args.Get(0).(int64), args.Error(1)
}

// Get retrieves a blob by key
func (m *MockFileStorage) Get(key string) (io.ReadCloser, error) {
	args := m.Called(key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// Delete removes a blob by key
func (m *MockFileStorage) Delete(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

// URL returns the retrieval location of key
func (m *MockFileStorage) URL(key string) string {
	args := m.Called(key)
	return args.String(0)
}
