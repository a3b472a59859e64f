package services

import (
	"fmt"
	"strings"
	"sync"
)

// MockStore is an in-memory Store for tests and for running without redis.
type MockStore struct {
	mu   sync.Mutex
	data map[string]string
}

func NewMockStore() *MockStore {
	ret := MockStore{
		data: map[string]string{},
	}
	return &ret
}

func (self *MockStore) Get(key string) (string, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	if value, ok := self.data[key]; ok {
		return value, nil
	}
	return "", fmt.Errorf("key missing: %s", key)
}

func (self *MockStore) Set(key string, value string) error {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.data[key] = value
	return nil
}

func (self *MockStore) GetRecursive(prefix string) ([]Node, error) {
	self.mu.Lock()
	defer self.mu.Unlock()
	var ret []Node
	for key, value := range self.data {
		if strings.HasPrefix(key, prefix) {
			ret = append(ret, Node{Key: key, Value: value})
		}
	}
	return ret, nil
}
