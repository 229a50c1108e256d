package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryItem struct {
	value     []byte
	expiresAt time.Time
}

// Memory is an in-process expiring LRU store.
type Memory struct {
	lru *expirable.LRU[string, memoryItem]
	now func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates a store holding at most size entries, each living at most maxTTL.
func NewMemory(size int, maxTTL time.Duration) *Memory {
	if size <= 0 {
		size = 1024
	}
	return &Memory{
		lru: expirable.NewLRU[string, memoryItem](size, nil, maxTTL),
		now: time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	item, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !item.expiresAt.IsZero() && m.now().After(item.expiresAt) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return item.value, true, nil
}

// Set stores value. A ttl of zero keeps the entry until the store-wide TTL evicts it.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	item := memoryItem{value: append([]byte(nil), value...)}
	if ttl > 0 {
		item.expiresAt = m.now().Add(ttl)
	}
	m.lru.Add(key, item)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// Len returns the number of live entries.
func (m *Memory) Len() int {
	return m.lru.Len()
}

func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}
