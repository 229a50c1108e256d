// Package di provides a small dependency injection container with typed tokens.
package di

import (
	"fmt"
	"sync"
)

// ServiceRegistry resolves registered services by name.
type ServiceRegistry interface {
	Get(name string) any
}

// Container registers eager values. Lazy singletons go through RegisterToken.
type Container interface {
	ServiceRegistry
	Register(name string, value any)
	registerFactory(name string, factory func(ServiceRegistry) any)
}

type entry struct {
	once    sync.Once
	value   any
	factory func(ServiceRegistry) any
}

type container struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewContainer creates an empty container.
func NewContainer() Container {
	return &container{entries: make(map[string]*entry)}
}

func (c *container) Register(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := &entry{value: value}
	e.once.Do(func() {})
	c.entries[name] = e
}

func (c *container) registerFactory(name string, factory func(ServiceRegistry) any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = &entry{factory: factory}
}

// Get resolves a service, building it on first use. Panics if the name is unknown.
func (c *container) Get(name string) any {
	c.mu.RLock()
	e, ok := c.entries[name]
	c.mu.RUnlock()

	if !ok {
		panic(fmt.Sprintf("di: service %q not registered", name))
	}

	e.once.Do(func() {
		e.value = e.factory(c)
	})

	return e.value
}

// Token is a typed handle for a registered service.
type Token[T any] struct {
	name string
}

// NewToken creates a token with the given registration name.
func NewToken[T any](name string) Token[T] {
	return Token[T]{name: name}
}

// RegisterToken registers a lazy singleton factory for the token.
func RegisterToken[T any](c Container, token Token[T], factory func(ServiceRegistry) T) {
	c.registerFactory(token.name, func(sr ServiceRegistry) any {
		return factory(sr)
	})
}

// GetToken resolves the token's service with its static type.
func GetToken[T any](sr ServiceRegistry, token Token[T]) T {
	v, ok := sr.Get(token.name).(T)
	if !ok {
		panic(fmt.Sprintf("di: service %q has unexpected type", token.name))
	}
	return v
}
