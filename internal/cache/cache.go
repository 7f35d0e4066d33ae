// Package cache implements the postal code to coordinate caches used by the
// geocode resolver. Entries never expire: a resolved postal code keeps its
// coordinate until the process restarts (memory, lru) or the key is flushed
// (redis).
package cache

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/model"
)

// Memory is an unbounded process-wide cache.
type Memory struct {
	mu sync.RWMutex
	m  map[string]model.Coordinate
}

func NewMemory() *Memory {
	return &Memory{m: map[string]model.Coordinate{}}
}

func (c *Memory) Get(_ context.Context, key string) (model.Coordinate, bool, error) {
	c.mu.RLock()
	v, ok := c.m[key]
	c.mu.RUnlock()
	return v, ok, nil
}

func (c *Memory) Put(_ context.Context, key string, v model.Coordinate) error {
	c.mu.Lock()
	c.m[key] = v
	c.mu.Unlock()
	return nil
}

func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// LRU bounds the cache by entry count. Entries leave only when evicted for
// capacity.
type LRU struct {
	lru *lru.Cache[string, model.Coordinate]
}

func NewLRU(size int) (*LRU, error) {
	if size <= 0 {
		size = 4096
	}
	c, err := lru.New[string, model.Coordinate](size)
	if err != nil {
		return nil, fmt.Errorf("lru cache: %w", err)
	}
	return &LRU{lru: c}, nil
}

func (c *LRU) Get(_ context.Context, key string) (model.Coordinate, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

func (c *LRU) Put(_ context.Context, key string, v model.Coordinate) error {
	c.lru.Add(key, v)
	return nil
}

func (c *LRU) Len() int { return c.lru.Len() }
