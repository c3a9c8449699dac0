// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"context"
	"fmt"
	"sync"

	"github.com/AleutianAI/sortbench/services/sortbench/buffer"
	"github.com/AleutianAI/sortbench/services/sortbench/metrics"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheEntries bounds the number of pristine datasets kept.
const DefaultCacheEntries = 8

type cacheKey struct {
	mode          Mode
	width, height int
	teeth         int
	seed          uint64
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%s/%dx%d/k%d/s%d", k.mode, k.width, k.height, k.teeth, k.seed)
}

// Cache memoizes pristine generated bytes so that regenerating before every
// run does not repeat the pre-sort. Concurrent requests for the same dataset
// share one generation.
type Cache struct {
	gen   *Generator
	limit int

	group singleflight.Group

	mu      sync.Mutex
	entries map[cacheKey][]byte
	order   []cacheKey
}

// NewCache wraps gen. limit ≤ 0 uses DefaultCacheEntries.
func NewCache(gen *Generator, limit int) *Cache {
	if limit <= 0 {
		limit = DefaultCacheEntries
	}
	return &Cache{
		gen:     gen,
		limit:   limit,
		entries: make(map[cacheKey][]byte),
	}
}

// Fill writes the dataset for (mode, dst dimensions, concurrency, seed) into
// dst, generating it on a miss.
func (c *Cache) Fill(ctx context.Context, dst *buffer.Working, mode Mode, concurrency int, seed uint64) error {
	key := cacheKey{mode: mode, width: dst.Width(), height: dst.Height(), seed: seed}
	if mode == Sawtooth {
		// Only the effective tooth count changes the output.
		key.teeth, _ = ToothLayout(dst.Len(), concurrency)
	}

	if data, ok := c.lookup(key); ok {
		metrics.RecordGeneration(mode.String(), true)
		return dst.CopyFrom(data)
	}

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if data, ok := c.lookup(key); ok {
			return data, nil
		}
		w, err := c.gen.Generate(ctx, mode, key.width, key.height, concurrency, seed)
		if err != nil {
			return nil, err
		}
		data := w.Bytes()
		c.store(key, data)
		metrics.RecordGeneration(mode.String(), false)
		return data, nil
	})
	if err != nil {
		return err
	}
	return dst.CopyFrom(v.([]byte))
}

// Generate returns a freshly allocated buffer holding the dataset.
func (c *Cache) Generate(ctx context.Context, mode Mode, width, height, concurrency int, seed uint64) (*buffer.Working, error) {
	w, err := buffer.New(width, height)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationPolicy, err)
	}
	if err := c.Fill(ctx, w, mode, concurrency, seed); err != nil {
		return nil, err
	}
	return w, nil
}

// Len returns the number of cached datasets.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Purge drops every cached dataset.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
	c.order = c.order[:0]
}

func (c *Cache) lookup(key cacheKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	return data, ok
}

func (c *Cache) store(key cacheKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		return
	}
	for len(c.order) >= c.limit {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
	c.entries[key] = data
	c.order = append(c.order, key)
}
