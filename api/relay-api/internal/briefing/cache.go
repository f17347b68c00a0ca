// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_briefing

import (
	"sync"
	"time"

	"github.com/rapidaai/callbridge/pkg/commons"
)

// DefaultFallback is spoken to the human agent when no briefing is pending
// for the transferred call.
const DefaultFallback = "Incoming transfer from the screening assistant. Context not available."

// Cache maps a call identifier (or phone number as fallback key) to one
// pending spoken briefing. Writes overwrite; reads pop. Entries older than
// the TTL are pruned on write so abandoned transfers cannot grow the map
// without bound. Safe for concurrent use across relay instances.
type Cache struct {
	logger   commons.Logger
	fallback string
	ttl      time.Duration

	mu      sync.Mutex
	entries map[string]entry

	// clock is injectable for testing; defaults to time.Now.
	clock func() time.Time
}

type entry struct {
	sentence string
	storedAt time.Time
}

// NewCache creates a briefing cache with the given unclaimed-entry TTL.
func NewCache(logger commons.Logger, ttl time.Duration) *Cache {
	return &Cache{
		logger:   logger,
		fallback: DefaultFallback,
		ttl:      ttl,
		entries:  make(map[string]entry),
		clock:    time.Now,
	}
}

// SetFallback overrides the sentence returned on a miss.
func (c *Cache) SetFallback(sentence string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fallback = sentence
}

// Put stores the pending briefing for key, replacing any previous one.
func (c *Cache) Put(key, sentence string) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prune()
	c.entries[key] = entry{sentence: sentence, storedAt: c.clock()}
	c.logger.Debugf("briefing stored: key=%s", key)
}

// Pop removes and returns the pending briefing for key. A miss (or an entry
// past the TTL) returns the fallback sentence, never an error; at-most-once
// delivery is the contract.
func (c *Cache) Pop(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.logger.Debugf("briefing miss: key=%s", key)
		return c.fallback
	}
	delete(c.entries, key)
	if c.ttl > 0 && c.clock().Sub(e.storedAt) > c.ttl {
		c.logger.Debugf("briefing expired: key=%s", key)
		return c.fallback
	}
	return e.sentence
}

// Drop removes any pending briefing for key without reading it. Called when
// a call ends with its transfer never picked up.
func (c *Cache) Drop(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// prune drops unclaimed entries past the TTL. Caller holds the lock.
func (c *Cache) prune() {
	if c.ttl <= 0 {
		return
	}
	cutoff := c.clock().Add(-c.ttl)
	for key, e := range c.entries {
		if e.storedAt.Before(cutoff) {
			delete(c.entries, key)
			c.logger.Debugf("briefing pruned: key=%s", key)
		}
	}
}
