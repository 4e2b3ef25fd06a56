// SoWR - River Vessel Tracking and Position Analytics
// Copyright 2026 GYulius
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/GYulius/SoWR-sub000

// Package cache provides the in-memory deduplication structures used by the
// position processor to drop redelivered messages.
package cache

import (
	"sync"
	"time"
)

// dedupEntry is a node in the doubly-linked recency list.
type dedupEntry struct {
	key       string
	seenAt    time.Time
	prev      *dedupEntry
	next      *dedupEntry
	expiresAt time.Time
}

// DedupCache is a thread-safe LRU set with TTL, keyed by message fingerprint
// (vesselId plus recorded timestamp). A bounded capacity with LRU eviction
// keeps memory flat under redelivery storms; TTL expiry keeps a fingerprint
// from suppressing a legitimately re-sent report forever.
//
// All operations are O(1): a hashmap gives lookups, a doubly-linked list with
// sentinel head/tail gives recency ordering and eviction.
type DedupCache struct {
	mu sync.RWMutex

	capacity int
	ttl      time.Duration

	items map[string]*dedupEntry

	// head.next is most recently seen, tail.prev is least recently seen.
	head *dedupEntry
	tail *dedupEntry

	hits   int64
	misses int64
}

// NewDedupCache creates a deduplication cache with the given capacity and TTL.
// Non-positive arguments fall back to defaults sized for a single-node fleet.
func NewDedupCache(capacity int, ttl time.Duration) *DedupCache {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	c := &DedupCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*dedupEntry, capacity),
		head:     &dedupEntry{},
		tail:     &dedupEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Seen reports whether the fingerprint was recorded within the TTL, and if
// not, records it now. This is the single call the processor makes per
// message: true means drop the message as a redelivery.
func (c *DedupCache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()

	if entry, exists := c.items[key]; exists {
		if !now.After(entry.expiresAt) {
			c.moveToFront(entry)
			c.hits++
			return true
		}
		// Expired fingerprint, treat as freshly seen.
		c.removeEntry(entry)
	}

	entry := &dedupEntry{
		key:       key,
		seenAt:    now,
		expiresAt: now.Add(c.ttl),
	}
	c.addToFront(entry)
	c.items[key] = entry

	for len(c.items) > c.capacity {
		c.evictOldest()
	}

	c.misses++
	return false
}

// Contains checks membership without recording the key or touching recency.
func (c *DedupCache) Contains(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry, exists := c.items[key]; exists {
		return !time.Now().After(entry.expiresAt)
	}
	return false
}

// Remove deletes a fingerprint. Returns true if it was present.
func (c *DedupCache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.items[key]; exists {
		c.removeEntry(entry)
		return true
	}
	return false
}

// Len returns the current number of fingerprints held.
func (c *DedupCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// CleanupExpired drops all expired fingerprints and returns how many were
// removed. Expiry is otherwise lazy, so a periodic sweep keeps Len honest.
func (c *DedupCache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0

	for entry := c.tail.prev; entry != c.head; {
		prev := entry.prev
		if now.After(entry.expiresAt) {
			c.removeEntry(entry)
			removed++
		}
		entry = prev
	}
	return removed
}

// Stats returns hit/miss counters and the current size.
func (c *DedupCache) Stats() (hits, misses int64, size int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses, len(c.items)
}

// list helpers, caller must hold the lock

func (c *DedupCache) addToFront(entry *dedupEntry) {
	entry.prev = c.head
	entry.next = c.head.next
	c.head.next.prev = entry
	c.head.next = entry
}

func (c *DedupCache) moveToFront(entry *dedupEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	c.addToFront(entry)
}

func (c *DedupCache) removeEntry(entry *dedupEntry) {
	entry.prev.next = entry.next
	entry.next.prev = entry.prev
	delete(c.items, entry.key)
}

func (c *DedupCache) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.removeEntry(oldest)
}
