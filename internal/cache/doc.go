// Package cache provides the bounded in-memory store for synthesized audio.
// Entries are evicted in insertion order once the cache is full.
package cache
