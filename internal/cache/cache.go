// Package cache stores evidence query results so repeated claims do not hit
// the vector index twice.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// keyPrefix versions the key space; bump it when the cached payload changes shape
const keyPrefix = "realign:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key derives a stable cache key from its parts (backend, collection, query
// text, result count). Parts are joined with a separator that cannot appear
// in normal text so ("ab","c") and ("a","bc") differ.
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return keyPrefix + hex.EncodeToString(hash[:])
}

// Nop is a cache that never stores anything
type Nop struct{}

func (Nop) Get(string) ([]byte, bool)               { return nil, false }
func (Nop) Set(string, []byte, time.Duration) error { return nil }
func (Nop) Delete(string) error                     { return nil }
func (Nop) Clear() error                            { return nil }
