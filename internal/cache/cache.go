// Package cache memoizes per-file scan results keyed by content hash, so
// an unchanged file never re-runs the full pipeline. A TTL-checked,
// checksum-verified entry, adapted from an on-disk JSON cache design to
// an in-memory expirable LRU, since a per-scan-process file cache has no
// need to survive a restart.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/blastshield/engine/internal/model"
)

// Key is a cache key: a file path plus the SHA-256 of its content, so a
// cache hit guarantees the content is byte-identical, not merely
// same-path (I6).
type Key struct {
	Path string
	Hash string
}

// HashContent computes the content half of a Key.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// KeyFor builds a Key for a FileInput.
func KeyFor(f model.FileInput) Key {
	return Key{Path: f.Path, Hash: HashContent(f.Content)}
}

// entry is the cached result for one file: its parsed ModuleAST and the
// violations pyast itself produced directly against that one file
// (parse_error/unsupported_language) — never the eight rule-engine
// violations, since those depend on the cross-file call graph and shared
// state, which must never be cached across files.
type entry struct {
	AST        *model.ModuleAST
	Violations []model.RuleViolation
}

// Cache is a bounded, TTL-expiring, in-memory store of per-file AST
// extraction results. Safe for concurrent use: the underlying
// expirable.LRU is internally mutex-guarded, so Cache holds no map or
// lock of its own.
type Cache struct {
	lru *lru.LRU[Key, entry]
}

// New returns a Cache holding at most size entries, each expiring ttl
// after insertion.
func New(size int, ttl time.Duration) *Cache {
	return &Cache{lru: lru.NewLRU[Key, entry](size, nil, ttl)}
}

// Get returns the cached ModuleAST and its own-file violations, if
// present and unexpired.
func (c *Cache) Get(f model.FileInput) (ast *model.ModuleAST, violations []model.RuleViolation, ok bool) {
	e, found := c.lru.Get(KeyFor(f))
	if !found {
		return nil, nil, false
	}
	return e.AST, e.Violations, true
}

// Put stores the ModuleAST and own-file violations extracted for a file.
func (c *Cache) Put(f model.FileInput, ast *model.ModuleAST, violations []model.RuleViolation) {
	c.lru.Add(KeyFor(f), entry{AST: ast, Violations: violations})
}

// Invalidate drops any cached entry for the given (path, content) pair,
// e.g. when a caller knows a downstream stage's configuration changed in
// a way that would make a cache hit produce a stale result.
func (c *Cache) Invalidate(f model.FileInput) {
	c.lru.Remove(KeyFor(f))
}

// Len reports the current number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}
