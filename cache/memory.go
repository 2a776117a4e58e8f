package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemorySize is the number of entries kept by a MemoryBackend when no
// size is given.
const DefaultMemorySize = 4096

// MemoryOptions configures a MemoryBackend.
type MemoryOptions struct {
	// Size is the maximum number of entries. Each cached object uses up to
	// two entries.
	Size int
	// TTL is how long entries live. Zero disables expiry.
	TTL time.Duration
}

// MemoryBackend is an in-memory LRU backend with optional expiry.
type MemoryBackend struct {
	lru *expirable.LRU[string, []byte]
}

var _ Backend = (*MemoryBackend)(nil)

func NewMemoryBackend(options *MemoryOptions) *MemoryBackend {
	if options == nil {
		options = &MemoryOptions{}
	}
	size := options.Size
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &MemoryBackend{
		lru: expirable.NewLRU[string, []byte](size, nil, options.TTL),
	}
}

func (b *MemoryBackend) Get(key string) ([]byte, bool, error) {
	v, ok := b.lru.Get(key)
	return v, ok, nil
}

func (b *MemoryBackend) Put(key string, value []byte) error {
	b.lru.Add(key, value)
	return nil
}

func (b *MemoryBackend) Remove(key string) error {
	b.lru.Remove(key)
	return nil
}

func (b *MemoryBackend) Close() error {
	b.lru.Purge()
	return nil
}
