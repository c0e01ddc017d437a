package storage

import (
	"errors"
	"hash/fnv"
	"math/bits"
	"sync"
	"time"
)

// ShardedMapStorage is a thread-safe key-value storage,
// divided into segments (shards) to reduce contention for locking
type ShardedMapStorage struct {
	shards    []*MapStorage
	shardMask uint32
}

// NewShardedMapStorage creates a new instance of ShardedMapStorage.
// The requestedShards parameter must be a power of two for efficient allocation.
// The maximum allowed number of shards is 64.
func NewShardedMapStorage(requestedShards uint) (*ShardedMapStorage, error) {
	if bits.OnesCount(requestedShards) != 1 {
		return nil, errors.New("requested shards must be a power of 2")
	}

	if requestedShards > 64 {
		return nil, errors.New("requested shards must be less or equal than 64")
	}

	s := &ShardedMapStorage{
		shards:    make([]*MapStorage, requestedShards),
		shardMask: uint32(requestedShards - 1),
	}

	var i uint
	for i = 0; i < requestedShards; i++ {
		s.shards[i] = NewMapStorage()
	}

	return s, nil
}

// getShardIndex returns index of shard by key
func (s *ShardedMapStorage) getShardIndex(key string) uint32 {
	hash := fnv.New32a()
	hash.Write([]byte(key)) //nolint:errcheck

	return hash.Sum32() & s.shardMask
}

// Get returns the value and true if the key is found. Otherwise, "", false.
func (s *ShardedMapStorage) Get(key string) (string, bool) {
	return s.shards[s.getShardIndex(key)].Get(key)
}

// Set writes the value based on the options. Returns true if recording has been performed.
func (s *ShardedMapStorage) Set(key, value string, options SetOptions) bool {
	return s.shards[s.getShardIndex(key)].Set(key, value, options)
}

// Delete deletes the key. Returns true if the key existed and was deleted.
func (s *ShardedMapStorage) Delete(key string) bool {
	return s.shards[s.getShardIndex(key)].Delete(key)
}

// Exists reports whether the key is present and not expired
func (s *ShardedMapStorage) Exists(key string) bool {
	return s.shards[s.getShardIndex(key)].Exists(key)
}

// Expiry returns the remaining lifetime and status as ExpiryStatus
func (s *ShardedMapStorage) Expiry(key string) (time.Duration, ExpiryStatus) {
	return s.shards[s.getShardIndex(key)].Expiry(key)
}

// Persist removes the expiration date of the key, making it eternal.
// Returns 1 if successful, 0 if the key was not found or had no TTL
func (s *ShardedMapStorage) Persist(key string) int64 {
	return s.shards[s.getShardIndex(key)].Persist(key)
}

// Keys collects matching live keys from every shard. Order is unspecified
func (s *ShardedMapStorage) Keys(pattern string) []string {
	var keys []string
	for _, shard := range s.shards {
		keys = append(keys, shard.Keys(pattern)...)
	}
	return keys
}

// Len sums the live key counts of all shards
func (s *ShardedMapStorage) Len() int {
	n := 0
	for _, shard := range s.shards {
		n += shard.Len()
	}
	return n
}

// DeleteExpired samples up to limit keys from each shard in parallel and
// deletes the expired ones
func (s *ShardedMapStorage) DeleteExpired(limit int) float64 {
	var wg sync.WaitGroup
	var totalRatio float64
	var mu sync.Mutex // protects totalRatio

	shardCount := len(s.shards)
	wg.Add(shardCount)

	for _, shard := range s.shards {
		go func(m *MapStorage) {
			ratio := m.DeleteExpired(limit)

			mu.Lock()
			totalRatio += ratio
			mu.Unlock()

			wg.Done()
		}(shard)
	}

	wg.Wait()

	return totalRatio / float64(shardCount)
}
