// Package syncutil provides keyed locking primitives used to serialize
// per-entity work without a lock object per entity.
package syncutil

import (
	"hash/fnv"
	"sync"
)

const shardCount = 256

// ShardedMutex maps string keys onto a fixed pool of mutexes. Memory stays
// bounded no matter how many keys appear; keys that hash to the same shard
// contend with each other.
type ShardedMutex struct {
	shards [shardCount]sync.Mutex
}

// Lock acquires the mutex for key and returns its unlock function.
func (s *ShardedMutex) Lock(key string) func() {
	mu := &s.shards[shardIdx(key)]
	mu.Lock()
	return mu.Unlock
}

func shardIdx(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % shardCount
}
