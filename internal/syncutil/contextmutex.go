package syncutil

import (
	"context"
	"sync"
)

// ContextShardedMutex is a sharded mutex whose acquisition can be abandoned
// when the caller's context ends. Each shard is a one-slot channel so the
// wait can sit in a select alongside ctx.Done().
type ContextShardedMutex struct {
	shards [shardCount]chan struct{}
	once   sync.Once
}

func NewContextShardedMutex() *ContextShardedMutex {
	m := &ContextShardedMutex{}
	m.init()
	return m
}

func (m *ContextShardedMutex) init() {
	m.once.Do(func() {
		for i := range m.shards {
			m.shards[i] = make(chan struct{}, 1)
			m.shards[i] <- struct{}{}
		}
	})
}

// LockContext acquires the shard for key, returning an unlock function the
// caller must invoke. If ctx ends first, the lock is not taken and the
// context error is returned.
func (m *ContextShardedMutex) LockContext(ctx context.Context, key string) (func(), error) {
	m.init()
	shard := m.shards[shardIdx(key)]

	select {
	case <-shard:
		return func() { shard <- struct{}{} }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
