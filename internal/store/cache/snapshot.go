// Package cache 是面向展示端的短时缓存层。只做派生投影：
// 由读取路径从永久层刷新，决策引擎从不写入、也从不读取它做决策。
package cache

import (
	"sync"
	"time"

	"tiller/internal/types"
)

type entry struct {
	snapshot  types.PositionSnapshot
	expiresAt time.Time
}

// SnapshotCache 按 symbol 缓存整体快照，整条替换，杜绝半更新可见。
type SnapshotCache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[string]entry
}

func NewSnapshotCache(ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SnapshotCache{
		ttl:     ttl,
		entries: make(map[string]entry),
	}
}

// Get 返回未过期的快照。
func (c *SnapshotCache) Get(symbol string) (types.PositionSnapshot, bool) {
	c.mu.RLock()
	e, ok := c.entries[symbol]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return types.PositionSnapshot{}, false
	}
	return e.snapshot, true
}

// Put 整体替换指定 symbol 的快照。
func (c *SnapshotCache) Put(snapshot types.PositionSnapshot) {
	c.mu.Lock()
	c.entries[snapshot.Symbol] = entry{
		snapshot:  snapshot,
		expiresAt: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}
