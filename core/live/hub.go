package live

import (
	"sync"
)

// Hub 按艺术家分发听众变更通知
// 每个订阅者持有一个容量 1 的通知 channel；发布是非阻塞的，
// 慢订阅者只会合并掉中间的变更，不会阻塞发布方。
type Hub struct {
	mu   sync.RWMutex
	subs map[int64]map[chan struct{}]struct{} // artistID -> subscriber set
}

// NewHub 创建通知中心
func NewHub() *Hub {
	return &Hub{
		subs: make(map[int64]map[chan struct{}]struct{}),
	}
}

// Subscribe 订阅某个艺术家的听众变更，返回通知 channel 和取消函数
func (h *Hub) Subscribe(artistID int64) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	set, ok := h.subs[artistID]
	if !ok {
		set = make(map[chan struct{}]struct{})
		h.subs[artistID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[artistID]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, artistID)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish 通知该艺术家的所有订阅者听众数可能已变化
func (h *Hub) Publish(artistID int64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[artistID] {
		select {
		case ch <- struct{}{}:
		default:
			// 订阅者已有待处理通知，合并
		}
	}
}

// Subscribers 返回当前订阅该艺术家的连接数
func (h *Hub) Subscribers(artistID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[artistID])
}
