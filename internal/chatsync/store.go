package chatsync

import (
	"slices"
	"sync"

	"textenger/internal/model"
)

// Store 单个作用域的有序去重消息列表
// 始终按 (CreatedAt, ID) 升序，同一ID只出现一次
type Store struct {
	mu   sync.RWMutex
	msgs []*model.Message
	ids  map[int64]struct{}
}

func NewStore() *Store {
	return &Store{ids: make(map[int64]struct{})}
}

// Replace 用一页消息整体替换
func (s *Store) Replace(page []*model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msgs = make([]*model.Message, 0, len(page))
	s.ids = make(map[int64]struct{}, len(page))
	s.mergeLocked(page)
}

// PrependOlder 合并更早的一页历史，已存在的消息保留原副本
// 返回新增条数
func (s *Store) PrependOlder(page []*model.Message) int {
	return s.Merge(page)
}

// Merge 合并尚未持有的消息
func (s *Store) Merge(page []*model.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeLocked(page)
}

func (s *Store) mergeLocked(page []*model.Message) int {
	added := 0
	for _, m := range page {
		if m == nil {
			continue
		}
		if _, ok := s.ids[m.ID]; ok {
			continue
		}
		s.ids[m.ID] = struct{}{}
		s.msgs = append(s.msgs, m)
		added++
	}
	if added > 0 {
		slices.SortFunc(s.msgs, model.CompareMessages)
	}
	return added
}

// AppendLive 把实时消息插入到排序位置，重复ID返回 false
func (s *Store) AppendLive(m *model.Message) bool {
	if m == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ids[m.ID]; ok {
		return false
	}
	s.ids[m.ID] = struct{}{}
	i, _ := slices.BinarySearchFunc(s.msgs, m, model.CompareMessages)
	s.msgs = slices.Insert(s.msgs, i, m)
	return true
}

func (s *Store) Contains(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Snapshot 返回当前列表的副本
func (s *Store) Snapshot() []*model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.msgs)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}

// Oldest 最旧的一条，空时为 nil
func (s *Store) Oldest() *model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.msgs) == 0 {
		return nil
	}
	return s.msgs[0]
}

// Newest 最新的一条，空时为 nil
func (s *Store) Newest() *model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.msgs) == 0 {
		return nil
	}
	return s.msgs[len(s.msgs)-1]
}

func (s *Store) Reset() {
	s.Replace(nil)
}
