package chatsync_test

import (
	"math/rand/v2"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textenger/internal/chatsync"
	"textenger/internal/model"
)

var t0 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func msg(id int64, author int64, at time.Duration) *model.Message {
	return &model.Message{ID: id, Kind: model.KindChannel, ChannelID: 1, AuthorID: author, CreatedAt: t0.Add(at)}
}

func ids(msgs []*model.Message) []int64 {
	out := make([]int64, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func requireOrdered(t *testing.T, msgs []*model.Message) {
	t.Helper()
	seen := make(map[int64]bool, len(msgs))
	for i, m := range msgs {
		require.False(t, seen[m.ID], "duplicate id %d", m.ID)
		seen[m.ID] = true
		if i > 0 {
			require.Negative(t, model.CompareMessages(msgs[i-1], m), "out of order at %d", i)
		}
	}
}

func TestStoreMergeIsIdempotent(t *testing.T) {
	s := chatsync.NewStore()
	page := []*model.Message{msg(1, 1, 0), msg(2, 1, time.Second), msg(3, 2, 2*time.Second)}

	assert.Equal(t, 3, s.PrependOlder(page))
	assert.Equal(t, 0, s.PrependOlder(page))
	assert.False(t, s.AppendLive(msg(2, 1, time.Second)))
	assert.Equal(t, []int64{1, 2, 3}, ids(s.Snapshot()))
}

func TestStorePrependOlderKeepsHeldCopy(t *testing.T) {
	s := chatsync.NewStore()
	held := msg(5, 1, 5*time.Second)
	held.Content = "live"
	require.True(t, s.AppendLive(held))

	stale := msg(5, 1, 5*time.Second)
	stale.Content = "history"
	s.PrependOlder([]*model.Message{msg(4, 1, 4*time.Second), stale})

	snap := s.Snapshot()
	assert.Equal(t, []int64{4, 5}, ids(snap))
	assert.Same(t, held, snap[1])
}

func TestStoreReplace(t *testing.T) {
	s := chatsync.NewStore()
	s.AppendLive(msg(9, 1, 9*time.Second))
	s.Replace([]*model.Message{msg(3, 1, 3*time.Second), msg(1, 1, time.Second), msg(3, 1, 3*time.Second)})

	assert.Equal(t, []int64{1, 3}, ids(s.Snapshot()))
	assert.False(t, s.Contains(9))
	assert.EqualValues(t, 1, s.Oldest().ID)
	assert.EqualValues(t, 3, s.Newest().ID)

	s.Reset()
	assert.Zero(t, s.Len())
	assert.Nil(t, s.Oldest())
	assert.Nil(t, s.Newest())
}

func TestStoreAppendLiveSortsOutOfOrderArrivals(t *testing.T) {
	s := chatsync.NewStore()
	s.AppendLive(msg(3, 1, 3*time.Second))
	s.AppendLive(msg(1, 1, time.Second))
	s.AppendLive(msg(2, 1, 3*time.Second)) // 同一时间戳按ID排序

	assert.Equal(t, []int64{1, 2, 3}, ids(s.Snapshot()))
}

func TestStoreStaysOrderedUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	gen := func() *model.Message {
		id := rng.Int64N(200) + 1
		// 时间与ID不单调相关，覆盖同一时间戳的决胜逻辑
		return msg(id, 1, time.Duration(rng.IntN(50))*time.Second)
	}
	canonical := make(map[int64]*model.Message)
	pick := func() *model.Message {
		m := gen()
		if c, ok := canonical[m.ID]; ok {
			return c
		}
		canonical[m.ID] = m
		return m
	}

	s := chatsync.NewStore()
	for range 500 {
		switch rng.IntN(10) {
		case 0:
			page := make([]*model.Message, rng.IntN(20))
			for i := range page {
				page[i] = pick()
			}
			s.Replace(page)
		case 1, 2, 3, 4:
			page := make([]*model.Message, rng.IntN(20))
			for i := range page {
				page[i] = pick()
			}
			s.PrependOlder(page)
		default:
			s.AppendLive(pick())
		}
		requireOrdered(t, s.Snapshot())
	}
}

func TestStoreSnapshotIsACopy(t *testing.T) {
	s := chatsync.NewStore()
	s.AppendLive(msg(1, 1, 0))
	snap := s.Snapshot()
	snap[0] = msg(99, 1, 0)
	snap = slices.Delete(snap, 0, 1)

	assert.Empty(t, snap)
	assert.Equal(t, []int64{1}, ids(s.Snapshot()))
}
