package chatsync_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textenger/internal/chatsync"
	"textenger/internal/chatsync/chatsynctest"
	"textenger/internal/model"
)

func TestLoaderPaginatesWholeHistory(t *testing.T) {
	tests := []struct {
		name  string
		total int
		size  int
	}{
		{"uneven", 137, 20},
		{"exact multiple", 60, 20},
		{"single short page", 7, 20},
		{"empty", 0, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := chatsynctest.New(nil)
			scope := model.DirectScope(1, 2)
			for i := range tt.total {
				backend.Seed(scope, int64(1+i%2), "hi")
			}
			loader := chatsync.NewLoader(backend, chatsync.PageSizes{Direct: tt.size})

			var (
				all    []*model.Message
				cursor *model.Cursor
				pages  int
			)
			for {
				page, err := loader.Load(t.Context(), scope, cursor)
				require.NoError(t, err)
				pages++
				require.LessOrEqual(t, pages, tt.total/tt.size+2, "pagination did not terminate")

				requireOrdered(t, page.Messages)
				all = append(page.Messages, all...)
				cursor = page.Cursor
				if !page.HasMore {
					break
				}
			}

			requireOrdered(t, all)
			assert.Equal(t, ids(backend.Messages(scope)), ids(all))
		})
	}
}

func TestLoaderEmptyPageKeepsCursor(t *testing.T) {
	backend := chatsynctest.New(nil)
	loader := chatsync.NewLoader(backend, chatsync.PageSizes{})
	cursor := &model.Cursor{ID: 10, CreatedAt: t0}

	page, err := loader.Load(t.Context(), model.ChannelScope(1), cursor)
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.False(t, page.HasMore)
	assert.Same(t, cursor, page.Cursor)
}

func TestLoaderUsesScopePageSize(t *testing.T) {
	backend := chatsynctest.New(nil)
	var limits []int
	backend.ListHook = func(_ context.Context, q model.MessageQuery) error {
		limits = append(limits, q.Limit)
		return nil
	}
	loader := chatsync.NewLoader(backend, chatsync.PageSizes{Room: 10})

	_, _ = loader.Load(t.Context(), model.ChannelScope(1), nil)
	_, _ = loader.Load(t.Context(), model.DirectScope(1, 2), nil)
	_, _ = loader.Load(t.Context(), model.RoomScope(1), nil)
	assert.Equal(t, []int{50, 20, 10}, limits)
}

func TestLoaderAfter(t *testing.T) {
	backend := chatsynctest.New(nil)
	scope := model.ChannelScope(1)
	var seeded []*model.Message
	for range 5 {
		seeded = append(seeded, backend.Seed(scope, 1, "x"))
	}
	loader := chatsync.NewLoader(backend, chatsync.PageSizes{Channel: 2})

	page, err := loader.LoadAfter(t.Context(), scope, seeded[1].Cursor())
	require.NoError(t, err)
	assert.Equal(t, []int64{seeded[2].ID, seeded[3].ID}, ids(page.Messages))
	assert.True(t, page.HasMore)
	assert.Equal(t, seeded[3].ID, page.Cursor.ID)
}

func TestLoaderPropagatesFailure(t *testing.T) {
	backend := chatsynctest.New(nil)
	boom := errors.New("boom")
	backend.ListHook = func(context.Context, model.MessageQuery) error { return boom }

	_, err := chatsync.NewLoader(backend, chatsync.PageSizes{}).Load(t.Context(), model.ChannelScope(1), nil)
	assert.ErrorIs(t, err, boom)
}

func TestPageSizesCappedByServerLimit(t *testing.T) {
	sizes := chatsync.PageSizes{Channel: 120, Direct: 5}
	assert.Equal(t, model.MaxPageSize, sizes.For(model.ChannelScope(1)))
	assert.Equal(t, 5, sizes.For(model.DirectScope(1, 2)))
	assert.Equal(t, 50, sizes.For(model.RoomScope(1)))

	backend := chatsynctest.New(nil)
	scope := model.ChannelScope(1)
	for range 130 {
		backend.Seed(scope, 1, "hi")
	}
	loader := chatsync.NewLoader(backend, sizes)

	first, err := loader.Load(t.Context(), scope, nil)
	require.NoError(t, err)
	assert.Len(t, first.Messages, model.MaxPageSize)
	assert.True(t, first.HasMore)

	rest, err := loader.Load(t.Context(), scope, first.Cursor)
	require.NoError(t, err)
	assert.Len(t, rest.Messages, 30)
	assert.False(t, rest.HasMore)
}

func TestLoaderDirectHistoryFromBothSides(t *testing.T) {
	backend := chatsynctest.New(nil)
	scope := model.DirectScope(1, 2)
	backend.Seed(scope, 1, "from me")
	backend.Seed(scope, 2, "from peer")

	page, err := chatsync.NewLoader(backend, chatsync.PageSizes{}).Load(t.Context(), model.DirectScope(2, 1), nil)
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "from peer", page.Messages[1].Content)
	assert.EqualValues(t, 1, page.Messages[1].ReceiverID)
}
