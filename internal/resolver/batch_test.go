package resolver

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
)

type slowResolver struct {
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (s *slowResolver) GetBestLinks(ctx context.Context, req links.Request) *links.ResolvedLinks {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(20 * time.Millisecond):
	case <-ctx.Done():
	}
	return &links.ResolvedLinks{ActionType: links.ActionBuy, Provider: req.Option, Merchants: []links.Link{}}
}

func TestBatchResolver_BoundedAndOrdered(t *testing.T) {
	s := &slowResolver{}
	b := NewBatchResolver(s, 3)

	reqs := make([]links.Request, 10)
	for i := range reqs {
		reqs[i] = links.Request{Option: string(rune('a' + i))}
	}

	var mu sync.Mutex
	var done int
	items, err := b.Resolve(context.Background(), reqs, func(BatchItem) {
		mu.Lock()
		done++
		mu.Unlock()
	})
	require.NoError(t, err)
	require.Len(t, items, 10)

	for i, it := range items {
		assert.Equal(t, i, it.Index)
		require.NotNil(t, it.Result)
		assert.Equal(t, reqs[i].Option, it.Result.Provider)
	}
	assert.Equal(t, 10, done)
	assert.LessOrEqual(t, s.peak.Load(), int32(3))
}

func TestBatchResolver_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBatchResolver(&slowResolver{}, 1)
	_, err := b.Resolve(ctx, []links.Request{{Option: "a"}, {Option: "b"}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
