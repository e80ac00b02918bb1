package resolver

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/links"
)

// BestLinksResolver is the part of Resolver the batch runner needs.
type BestLinksResolver interface {
	GetBestLinks(ctx context.Context, req links.Request) *links.ResolvedLinks
}

// BatchItem is the outcome for one request of a batch.
type BatchItem struct {
	Index    int                  `json:"index"`
	Request  links.Request        `json:"request"`
	Result   *links.ResolvedLinks `json:"result"`
	Duration time.Duration        `json:"duration"`
}

// BatchResolver resolves many requests with bounded concurrency, typically
// to warm the caches.
type BatchResolver struct {
	resolver    BestLinksResolver
	concurrency int64
}

// NewBatchResolver creates a batch runner. concurrency <= 0 means 4.
func NewBatchResolver(r BestLinksResolver, concurrency int) *BatchResolver {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &BatchResolver{resolver: r, concurrency: int64(concurrency)}
}

// Resolve runs every request and returns the items in request order.
// onDone, when not nil, is called from worker goroutines as items finish.
// The only error is ctx's.
func (b *BatchResolver) Resolve(ctx context.Context, reqs []links.Request, onDone func(BatchItem)) ([]BatchItem, error) {
	items := make([]BatchItem, len(reqs))
	sem := semaphore.NewWeighted(b.concurrency)
	g, gctx := errgroup.WithContext(ctx)

	for i, req := range reqs {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			start := time.Now()
			res := b.resolver.GetBestLinks(gctx, req)
			items[i] = BatchItem{Index: i, Request: req, Result: res, Duration: time.Since(start)}
			if onDone != nil {
				onDone(items[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return items, err
	}
	return items, ctx.Err()
}
