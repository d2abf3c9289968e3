package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// BatchItem is the outcome of one idea in a batch.
type BatchItem struct {
	Idea   string
	Result *Result
	// Err is non-nil if the idea's run failed.
	Err error
}

// RunBatch analyses independent ideas concurrently, at most limit at a time
// (limit <= 0 means no limit). Each idea gets its own record. A failing idea
// does not cancel its siblings; its error is recorded in the returned item.
// Items are returned in input order.
func (p *Pipeline) RunBatch(ctx context.Context, ideas []string, limit int) []BatchItem {
	items := make([]BatchItem, len(ideas))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, idea := range ideas {
		g.Go(func() error {
			res, err := p.Run(ctx, idea)
			items[i] = BatchItem{Idea: idea, Result: res, Err: err}
			return nil
		})
	}

	_ = g.Wait()
	return items
}

// Failed returns the items whose run failed.
func Failed(items []BatchItem) []BatchItem {
	var out []BatchItem
	for _, it := range items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}
