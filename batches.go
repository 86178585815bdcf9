package walkback

import (
	"context"

	"github.com/gorgonia/walkback/dataset"
	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"
)

// batches iterates over the rows of a split in batches of a fixed size. Rows that do not fill a
// last batch are left out of the pass. It checks its context before every batch, so a pass can
// be cancelled between batches.
type batches struct {
	ctx   context.Context
	split *dataset.Split
	order []int
	size  int
}

func makeBatches(ctx context.Context, split *dataset.Split, size int) *batches {
	order := make([]int, split.Len())
	for i := range order {
		order[i] = i
	}
	return &batches{
		ctx:   ctx,
		split: split,
		order: order,
		size:  size,
	}
}

func (b *batches) Len() int { return len(b.order) / b.size }

func (b *batches) Batch(i int) (*tensor.Dense, error) {
	if err := b.ctx.Err(); err != nil {
		return nil, err
	}
	return b.split.Data(b.order[i*b.size : (i+1)*b.size]...)
}

func (b *batches) shuffle(r *rand.Rand) {
	r.Shuffle(len(b.order), func(i, j int) { b.order[i], b.order[j] = b.order[j], b.order[i] })
}
