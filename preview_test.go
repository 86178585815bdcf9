package walkback

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewCorrupted(t *testing.T) {
	tests := []struct {
		addNoise bool
		want     int
	}{
		{true, dim},
		{false, 0},
	}
	for _, tt := range tests {
		conf := tinyConf()
		conf.Model.AddNoise = tt.addNoise
		conf.Model.InputSaltAndPepper = 0.9
		rec := new(recorder)
		tr, err := New(tiny(t, true), conf, WithOutputEncoder(rec))
		require.NoError(t, err)
		require.NoError(t, tr.Train(context.Background(), 1))

		require.Len(t, rec.snapshots, conf.Previews)
		for _, s := range rec.snapshots {
			assert.Len(t, s.Corrupted(), tt.want, "add noise %v", tt.addNoise)
		}
		if tt.addNoise {
			var orig, corrupted []float32
			for _, s := range rec.snapshots {
				orig = append(orig, s.Original()...)
				corrupted = append(corrupted, s.Corrupted()...)
			}
			assert.NotEqual(t, orig, corrupted)
		}
	}
}

func TestPreviewExecLog(t *testing.T) {
	for _, trace := range []bool{false, true} {
		conf := tinyConf()
		conf.TracePreviews = trace
		tr, err := New(tiny(t, true), conf)
		require.NoError(t, err)

		nan := make([]float32, dim)
		for i := range nan {
			nan[i] = float32(math.NaN())
		}
		require.NoError(t, tr.Model().SetVisibleBias(nan))

		before := len(tr.Log())
		rec := new(recorder)
		n, _ := tr.preview.run(tr.Model(), 0, rec)
		assert.Zero(t, n, "every chain diverges")
		assert.Empty(t, rec.snapshots)
		if trace {
			assert.Greater(t, len(tr.Log()), before, "the execution log of the diverged chains is logged")
		} else {
			assert.Equal(t, before, len(tr.Log()))
		}
	}
}
