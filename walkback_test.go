package walkback

import (
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorgonia/walkback/dataset"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	h, w = 2, 3
	dim  = h * w
)

func pair(n int, offset float32) dataset.Pair {
	p := dataset.Pair{Dim: dim}
	for i := 0; i < n; i++ {
		for j := 0; j < dim; j++ {
			var v float32
			if (i+j)%2 == 0 {
				v = 0.9 - offset
			}
			p.Inputs = append(p.Inputs, v)
		}
		p.Labels = append(p.Labels, i%10)
	}
	return p
}

func tiny(t *testing.T, withTest bool) *dataset.Dataset {
	raw := dataset.Raw{Train: pair(7, 0), Valid: pair(2, 0.1)}
	if withTest {
		raw.Test = pair(4, 0.2)
	}
	d, err := dataset.NewMNIST(raw, dataset.WithBinary(true))
	require.NoError(t, err)
	return d
}

func tinyConf() Config {
	conf := DefaultConfig()
	conf.Name = "tiny"
	conf.Model.Layers = 2
	conf.Model.Walkbacks = 2
	conf.Model.InputSize = dim
	conf.Model.HiddenSize = 4
	conf.Model.BatchSize = 3
	conf.Model.VisInit = true
	conf.Solver = SolverConfig{Name: "sgd", LearnRate: 0.1}
	conf.Epochs = 2
	conf.Previews = 2
	conf.Height, conf.Width = h, w
	return conf
}

type recorder struct {
	snapshots []Snapshot
	flushed   bool
}

func (r *recorder) Encode(s Snapshot) error { r.snapshots = append(r.snapshots, s); return nil }
func (r *recorder) Flush() error            { r.flushed = true; return nil }

func TestTrainer(t *testing.T) {
	conf := tinyConf()
	var out strings.Builder
	rec := new(recorder)
	tr, err := New(tiny(t, true), conf, WithLogOutput(&out), WithOutputEncoder(rec))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	assert.Equal(t, 3, tr.train.Len(), "9 rows in batches of 3")
	require.NotNil(t, tr.test)
	assert.Equal(t, 1, tr.test.Len(), "a partial last batch is left out")

	require.NoError(t, tr.Train(context.Background(), conf.Epochs))
	assert.Equal(t, conf.Epochs, tr.Epoch())
	assert.Equal(t, conf.Epochs, tr.Epochs())
	assert.Len(t, tr.TestCost, conf.Epochs)
	for _, c := range append(tr.TrainCost, tr.TestCost...) {
		assert.False(t, math.IsNaN(float64(c)), "cost is NaN")
	}

	assert.Contains(t, tr.Log(), "Epoch 1: train cost")
	assert.Equal(t, tr.Log(), out.String())

	require.Len(t, rec.snapshots, conf.Epochs*conf.Previews)
	s := rec.snapshots[len(rec.snapshots)-1]
	assert.Equal(t, "tiny", s.Name())
	assert.Equal(t, 1, s.Epoch())
	assert.Equal(t, 1, s.Row())
	gh, gw := s.Shape()
	assert.Equal(t, h, gh)
	assert.Equal(t, w, gw)
	assert.Len(t, s.Original(), dim)
	assert.Len(t, s.Reconstructions(), conf.Model.Walkbacks)

	best, cost := tr.Best()
	require.NotNil(t, best)
	assert.NotSame(t, tr.Model(), best)
	for _, c := range tr.TestCost {
		assert.LessOrEqual(t, cost, c, "the best model is kept by its test cost")
	}
}

func TestTrainerWithoutTest(t *testing.T) {
	conf := tinyConf()
	rec := new(recorder)
	tr, err := New(tiny(t, false), conf, WithOutputEncoder(rec))
	require.NoError(t, err)
	assert.Nil(t, tr.test)

	require.NoError(t, tr.Train(context.Background(), 1))
	assert.Len(t, tr.TrainCost, 1)
	assert.Empty(t, tr.TestCost)
	_, cost := tr.Best()
	assert.Equal(t, tr.TrainCost[0], cost, "the best model is kept by its training cost")
	assert.Len(t, rec.snapshots, conf.Previews, "previews come from TRAIN without a TEST split")
}

func TestTrainerCancel(t *testing.T) {
	tr, err := New(tiny(t, true), tinyConf())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = tr.Train(ctx, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, tr.Epoch())
	assert.Empty(t, tr.TrainCost)
}

func TestNewDAE(t *testing.T) {
	conf := tinyConf()
	conf.Model.Layers = 3
	tr, err := NewDAE(tiny(t, true), conf)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Config().Model.Layers)
	assert.Equal(t, 1, tr.Model().Layers)
	assert.Contains(t, tr.Log(), "DAE: 3 layers requested, using 1")
	require.NoError(t, tr.Train(context.Background(), 1))
}

func TestDefaultDAEConfig(t *testing.T) {
	conf := DefaultDAEConfig()
	require.True(t, conf.IsValid())
	assert.Equal(t, 1, conf.Model.Layers)
	assert.Equal(t, 1, conf.Model.Walkbacks)
	assert.NotEqual(t, DefaultConfig().Model.Walkbacks, conf.Model.Walkbacks)

	conf.Name = "tiny DAE"
	conf.Model.InputSize = dim
	conf.Model.HiddenSize = 4
	conf.Model.BatchSize = 3
	conf.Height, conf.Width = h, w
	tr, err := NewDAE(tiny(t, true), conf)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Model().Walkbacks)
	assert.NotContains(t, tr.Log(), "layers requested")
}

func TestNewErrors(t *testing.T) {
	conf := tinyConf()
	conf.Model.InputSize = dim + 1
	conf.Previews = 0
	_, err := New(tiny(t, true), conf)
	assert.Error(t, err, "feature mismatch")

	conf = tinyConf()
	conf.Solver.Name = "adadelta"
	_, err = New(tiny(t, true), conf)
	assert.Error(t, err)

	conf = tinyConf()
	conf.Width = 4
	_, err = New(tiny(t, true), conf)
	assert.Error(t, err, "preview rows cannot be viewed as images")
}

func TestSolvers(t *testing.T) {
	for _, name := range []string{"sgd", "momentum", "rmsprop", "adam", "adagrad"} {
		t.Run(name, func(t *testing.T) {
			conf := tinyConf()
			conf.Solver.Name = name
			conf.Solver.L2 = 1e-4
			conf.Solver.Clip = 5
			tr, err := New(tiny(t, false), conf)
			require.NoError(t, err)
			require.NoError(t, tr.Train(context.Background(), 1))
		})
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "model.gob")

	tr, err := New(tiny(t, true), tinyConf())
	require.NoError(t, err)
	assert.Error(t, tr.SaveBest(filepath.Join(dir, "best.gob")), "nothing trained yet")
	require.NoError(t, tr.Train(context.Background(), 1))
	require.NoError(t, tr.Save(filename))
	require.NoError(t, tr.SaveBest(filepath.Join(dir, "best.gob")))

	tr2, err := New(tiny(t, true), tinyConf())
	require.NoError(t, err)
	require.NoError(t, tr2.Load(filename))

	m1, m2 := tr.Model().Model(), tr2.Model().Model()
	require.Len(t, m2, len(m1))
	for i := range m1 {
		assert.Equal(t, m1[i].Value().Data(), m2[i].Value().Data(), "%v", m1[i])
	}
	require.NoError(t, tr2.Load(filepath.Join(dir, "best.gob")))
	best, _ := tr.Best()
	mb := best.Model()
	for i := range mb {
		assert.Equal(t, mb[i].Value().Data(), tr2.Model().Model()[i].Value().Data(), "%v", mb[i])
	}
	assert.Error(t, tr2.Load(filepath.Join(dir, "nope.gob")))
}

func TestStatisticsDump(t *testing.T) {
	s := makeStatistics()
	test := float32(0.25)
	s.update(0.5, &test, 0)
	s.update(0.4, nil, 0)

	filename := filepath.Join(t.TempDir(), "stats.csv")
	require.NoError(t, s.Dump(filename))

	f, err := os.Open(filename)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"epoch", "train_cost", "test_cost", "seconds"},
		{"0", "0.500000", "0.250000", "0.000"},
		{"1", "0.400000", "", "0.000"},
	}, records)
}

func TestLoadConfig(t *testing.T) {
	conf, err := LoadConfig(strings.NewReader(`{"epochs": 3, "solver": {"name": "adam", "learn_rate": 0.001}, "model": {"walkbacks": 4}}`), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 3, conf.Epochs)
	assert.Equal(t, "adam", conf.Solver.Name)
	assert.Equal(t, 0.001, conf.Solver.LearnRate)
	assert.Equal(t, 4, conf.Model.Walkbacks)
	assert.Equal(t, DefaultConfig().Model.HiddenSize, conf.Model.HiddenSize)

	_, err = LoadConfig(strings.NewReader(`{"solver": {"name": "adadelta"}}`), DefaultConfig())
	assert.Error(t, err)
}

func TestDataMean(t *testing.T) {
	d := tiny(t, false)
	split, _ := d.Split(dataset.Train)
	mean, err := dataMean(split)
	require.NoError(t, err)
	require.Len(t, mean, dim)

	var want float32
	for i := 0; i < split.Len(); i++ {
		row, err := split.Data(i)
		require.NoError(t, err)
		want += row.Data().([]float32)[0]
	}
	assert.InDelta(t, want/float32(split.Len()), mean[0], 1e-6)
}
