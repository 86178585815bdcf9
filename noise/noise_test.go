package noise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func TestScheduleAnnealing(t *testing.T) {
	assert := assert.New(t)
	s := Schedule{Base: 0.4, Annealing: 0.9}
	steps := s.Steps(10)
	for i := 1; i < len(steps); i++ {
		assert.Less(steps[i], steps[i-1], "step %d should be smaller than step %d", i, i-1)
	}
	assert.Equal(0.4, s.At(0))
	assert.InDelta(0.4*0.9*0.9, s.At(2), 1e-12)

	flat := Schedule{Base: 2, Annealing: 1}
	for _, v := range flat.Steps(5) {
		assert.Equal(2.0, v)
	}
}

func TestRoleOf(t *testing.T) {
	assert.Equal(t, Visible, RoleOf(0))
	assert.Equal(t, HiddenFirst, RoleOf(1))
	assert.Equal(t, HiddenOther, RoleOf(2))
	assert.Equal(t, HiddenOther, RoleOf(5))
}

func TestResolve(t *testing.T) {
	base := Config{AddNoise: true, NoiselessH1: true, InputSaltAndPepper: 0.4, HiddenSigma: 2, Annealing: 1}
	noH1 := base
	noH1.NoiselessH1 = false
	off := base
	off.AddNoise = false

	tests := []struct {
		name string
		role Role
		conf Config
		want interface{}
	}{
		{"visible", Visible, base, &saltAndPepper{}},
		{"first hidden, noiseless", HiddenFirst, base, none{}},
		{"first hidden, noisy", HiddenFirst, noH1, &gaussian{}},
		{"other hidden", HiddenOther, base, &gaussian{}},
		{"visible, no noise", Visible, off, none{}},
		{"other hidden, no noise", HiddenOther, off, none{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.IsType(t, tt.want, Resolve(tt.role, tt.conf, "l"))
		})
	}
}

func TestStreamDeterminism(t *testing.T) {
	a := tensor.New(tensor.WithShape(4, 5), tensor.Of(tensor.Float32))
	b := tensor.New(tensor.WithShape(4, 5), tensor.Of(tensor.Float32))

	s1, s2 := NewStream(1337), NewStream(1337)
	require.NoError(t, s1.Normal(a, 1))
	require.NoError(t, s2.Normal(b, 1))
	assert.Equal(t, a.Data(), b.Data())

	require.NoError(t, s1.Uniform(a))
	require.NoError(t, NewStream(1).Uniform(b))
	assert.NotEqual(t, a.Data(), b.Data())
}

func TestApplySaltAndPepper(t *testing.T) {
	backing := make([]float32, 200)
	for i := range backing {
		backing[i] = float32(i%10) / 10
	}
	x := tensor.New(tensor.WithShape(20, 10), tensor.WithBacking(backing))
	out, err := ApplySaltAndPepper(x, 0.5, NewStream(3))
	require.NoError(t, err)

	var changed int
	for i, v := range out.Data().([]float32) {
		if v != backing[i] {
			changed++
			assert.Contains(t, []float32{0, 0.9}, v, "corrupted values are either 0 or the max")
		}
	}
	assert.NotZero(t, changed)
	assert.Equal(t, float32(0.1), backing[1], "input should not be modified")

	same, err := ApplySaltAndPepper(x, 0, NewStream(3))
	require.NoError(t, err)
	assert.Equal(t, backing, same.Data())
}

func TestSaltAndPepperGraphMatchesApply(t *testing.T) {
	backing := make([]float32, 30)
	for i := range backing {
		backing[i] = float32(i) / 29
	}
	xT := tensor.New(tensor.WithShape(5, 6), tensor.WithBacking(backing))

	g := G.NewGraph()
	x := G.NewMatrix(g, G.Float32, G.WithShape(5, 6), G.WithName("x"))
	p := SaltAndPepper("x", Schedule{Base: 0.3, Annealing: 1})
	out, err := p.Corrupt(x, 0)
	require.NoError(t, err)
	var v G.Value
	G.Read(out, &v)

	require.NoError(t, G.Let(x, xT))
	require.NoError(t, p.Draw(NewStream(11)))
	m := G.NewTapeMachine(g)
	defer m.Close()
	require.NoError(t, m.RunAll())

	want, err := ApplySaltAndPepper(xT, 0.3, NewStream(11))
	require.NoError(t, err)
	assert.InDeltaSlice(t, want.Data(), v.Data(), 1e-6)
}

func TestNoneDrawsNothing(t *testing.T) {
	g := G.NewGraph()
	x := G.NewMatrix(g, G.Float32, G.WithShape(2, 2), G.WithName("x"))
	p := None()
	out, err := p.Corrupt(x, 3)
	require.NoError(t, err)
	assert.Equal(t, x, out)

	s1, s2 := NewStream(5), NewStream(5)
	require.NoError(t, p.Draw(s1))
	a := tensor.New(tensor.WithShape(2), tensor.Of(tensor.Float64))
	b := tensor.New(tensor.WithShape(2), tensor.Of(tensor.Float64))
	require.NoError(t, s1.Uniform(a))
	require.NoError(t, s2.Uniform(b))
	assert.Equal(t, a.Data(), b.Data(), "None should leave the stream untouched")
}
