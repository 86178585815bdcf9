package walkback

import (
	"log"

	"github.com/chewxy/math32"
	gsn "github.com/gorgonia/walkback/gsnet"
	"github.com/gorgonia/walkback/noise"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// preview holds a fixed set of rows whose reconstruction chains are rendered after every epoch.
type preview struct {
	name string
	rows []int
	orig *tensor.Dense // [len(rows), dim]
	h, w int

	corrupt float64 // salt and pepper probability of the visible layer, 0 when it is clean
	seed    uint64

	trace  bool // run the chains with an execution log
	logger *log.Logger
}

// run reconstructs the preview rows with a forward only copy of d and encodes one snapshot per row.
// Rows whose chain diverged are skipped.
func (p *preview) run(d *gsn.GSN, epoch int, enc OutputEncoder) (encoded int, err error) {
	if enc == nil || len(p.rows) == 0 {
		return 0, nil
	}
	var r Reconstructor
	if r, err = gsn.Reconstruct(d, len(p.rows), p.trace); err != nil {
		return 0, err
	}
	defer r.Close()

	recons, err := r.Reconstruct(p.orig)
	if err != nil {
		p.execLog(r)
		return 0, errors.WithMessage(err, "unable to reconstruct preview rows")
	}

	var corrupted []float32
	if p.corrupt > 0 {
		c, err := noise.ApplySaltAndPepper(p.orig, p.corrupt, noise.NewStream(p.seed))
		if err != nil {
			return 0, err
		}
		corrupted = c.Data().([]float32)
	}

	dim := p.orig.Shape()[1]
	orig := p.orig.Data().([]float32)
	var diverged bool
	for j, row := range p.rows {
		s := &snapshot{
			name:   p.name,
			epoch:  epoch,
			row:    row,
			h:      p.h,
			w:      p.w,
			orig:   orig[j*dim : (j+1)*dim],
			recons: make([][]float32, len(recons)),
		}
		if corrupted != nil {
			s.corrupted = corrupted[j*dim : (j+1)*dim]
		}
		for t, recon := range recons {
			s.recons[t] = recon.Data().([]float32)[j*dim : (j+1)*dim]
		}
		if !validPixels(s.recons...) {
			diverged = true
			continue
		}
		if err = enc.Encode(s); err != nil {
			return encoded, err
		}
		encoded++
	}
	if diverged {
		p.execLog(r)
	}
	return encoded, nil
}

func (p *preview) execLog(r Reconstructor) {
	if !p.trace || p.logger == nil {
		return
	}
	if el, ok := r.(ExecLogger); ok {
		p.logger.Println(el.ExecLog())
	}
}

type snapshot struct {
	name      string
	epoch     int
	row       int
	h, w      int
	orig      []float32
	corrupted []float32
	recons    [][]float32
}

func (s *snapshot) Name() string                 { return s.name }
func (s *snapshot) Epoch() int                   { return s.epoch }
func (s *snapshot) Row() int                     { return s.row }
func (s *snapshot) Shape() (h, w int)            { return s.h, s.w }
func (s *snapshot) Original() []float32          { return s.orig }
func (s *snapshot) Corrupted() []float32         { return s.corrupted }
func (s *snapshot) Reconstructions() [][]float32 { return s.recons }

func validPixels(vs ...[]float32) bool {
	for _, v := range vs {
		for _, p := range v {
			if math32.IsInf(p, 0) || math32.IsNaN(p) {
				return false
			}
		}
	}
	return true
}
