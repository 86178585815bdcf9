package gsn

import (
	"fmt"

	"github.com/awalterschulze/gographviz"
	"github.com/gorgonia/walkback/noise"
)

// ToDot renders the unrolled walkback schedule of the chain: which layer value is computed from
// which, at every walkback step. It does not need the GSN to be initialized.
func (d *GSN) ToDot() string {
	g := gographviz.NewGraph()
	if err := g.SetName("G"); err != nil {
		panic(err)
	}
	g.SetDir(true)
	g.AddAttr("G", "rankdir", "LR")

	nc := d.noise()
	label := func(s string) map[string]string {
		return map[string]string{"label": fmt.Sprintf("%q", s), "shape": "box"}
	}
	layer := func(i, t int) string { return fmt.Sprintf("h%d_%d", i, t) }

	g.AddNode("G", "x", label("X"))
	carry := "x"
	last := make([]string, d.Layers+1)
	for t := 0; t < d.Walkbacks; t++ {
		v := layer(0, t)
		g.AddNode("G", v, label(fmt.Sprintf("X̃ t=%d (%v)", t+1, noise.Resolve(noise.Visible, nc, ""))))
		g.AddEdge(carry, v, true, nil)
		last[0] = v

		order := make([]int, 0, d.Layers)
		for i := 1; i <= d.Layers; i += 2 {
			order = append(order, i)
		}
		for i := 2; i <= d.Layers; i += 2 {
			order = append(order, i)
		}
		for _, i := range order {
			hasAbove := i < d.Layers && last[i+1] != ""
			if last[i-1] == "" && !hasAbove {
				continue // both neighbours are still zero
			}
			h := layer(i, t)
			p := noise.Resolve(noise.RoleOf(i), nc, "")
			g.AddNode("G", h, label(fmt.Sprintf("H%d t=%d (%v)", i, t+1, p)))
			if last[i-1] != "" {
				g.AddEdge(last[i-1], h, true, nil)
			}
			if hasAbove {
				g.AddEdge(last[i+1], h, true, map[string]string{"style": "dashed"})
			}
			last[i] = h
		}

		r := fmt.Sprintf("r_%d", t)
		g.AddNode("G", r, map[string]string{"label": fmt.Sprintf(`"reconstruction %d"`, t+1), "shape": "ellipse"})
		g.AddEdge(last[1], r, true, nil)
		carry = r
		if d.InputSampling && t < d.Walkbacks-1 {
			s := fmt.Sprintf("s_%d", t)
			g.AddNode("G", s, label("sample"))
			g.AddEdge(r, s, true, nil)
			carry = s
		}
	}
	return g.String()
}
