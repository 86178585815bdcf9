package gif

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"math"

	"github.com/chewxy/math32"
	"github.com/golang/freetype/truetype"
	"github.com/gorgonia/walkback"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

var regular *truetype.Font

const (
	dpi             = 72.0
	fontsize        = 10.0
	lineheight      = 1.2
	dummyLongString = `MNIST e9999 #99999 t=99`
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}
}

var globPalette = func() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = color.Gray{uint8(i)}
	}
	return p
}()

// Encoder renders every snapshot it is given as a sequence of frames: the original row, its
// corrupted version when there is one, then each reconstruction of its walkback chain. It implements walkback.OutputEncoder.
type Encoder struct {
	H, W  int
	Scale int // pixels per input feature
	font.Drawer
	io.Writer

	out  *gif.GIF
	face font.Face

	padH, padW  int // padding so everything don't start at the topleft
	initialized bool
}

// NewGifEncoder creates an Encoder that writes into w when flushed. Every input feature is
// drawn as a scale x scale square.
func NewGifEncoder(w io.Writer, scale int) *Encoder {
	if scale < 1 {
		scale = 1
	}
	return &Encoder{
		H:      -1,
		W:      -1,
		Scale:  scale,
		Writer: w,
		padH:   4,
		padW:   4,

		Drawer: font.Drawer{
			Src: image.Black,
		},
		out: &gif.GIF{LoopCount: 0},
	}
}

func (enc *Encoder) init(h, w int) {
	enc.face = truetype.NewFace(regular, &truetype.Options{
		Size:    fontsize,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
	enc.Drawer.Face = enc.face

	textW := font.MeasureString(enc.face, dummyLongString).Ceil()
	enc.W = maxInt(w*enc.Scale, textW) + 2*enc.padW
	enc.H = h*enc.Scale + enc.lineHeight() + 2*enc.padH
	enc.initialized = true
}

func (enc *Encoder) lineHeight() int { return int(math.Ceil(fontsize * lineheight * dpi / 72)) }

// Encode a snapshot.
func (enc *Encoder) Encode(s walkback.Snapshot) error {
	h, w := s.Shape()
	if h*w != len(s.Original()) {
		return errors.Errorf("cannot draw %d pixels as a %dx%d image", len(s.Original()), h, w)
	}
	if !enc.initialized {
		enc.init(h, w)
	}

	caption := func(step string) string {
		return fmt.Sprintf("%s e%d #%d %s", s.Name(), s.Epoch(), s.Row(), step)
	}
	enc.frame(s.Original(), h, w, caption("x"), 50)
	if c := s.Corrupted(); len(c) > 0 {
		if len(c) != h*w {
			return errors.Errorf("corrupted row has %d pixels, expected %d", len(c), h*w)
		}
		enc.frame(c, h, w, caption("x~"), 20)
	}
	recons := s.Reconstructions()
	for t, r := range recons {
		delay := 20
		if t == len(recons)-1 {
			delay = 100
		}
		if len(r) != h*w {
			return errors.Errorf("reconstruction %d has %d pixels, expected %d", t+1, len(r), h*w)
		}
		enc.frame(r, h, w, caption(fmt.Sprintf("t=%d", t+1)), delay)
	}
	return nil
}

func (enc *Encoder) frame(pixels []float32, h, w int, text string, delay int) {
	im := image.NewPaletted(image.Rect(0, 0, enc.W, enc.H), globPalette)
	draw.Draw(im, im.Bounds(), image.White, image.Point{}, draw.Src)

	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			c := color.Gray{grey(pixels[i*w+j])}
			x0, y0 := enc.padW+j*enc.Scale, enc.padH+i*enc.Scale
			draw.Draw(im, image.Rect(x0, y0, x0+enc.Scale, y0+enc.Scale), image.NewUniform(c), image.Point{}, draw.Src)
		}
	}

	enc.Dst = im
	enc.Dot = fixed.P(enc.padW, enc.padH+h*enc.Scale+enc.lineHeight())
	enc.DrawString(text)

	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, delay)
}

// grey maps an activation in [0, 1] to a pixel: 1 is black ink on a white page.
func grey(v float32) uint8 {
	v = math32.Max(0, math32.Min(1, v))
	return uint8(math32.Floor((1-v)*255 + 0.5))
}

// Flush writes the gif into the writer
func (enc *Encoder) Flush() error {
	if len(enc.out.Image) == 0 {
		return errors.New("nothing to flush")
	}
	return gif.EncodeAll(enc.Writer, enc.out)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
