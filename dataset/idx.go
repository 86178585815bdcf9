package dataset

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/vecf32"
)

// Format tells how a dataset file is to be decoded.
type Format byte

const (
	IDX Format = iota
	IDXGzip
)

// FormatOf guesses the format of a file from its name.
func FormatOf(path string) Format {
	if strings.HasSuffix(path, ".gz") {
		return IDXGzip
	}
	return IDX
}

const (
	idxLabelMagic = 0x00000801
	idxImageMagic = 0x00000803

	// maxIDXBytes bounds the payload a header may claim.
	maxIDXBytes = 1 << 30

	// mnistValidRows is the number of training rows the standard MNIST split holds out as VALID.
	mnistValidRows = 10000
)

// MNISTFiles are the standard names of the MNIST IDX files.
var MNISTFiles = struct {
	TrainImages, TrainLabels, TestImages, TestLabels string
}{
	TrainImages: "train-images-idx3-ubyte.gz",
	TrainLabels: "train-labels-idx1-ubyte.gz",
	TestImages:  "t10k-images-idx3-ubyte.gz",
	TestLabels:  "t10k-labels-idx1-ubyte.gz",
}

// ReadIDXImages decodes an IDX image file. Pixels are scaled to [0, 1]. dim is the number of
// pixels per image.
func ReadIDXImages(r io.Reader) (pixels []float32, dim int, err error) {
	br := bufio.NewReader(r)
	var hdr [4]int32
	if err = binary.Read(br, binary.BigEndian, &hdr); err != nil {
		return nil, 0, errors.Wrap(err, "unable to read IDX image header")
	}
	if hdr[0] != idxImageMagic {
		return nil, 0, errors.Errorf("bad IDX image magic %#x", hdr[0])
	}
	if err = checkCounts(hdr[1:]...); err != nil {
		return nil, 0, err
	}
	n, rows, cols := int(hdr[1]), int(hdr[2]), int(hdr[3])
	dim = rows * cols
	raw := make([]byte, n*dim)
	if _, err = io.ReadFull(br, raw); err != nil {
		return nil, 0, errors.Wrapf(err, "unable to read %d images", n)
	}
	pixels = make([]float32, len(raw))
	for i, b := range raw {
		pixels[i] = float32(b)
	}
	vecf32.Scale(pixels, 1.0/255.0)
	return pixels, dim, nil
}

// ReadIDXLabels decodes an IDX label file.
func ReadIDXLabels(r io.Reader) ([]int, error) {
	br := bufio.NewReader(r)
	var hdr [2]int32
	if err := binary.Read(br, binary.BigEndian, &hdr); err != nil {
		return nil, errors.Wrap(err, "unable to read IDX label header")
	}
	if hdr[0] != idxLabelMagic {
		return nil, errors.Errorf("bad IDX label magic %#x", hdr[0])
	}
	if err := checkCounts(hdr[1]); err != nil {
		return nil, err
	}
	raw := make([]byte, int(hdr[1]))
	if _, err := io.ReadFull(br, raw); err != nil {
		return nil, errors.Wrapf(err, "unable to read %d labels", len(raw))
	}
	labels := make([]int, len(raw))
	for i, b := range raw {
		labels[i] = int(b)
	}
	return labels, nil
}

// checkCounts rejects IDX header counts that are negative or whose product exceeds maxIDXBytes.
func checkCounts(counts ...int32) error {
	total := int64(1)
	for _, c := range counts {
		if c < 0 {
			return errors.Errorf("bad IDX header: negative count %d", c)
		}
		total *= int64(c)
		if total > maxIDXBytes {
			return errors.Errorf("bad IDX header: counts %v exceed %d bytes", counts, maxIDXBytes)
		}
	}
	return nil
}

// LoadMNISTDir loads the four standard MNIST files from dir. The last 10000 training rows are
// held out as VALID before NewMNIST merges them back.
func LoadMNISTDir(dir string, opts ...Option) (*Dataset, error) {
	train, err := readPair(filepath.Join(dir, MNISTFiles.TrainImages), filepath.Join(dir, MNISTFiles.TrainLabels))
	if err != nil {
		return nil, err
	}
	test, err := readPair(filepath.Join(dir, MNISTFiles.TestImages), filepath.Join(dir, MNISTFiles.TestLabels))
	if err != nil {
		return nil, err
	}
	var raw Raw
	raw.Train, raw.Valid = holdOut(train, mnistValidRows)
	raw.Test = test
	return NewMNIST(raw, opts...)
}

func holdOut(p Pair, n int) (rest, held Pair) {
	if p.Len() <= n {
		return p, Pair{Dim: p.Dim}
	}
	cut := p.Len() - n
	rest = Pair{Inputs: p.Inputs[:cut*p.Dim:cut*p.Dim], Labels: p.Labels[:cut:cut], Dim: p.Dim}
	held = Pair{Inputs: p.Inputs[cut*p.Dim:], Labels: p.Labels[cut:], Dim: p.Dim}
	return rest, held
}

func readPair(imagePath, labelPath string) (p Pair, err error) {
	if err = withReader(imagePath, func(r io.Reader) (err error) {
		p.Inputs, p.Dim, err = ReadIDXImages(r)
		return err
	}); err != nil {
		return Pair{}, err
	}
	if err = withReader(labelPath, func(r io.Reader) (err error) {
		p.Labels, err = ReadIDXLabels(r)
		return err
	}); err != nil {
		return Pair{}, err
	}
	if p.Dim == 0 || len(p.Inputs) != p.Len()*p.Dim {
		return Pair{}, errors.Errorf("%s and %s disagree on the number of rows", imagePath, labelPath)
	}
	return p, nil
}

func withReader(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	var r io.Reader = f
	if FormatOf(path) == IDXGzip {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return errors.Wrapf(err, "unable to open %s", path)
		}
		defer gz.Close()
		r = gz
	}
	return errors.WithMessagef(fn(r), "decoding %s", path)
}
