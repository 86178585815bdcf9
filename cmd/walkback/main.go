package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gorgonia/walkback"
	"github.com/gorgonia/walkback/dataset"
	"github.com/gorgonia/walkback/encoding/gif"
)

var (
	confFile  = flag.String("config", "", "JSON config file, applied over the defaults")
	dataDir   = flag.String("data", "data", "directory holding (or caching) the MNIST files")
	source    = flag.String("source", dataset.MNISTSource, "where to fetch missing MNIST files from")
	fetch     = flag.Bool("fetch", true, "fetch missing MNIST files")
	binary    = flag.Bool("binary", true, "binarize the MNIST inputs")
	dae       = flag.Bool("dae", false, "train a denoising autoencoder instead of a GSN")
	epochs    = flag.Int("epochs", 0, "number of epochs, overrides the config when positive")
	walkbacks = flag.Int("walkbacks", 0, "number of walkbacks, overrides the config when positive")
	seed      = flag.Uint64("seed", 0, "random seed, overrides the config when positive")
	outDir    = flag.String("out", "out", "directory for the model, the statistics and the renderings")
	render    = flag.Bool("gif", true, "render the reconstruction chains of the preview rows as a gif")
	dot       = flag.Bool("dot", false, "write the walkback schedule as a graphviz file")
	load      = flag.String("load", "", "start from the parameters saved in this file")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime)

	conf := walkback.DefaultConfig()
	if *dae {
		conf = walkback.DefaultDAEConfig()
	}
	if *confFile != "" {
		f, err := os.Open(*confFile)
		if err != nil {
			log.Fatal(err)
		}
		conf, err = walkback.LoadConfig(f, conf)
		f.Close()
		if err != nil {
			log.Fatalf("%+v", err)
		}
	}
	if *epochs > 0 {
		conf.Epochs = *epochs
	}
	if *walkbacks > 0 {
		conf.Model.Walkbacks = *walkbacks
	}
	if *seed > 0 {
		conf.Model.Seed = *seed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if *fetch {
		client := &http.Client{Timeout: 5 * time.Minute}
		if err := dataset.FetchMNIST(ctx, client, *source, *dataDir); err != nil {
			log.Fatalf("%+v", err)
		}
	}
	data, err := dataset.LoadMNISTDir(*dataDir, dataset.WithBinary(*binary), dataset.WithLogger(log.New(os.Stderr, "", log.Ltime)))
	if err != nil {
		log.Fatalf("%+v", err)
	}

	if err = os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatal(err)
	}
	var opts []walkback.Option
	opts = append(opts, walkback.WithLogOutput(os.Stderr))
	var outEnc *gif.Encoder
	if *render {
		f, err := os.Create(filepath.Join(*outDir, "chains.gif"))
		if err != nil {
			log.Fatal(err)
		}
		defer f.Close()
		outEnc = gif.NewGifEncoder(f, 4)
		opts = append(opts, walkback.WithOutputEncoder(outEnc))
	}

	newTrainer := walkback.New
	if *dae {
		newTrainer = walkback.NewDAE
	}
	t, err := newTrainer(data, conf, opts...)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	if *load != "" {
		if err = t.Load(*load); err != nil {
			log.Fatalf("%+v", err)
		}
	}
	if *dot {
		if err = os.WriteFile(filepath.Join(*outDir, "walkback.dot"), []byte(t.Model().ToDot()), 0644); err != nil {
			log.Fatal(err)
		}
	}

	trainErr := t.Train(ctx, t.Config().Epochs)
	if trainErr != nil {
		log.Printf("Training stopped: %v", trainErr)
	}

	if err = t.Save(filepath.Join(*outDir, fmt.Sprintf("%s.model", t.Config().Name))); err != nil {
		log.Fatalf("%+v", err)
	}
	if t.Epochs() > 0 {
		if err = t.SaveBest(filepath.Join(*outDir, fmt.Sprintf("%s.best.model", t.Config().Name))); err != nil {
			log.Fatalf("%+v", err)
		}
	}
	if err = t.Dump(filepath.Join(*outDir, "statistics.csv")); err != nil {
		log.Fatalf("%+v", err)
	}
	if outEnc != nil && t.Epochs() > 0 {
		if err = outEnc.Flush(); err != nil {
			log.Fatalf("%+v", err)
		}
	}
	if trainErr != nil {
		os.Exit(1)
	}
}
