package dataset

import (
	"context"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"
)

// MNISTSource is the default location of the MNIST IDX files.
const MNISTSource = "https://storage.googleapis.com/cvdf-datasets/mnist/"

// Fetch downloads url into dir, unless a file of the same name is already there.
// It returns the local path of the file.
func Fetch(ctx context.Context, client *http.Client, url, dir string) (string, error) {
	dst := filepath.Join(dir, path.Base(url))
	if _, err := os.Stat(dst); err == nil {
		return dst, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.WithStack(err)
	}
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.WithStack(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrapf(err, "unable to fetch %s", url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("fetching %s: %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(dir, ".fetch-*")
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer os.Remove(tmp.Name())
	if _, err = io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", errors.Wrapf(err, "unable to download %s", url)
	}
	if err = tmp.Close(); err != nil {
		return "", errors.WithStack(err)
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return "", errors.WithStack(err)
	}
	return dst, nil
}

// FetchMNIST makes sure the four MNIST files from source are present in dir.
func FetchMNIST(ctx context.Context, client *http.Client, source, dir string) error {
	for _, name := range []string{MNISTFiles.TrainImages, MNISTFiles.TrainLabels, MNISTFiles.TestImages, MNISTFiles.TestLabels} {
		if _, err := Fetch(ctx, client, source+name, dir); err != nil {
			return err
		}
	}
	return nil
}
