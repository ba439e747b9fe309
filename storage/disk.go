package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emotionlab/go-enrollment"
	goerrors "github.com/goliatone/go-errors"
)

// Disk stores images under a local directory served at baseURL.
type Disk struct {
	dir     string
	baseURL string
	now     func() time.Time
}

var _ enrollment.ImageStore = (*Disk)(nil)

func NewDisk(dir, baseURL string) *Disk {
	return &Disk{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

func (d *Disk) Put(ctx context.Context, filename string, r io.Reader) (enrollment.Image, error) {
	key := objectKey("", filename, d.now())
	target := filepath.Join(d.dir, filepath.FromSlash(key))

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return enrollment.Image{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create upload dir")
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return enrollment.Image{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create upload")
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(target)
		return enrollment.Image{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write upload")
	}

	if err := f.Close(); err != nil {
		return enrollment.Image{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write upload")
	}

	return enrollment.Image{URL: d.baseURL + "/" + key, Filename: key}, nil
}

func (d *Disk) Delete(ctx context.Context, filename string) error {
	clean := filepath.Clean("/" + filepath.FromSlash(filename))
	err := os.Remove(filepath.Join(d.dir, clean))
	if err != nil && !os.IsNotExist(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete upload")
	}
	return nil
}
