package storage

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/emotionlab/go-enrollment"
	goerrors "github.com/goliatone/go-errors"
)

type cloudinaryAPI interface {
	Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error)
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// Cloudinary stores images in a Cloudinary folder. Image.Filename is the
// public id, which is what Delete expects back.
type Cloudinary struct {
	api    cloudinaryAPI
	folder string
}

var _ enrollment.ImageStore = (*Cloudinary)(nil)

// NewCloudinary connects with url, or with CLOUDINARY_URL when url is empty.
func NewCloudinary(url, folder string) (*Cloudinary, error) {
	var (
		cld *cloudinary.Cloudinary
		err error
	)
	if url == "" {
		cld, err = cloudinary.New()
	} else {
		cld, err = cloudinary.NewFromURL(url)
	}
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to configure cloudinary")
	}
	return newCloudinary(cld.Upload, folder), nil
}

func newCloudinary(api cloudinaryAPI, folder string) *Cloudinary {
	return &Cloudinary{api: api, folder: strings.Trim(folder, "/")}
}

func boolPtr(b bool) *bool {
	return &b
}

func (c *Cloudinary) Put(ctx context.Context, filename string, r io.Reader) (enrollment.Image, error) {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	res, err := c.api.Upload(ctx, r, uploader.UploadParams{
		Folder:         c.folder,
		PublicID:       name,
		ResourceType:   "image",
		UseFilename:    boolPtr(true),
		UniqueFilename: boolPtr(true),
		Overwrite:      boolPtr(false),
	})
	if err != nil {
		return enrollment.Image{}, goerrors.Wrap(err, goerrors.CategoryOperation, "cloudinary upload failed")
	}
	if res.Error.Message != "" {
		return enrollment.Image{}, goerrors.New(res.Error.Message, goerrors.CategoryOperation).
			WithTextCode("UPLOAD_FAILED")
	}

	return enrollment.Image{URL: res.SecureURL, Filename: res.PublicID}, nil
}

func (c *Cloudinary) Delete(ctx context.Context, filename string) error {
	res, err := c.api.Destroy(ctx, uploader.DestroyParams{PublicID: filename})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "cloudinary delete failed")
	}
	if res.Error.Message != "" {
		return goerrors.New(res.Error.Message, goerrors.CategoryOperation).
			WithTextCode("DELETE_FAILED")
	}
	return nil
}
