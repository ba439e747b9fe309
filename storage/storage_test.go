package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCloudinary struct {
	uploadParams  uploader.UploadParams
	uploaded      []byte
	destroyParams uploader.DestroyParams
	result        *uploader.UploadResult
	err           error
}

func (f *fakeCloudinary) Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	f.uploadParams = params
	if r, ok := file.(io.Reader); ok {
		f.uploaded, _ = io.ReadAll(r)
	}
	return f.result, f.err
}

func (f *fakeCloudinary) Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error) {
	f.destroyParams = params
	return &uploader.DestroyResult{Result: "ok"}, f.err
}

func TestCloudinaryPut(t *testing.T) {
	fake := &fakeCloudinary{result: &uploader.UploadResult{
		SecureURL: "https://res.cloudinary.com/demo/image/upload/v1/enrollment/card.png",
		PublicID:  "enrollment/card",
	}}
	store := newCloudinary(fake, "/enrollment/")

	img, err := store.Put(context.Background(), "card.png", strings.NewReader("png-bytes"))
	require.NoError(t, err)

	assert.Equal(t, "enrollment/card", img.Filename)
	assert.Equal(t, fake.result.SecureURL, img.URL)
	assert.Equal(t, "enrollment", fake.uploadParams.Folder)
	assert.Equal(t, "card", fake.uploadParams.PublicID)
	assert.Equal(t, "png-bytes", string(fake.uploaded))
	assert.Contains(t, img.Thumbnail(), "/upload/w_270,h_270/")
}

func TestCloudinaryPutReportsAPIError(t *testing.T) {
	fake := &fakeCloudinary{result: &uploader.UploadResult{Error: api.ErrorResp{Message: "Invalid image file"}}}
	store := newCloudinary(fake, "enrollment")

	_, err := store.Put(context.Background(), "card.png", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid image file")
}

func TestCloudinaryDelete(t *testing.T) {
	fake := &fakeCloudinary{}
	store := newCloudinary(fake, "enrollment")

	require.NoError(t, store.Delete(context.Background(), "enrollment/card"))
	assert.Equal(t, "enrollment/card", fake.destroyParams.PublicID)
}

type fakeS3 struct {
	put    *s3.PutObjectInput
	body   []byte
	delete *s3.DeleteObjectInput
	err    error
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, f.err
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.delete = in
	return &s3.DeleteObjectOutput{}, f.err
}

func TestS3Put(t *testing.T) {
	fake := &fakeS3{}
	store := newS3(fake, S3Options{Bucket: "vault", Region: "us-east-1", BaseEndpoint: "http://127.0.0.1:9000/", Folder: "cards"})
	store.now = func() time.Time { return time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC) }

	img, err := store.Put(context.Background(), "Card.PNG", strings.NewReader("data"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(img.Filename, "cards/2024/5/17/"))
	assert.True(t, strings.HasSuffix(img.Filename, ".png"))
	assert.Equal(t, "http://127.0.0.1:9000/vault/"+img.Filename, img.URL)
	assert.Equal(t, "vault", *fake.put.Bucket)
	assert.Equal(t, img.Filename, *fake.put.Key)
	assert.Equal(t, "image/png", *fake.put.ContentType)
	assert.Equal(t, "data", string(fake.body))
}

func TestS3PutFailure(t *testing.T) {
	store := newS3(&fakeS3{err: errors.New("boom")}, S3Options{Bucket: "vault", Region: "eu-west-1"})

	_, err := store.Put(context.Background(), "a.jpg", strings.NewReader("data"))
	require.Error(t, err)
}

func TestS3DefaultURL(t *testing.T) {
	fake := &fakeS3{}
	store := newS3(fake, S3Options{Bucket: "vault", Region: "eu-west-1"})

	img, err := store.Put(context.Background(), "a.jpg", strings.NewReader("data"))
	require.NoError(t, err)
	assert.Equal(t, "https://vault.s3.eu-west-1.amazonaws.com/"+img.Filename, img.URL)

	require.NoError(t, store.Delete(context.Background(), img.Filename))
	assert.Equal(t, img.Filename, *fake.delete.Key)
}

func TestDiskPutAndDelete(t *testing.T) {
	dir := t.TempDir()
	store := NewDisk(dir, "/uploads/")

	img, err := store.Put(context.Background(), "photo.jpeg", strings.NewReader("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "/uploads/"+img.Filename, img.URL)

	raw, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(img.Filename)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(raw))

	require.NoError(t, store.Delete(context.Background(), img.Filename))
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(img.Filename)))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, store.Delete(context.Background(), "missing.png"))
}
