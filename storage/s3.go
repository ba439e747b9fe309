package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/emotionlab/go-enrollment"
	goerrors "github.com/goliatone/go-errors"
)

type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Options configures an S3 compatible bucket.
type S3Options struct {
	AccessKey    string
	SecretKey    string
	Bucket       string
	Region       string
	BaseEndpoint string
	Folder       string
}

// S3 stores images as objects. Image.Filename is the object key.
type S3 struct {
	client  s3API
	bucket  string
	baseURL string
	folder  string
	now     func() time.Time
}

var _ enrollment.ImageStore = (*S3)(nil)

// loadDefaultAWSConfig is a seam for tests.
var loadDefaultAWSConfig = config.LoadDefaultConfig

func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	loaders := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, loaders...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load aws config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
			o.UsePathStyle = true
		}
	})

	return newS3(client, opts), nil
}

func newS3(client s3API, opts S3Options) *S3 {
	baseURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
	if opts.BaseEndpoint != "" {
		baseURL = strings.TrimRight(opts.BaseEndpoint, "/") + "/" + opts.Bucket
	}
	return &S3{
		client:  client,
		bucket:  opts.Bucket,
		baseURL: baseURL,
		folder:  opts.Folder,
		now:     time.Now,
	}
}

func (s *S3) Put(ctx context.Context, filename string, r io.Reader) (enrollment.Image, error) {
	key := objectKey(s.folder, filename, s.now())

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		in.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return enrollment.Image{}, goerrors.Wrap(err, goerrors.CategoryOperation, "s3 upload failed").
			WithMetadata(map[string]any{"bucket": s.bucket, "key": key})
	}

	return enrollment.Image{URL: s.baseURL + "/" + key, Filename: key}, nil
}

func (s *S3) Delete(ctx context.Context, filename string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(filename),
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "s3 delete failed").
			WithMetadata(map[string]any{"bucket": s.bucket, "key": filename})
	}
	return nil
}
