// Package media stores user-uploaded images in an S3-compatible bucket and
// returns the public URL of each stored object.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ErrEmpty is returned for an upload without a body.
var ErrEmpty = errors.New("empty upload")

// File is one uploaded file as received from a multipart form.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

type Config struct {
	Bucket        string
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	UsePathStyle  bool
}

func ConfigFromEnv() Config {
	cfg := Config{
		Bucket:        os.Getenv("MEDIA_S3_BUCKET"),
		Region:        os.Getenv("MEDIA_S3_REGION"),
		Endpoint:      os.Getenv("MEDIA_S3_ENDPOINT"),
		AccessKey:     os.Getenv("MEDIA_S3_ACCESS_KEY"),
		SecretKey:     os.Getenv("MEDIA_S3_SECRET_KEY"),
		PublicBaseURL: os.Getenv("MEDIA_PUBLIC_BASE_URL"),
		UsePathStyle:  true,
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if v, err := strconv.ParseBool(os.Getenv("MEDIA_S3_PATH_STYLE")); err == nil {
		cfg.UsePathStyle = v
	}
	return cfg
}

type objectClient interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Uploader puts objects into one bucket and deletes them again.
type S3Uploader struct {
	client objectClient
	cfg    Config
	now    func() time.Time
	newID  func() string
}

// NewS3Uploader builds an S3 client from cfg. Static credentials are used when
// both keys are set, otherwise the default AWS credential chain applies.
func NewS3Uploader(ctx context.Context, cfg Config) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("media: bucket is required")
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("media: load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return newUploader(client, cfg), nil
}

func newUploader(client objectClient, cfg Config) *S3Uploader {
	return &S3Uploader{client: client, cfg: cfg, now: time.Now, newID: uuid.NewString}
}

// Upload stores f under prefix and returns its public URL.
func (u *S3Uploader) Upload(ctx context.Context, prefix string, f File) (string, error) {
	if f.Body == nil {
		return "", ErrEmpty
	}
	key := u.objectKey(prefix, f.Name)
	in := &s3.PutObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
		Body:   f.Body,
	}
	if f.ContentType != "" {
		in.ContentType = aws.String(f.ContentType)
	}
	if _, err := u.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("media: put %s: %w", key, err)
	}
	return u.publicURL(key), nil
}

// Delete removes the object behind a URL returned by Upload.
func (u *S3Uploader) Delete(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, u.publicURL(""))
	if !ok || key == "" {
		return fmt.Errorf("media: %q is not in bucket %s", url, u.cfg.Bucket)
	}
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("media: delete %s: %w", key, err)
	}
	return nil
}

// objectKey is <prefix>/<yyyy>/<mm>/<dd>/<uuid><ext>.
func (u *S3Uploader) objectKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	day := u.now().UTC().Format("2006/01/02")
	return path.Join(strings.Trim(prefix, "/"), day, u.newID()+ext)
}

func (u *S3Uploader) publicURL(key string) string {
	if u.cfg.PublicBaseURL != "" {
		return strings.TrimRight(u.cfg.PublicBaseURL, "/") + "/" + key
	}
	if u.cfg.Endpoint != "" {
		return strings.TrimRight(u.cfg.Endpoint, "/") + "/" + u.cfg.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.cfg.Bucket, u.cfg.Region, key)
}
