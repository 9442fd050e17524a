package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	in      *s3.PutObjectInput
	body    string
	deleted []string
	err     error
}

func (f *fakeObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjects) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.deleted = append(f.deleted, aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func testUploader(p objectClient, cfg Config) *S3Uploader {
	u := newUploader(p, cfg)
	u.now = func() time.Time { return time.Date(2025, 3, 7, 23, 0, 0, 0, time.UTC) }
	u.newID = func() string { return "0b6f" }
	return u
}

func TestUpload_KeyAndPublicURL(t *testing.T) {
	p := &fakeObjects{}
	u := testUploader(p, Config{Bucket: "media", PublicBaseURL: "https://cdn.example.com/"})

	url, err := u.Upload(context.Background(), "/avatars/", File{Name: "Me.PNG", ContentType: "image/png", Body: strings.NewReader("px")})
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/avatars/2025/03/07/0b6f.png", url)
	assert.Equal(t, "media", aws.ToString(p.in.Bucket))
	assert.Equal(t, "avatars/2025/03/07/0b6f.png", aws.ToString(p.in.Key))
	assert.Equal(t, "image/png", aws.ToString(p.in.ContentType))
	assert.Equal(t, "px", p.body)
}

func TestUpload_EndpointURL(t *testing.T) {
	u := testUploader(&fakeObjects{}, Config{Bucket: "media", Endpoint: "http://127.0.0.1:9000/"})
	url, err := u.Upload(context.Background(), "covers", File{Name: "c", Body: strings.NewReader("x")})
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000/media/covers/2025/03/07/0b6f", url)
}

func TestUpload_Errors(t *testing.T) {
	u := testUploader(&fakeObjects{err: errors.New("denied")}, Config{Bucket: "media", Region: "eu-west-1"})
	_, err := u.Upload(context.Background(), "avatars", File{Name: "a.jpg", Body: strings.NewReader("x")})
	assert.ErrorContains(t, err, "denied")

	_, err = u.Upload(context.Background(), "avatars", File{Name: "a.jpg"})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDelete_ResolvesKeyFromURL(t *testing.T) {
	p := &fakeObjects{}
	u := testUploader(p, Config{Bucket: "media", PublicBaseURL: "https://cdn.example.com"})
	ctx := context.Background()

	url, err := u.Upload(ctx, "avatars", File{Name: "a.jpg", Body: strings.NewReader("x")})
	require.NoError(t, err)
	require.NoError(t, u.Delete(ctx, url))
	assert.Equal(t, []string{"media/avatars/2025/03/07/0b6f.jpg"}, p.deleted)

	assert.Error(t, u.Delete(ctx, "https://elsewhere.example.com/avatars/x.jpg"))
	assert.Error(t, u.Delete(ctx, "https://cdn.example.com/"))
	assert.Len(t, p.deleted, 1)

	p.err = errors.New("denied")
	assert.ErrorContains(t, u.Delete(ctx, url), "denied")
}

func TestPublicURL_DefaultsToAWS(t *testing.T) {
	u := testUploader(&fakeObjects{}, Config{Bucket: "media", Region: "eu-west-1"})
	assert.Equal(t, "https://media.s3.eu-west-1.amazonaws.com/k", u.publicURL("k"))
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("MEDIA_S3_BUCKET", "b")
	t.Setenv("MEDIA_S3_REGION", "")
	t.Setenv("MEDIA_S3_PATH_STYLE", "false")
	cfg := ConfigFromEnv()
	assert.Equal(t, "b", cfg.Bucket)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.False(t, cfg.UsePathStyle)
}

func TestNewS3Uploader_RequiresBucket(t *testing.T) {
	_, err := NewS3Uploader(context.Background(), Config{})
	assert.Error(t, err)
}
