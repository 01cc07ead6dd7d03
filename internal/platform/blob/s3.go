package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3 stores blobs in an S3 compatible bucket. Directories do not exist in an
// object store: MkdirAll is a no-op and Rename of a "directory" moves every
// object under the prefix.
type S3 struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewS3(endpoint, accessKey, secretKey, bucket, prefix string, useSSL bool) (*S3, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// CheckBucket fails when the configured bucket is missing or unreachable.
func (s *S3) CheckBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("find bucket: %w", err)
	}
	if !ok {
		return fmt.Errorf("find bucket: bucket %q does not exist", s.bucket)
	}
	return nil
}

func (s *S3) key(p string) string {
	return path.Join(s.prefix, strings.TrimPrefix(p, "/"))
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey"
}

func (s *S3) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.key(p), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if !isNotFound(err) {
		return false, err
	}
	// a "directory" exists when any object carries its prefix
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.key(p) + "/", MaxKeys: 1}) {
		if obj.Err != nil {
			return false, obj.Err
		}
		return true, nil
	}
	return false, nil
}

func (s *S3) Read(ctx context.Context, p string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key(p), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", p, ErrNotExist)
		}
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

func (s *S3) Write(ctx context.Context, p string, data []byte) error {
	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(ctx, s.bucket, s.key(p), reader, reader.Size(),
		minio.PutObjectOptions{ContentType: contentType(p)})
	if err != nil {
		return fmt.Errorf("put %s: %w", p, err)
	}
	return nil
}

func (s *S3) Delete(ctx context.Context, p string) error {
	ok, err := s.Exists(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", p, ErrNotExist)
	}
	keys, err := s.keysUnder(ctx, p)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := s.client.RemoveObject(ctx, s.bucket, k, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove %s: %w", k, err)
		}
	}
	return nil
}

func (s *S3) MkdirAll(context.Context, string) error { return nil }

func (s *S3) Rename(ctx context.Context, from, to string) error {
	keys, err := s.keysUnder(ctx, from)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("%s: %w", from, ErrNotExist)
	}
	src, dst := s.key(from), s.key(to)
	for _, k := range keys {
		target := dst + strings.TrimPrefix(k, src)
		_, err := s.client.CopyObject(ctx,
			minio.CopyDestOptions{Bucket: s.bucket, Object: target},
			minio.CopySrcOptions{Bucket: s.bucket, Object: k})
		if err != nil {
			return fmt.Errorf("copy %s: %w", k, err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, k, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("remove %s: %w", k, err)
		}
	}
	return nil
}

// keysUnder returns the object itself, or every object below it when p names
// a prefix.
func (s *S3) keysUnder(ctx context.Context, p string) ([]string, error) {
	k := s.key(p)
	if _, err := s.client.StatObject(ctx, s.bucket, k, minio.StatObjectOptions{}); err == nil {
		return []string{k}, nil
	} else if !isNotFound(err) {
		return nil, err
	}
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: k + "/", Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func contentType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".geojson":
		return "application/geo+json"
	case ".json":
		return "application/json"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
