package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/tags"

	"github.com/ajy0127/soc2-report-reviewer/internal/domain/report"
)

// MinioStore implements report.ObjectStore and report.LinkSigner on any
// S3-compatible server (MinIO, Ceph, LocalStack).
type MinioStore struct {
	client *minio.Client
	region string
}

// NewMinio buat koneksi MinIO. Buckets listed in ensure are created when
// missing, so the output bucket exists before the first run.
func NewMinio(ctx context.Context, endpoint, region, accessKey, secretKey string, useSSL bool, ensure ...string) (*MinioStore, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	for _, bucket := range ensure {
		if bucket == "" {
			continue
		}
		exists, err := cli.BucketExists(ctx, bucket)
		if err != nil {
			return nil, err
		}
		if !exists {
			if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
				return nil, err
			}
		}
	}

	return &MinioStore{client: cli, region: region}, nil
}

func (s *MinioStore) Stat(ctx context.Context, bucket, key string) (report.ObjectInfo, error) {
	info, err := s.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return report.ObjectInfo{}, fmt.Errorf("minio stat %s/%s: %w", bucket, key, classifyMinio(err))
	}
	return report.ObjectInfo{Size: info.Size, ContentType: info.ContentType}, nil
}

func (s *MinioStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get %s/%s: %w", bucket, key, classifyMinio(err))
	}
	defer obj.Close()
	body, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("minio read %s/%s: %w", bucket, key, classifyMinio(err))
	}
	return body, nil
}

func (s *MinioStore) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("minio put %s/%s: %w", bucket, key, classifyMinio(err))
	}
	return nil
}

func (s *MinioStore) Tags(ctx context.Context, bucket, key string) (map[string]string, error) {
	t, err := s.client.GetObjectTagging(ctx, bucket, key, minio.GetObjectTaggingOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get tagging %s/%s: %w", bucket, key, classifyMinio(err))
	}
	return t.ToMap(), nil
}

func (s *MinioStore) SetTags(ctx context.Context, bucket, key string, m map[string]string) error {
	t, err := tags.NewTags(m, true)
	if err != nil {
		return fmt.Errorf("minio tags %s/%s: %w", bucket, key, err)
	}
	if err := s.client.PutObjectTagging(ctx, bucket, key, t, minio.PutObjectTaggingOptions{}); err != nil {
		return fmt.Errorf("minio put tagging %s/%s: %w", bucket, key, classifyMinio(err))
	}
	return nil
}

// PresignGet returns a time-limited download URL; private buckets need it
// since the plain endpoint URL is not readable.
func (s *MinioStore) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, key, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("minio presign %s/%s: %w", bucket, key, err)
	}
	return u.String(), nil
}

// Ping checks that bucket is reachable, for health checks.
func (s *MinioStore) Ping(ctx context.Context, bucket string) error {
	ok, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s does not exist", bucket)
	}
	return nil
}

func classifyMinio(err error) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "SlowDown", resp.Code == "InternalError", resp.Code == "ServiceUnavailable", resp.Code == "RequestTimeout":
		return report.MarkTransient(err)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= http.StatusInternalServerError:
		return report.MarkTransient(err)
	}
	return err
}
