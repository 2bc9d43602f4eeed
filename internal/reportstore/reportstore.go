// Package reportstore uploads QA reports to S3-compatible object storage.
package reportstore

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/config"
)

// objectAPI is the subset of *minio.Client used here.
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Store writes JSON reports under a key prefix.
type Store struct {
	client  objectAPI
	bucket  string
	prefix  string
	nowFunc func() time.Time
	log     *zap.Logger
}

// New creates a report store from config. It does not contact the server.
func New(cfg config.ReportsConfig) (*Store, error) {
	if cfg.Endpoint == "" {
		return nil, eris.New("reportstore: endpoint is required")
	}
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "reportstore: create client")
	}
	return newWithClient(cli, cfg.Bucket, cfg.Prefix), nil
}

func newWithClient(cli objectAPI, bucket, prefix string) *Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{
		client:  cli,
		bucket:  bucket,
		prefix:  prefix,
		nowFunc: time.Now,
		log:     zap.L().With(zap.String("component", "reportstore")),
	}
}

// EnsureBucket creates the bucket when it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return eris.Wrapf(err, "reportstore: check bucket %s", s.bucket)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return eris.Wrapf(err, "reportstore: make bucket %s", s.bucket)
	}
	s.log.Info("created report bucket", zap.String("bucket", s.bucket))
	return nil
}

// Key returns a date-partitioned object key for a report kind.
func (s *Store) Key(kind string, at time.Time) string {
	at = at.UTC()
	return s.prefix + kind + "/" + at.Format("2006/01/02") + "/" + at.Format("150405") + "-" + uuid.NewString()[:8] + ".json"
}

// Save uploads report as indented JSON and returns its object key.
func (s *Store) Save(ctx context.Context, kind string, report any) (string, error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "reportstore: marshal report")
	}

	key := s.Key(kind, s.nowFunc())
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", eris.Wrapf(err, "reportstore: upload %s", key)
	}

	s.log.Info("report uploaded",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(body)),
	)
	return key, nil
}
