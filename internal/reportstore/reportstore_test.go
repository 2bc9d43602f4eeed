package reportstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/holidaynate/MaxClaim-Replit-sub001/internal/config"
)

type mockObjects struct {
	mock.Mock
	body []byte
}

func (m *mockObjects) BucketExists(ctx context.Context, bucket string) (bool, error) {
	args := m.Called(ctx, bucket)
	return args.Bool(0), args.Error(1)
}

func (m *mockObjects) MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucket, opts).Error(0)
}

func (m *mockObjects) PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	m.body, _ = io.ReadAll(r)
	args := m.Called(ctx, bucket, object, size, opts.ContentType)
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: size}, args.Error(0)
}

func TestNew_RequiresEndpoint(t *testing.T) {
	_, err := New(config.ReportsConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")

	s, err := New(config.ReportsConfig{Endpoint: "localhost:9000", Bucket: "reports", Prefix: "qa"})
	require.NoError(t, err)
	assert.Equal(t, "qa/", s.prefix)
}

func TestEnsureBucket(t *testing.T) {
	ctx := context.Background()

	m := &mockObjects{}
	m.On("BucketExists", ctx, "reports").Return(false, nil)
	m.On("MakeBucket", ctx, "reports", minio.MakeBucketOptions{}).Return(nil)
	require.NoError(t, newWithClient(m, "reports", "").EnsureBucket(ctx))
	m.AssertExpectations(t)

	m = &mockObjects{}
	m.On("BucketExists", ctx, "reports").Return(true, nil)
	require.NoError(t, newWithClient(m, "reports", "").EnsureBucket(ctx))
	m.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)

	m = &mockObjects{}
	m.On("BucketExists", ctx, "reports").Return(false, errors.New("access denied"))
	err := newWithClient(m, "reports", "").EnsureBucket(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reportstore: check bucket reports")
}

func TestKey(t *testing.T) {
	s := newWithClient(&mockObjects{}, "reports", "distribution/")
	at := time.Date(2026, 4, 10, 9, 30, 15, 0, time.FixedZone("CDT", -5*3600))

	key := s.Key("chi-square", at)
	assert.True(t, strings.HasPrefix(key, "distribution/chi-square/2026/04/10/143015-"), key)
	assert.True(t, strings.HasSuffix(key, ".json"), key)
}

func TestSave(t *testing.T) {
	ctx := context.Background()
	m := &mockObjects{}
	m.On("PutObject", ctx, "reports", mock.MatchedBy(func(k string) bool {
		return strings.HasPrefix(k, "qa/summary/")
	}), mock.Anything, "application/json").Return(nil)

	s := newWithClient(m, "reports", "qa")
	s.nowFunc = func() time.Time { return time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC) }

	key, err := s.Save(ctx, "summary", map[string]any{"passed": true, "statistic": 1.5})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "qa/summary/2026/04/10/120000-"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(m.body, &got))
	assert.Equal(t, true, got["passed"])
	m.AssertExpectations(t)
}

func TestSave_UploadError(t *testing.T) {
	m := &mockObjects{}
	m.On("PutObject", mock.Anything, "reports", mock.Anything, mock.Anything, "application/json").
		Return(errors.New("connection refused"))

	_, err := newWithClient(m, "reports", "").Save(context.Background(), "summary", struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reportstore: upload summary/")
}
