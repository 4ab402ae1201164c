package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"time"

	"tgstream/config"
	"tgstream/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrObjectNotFound is returned by Open for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// StreamPrefix is the key prefix under which job outputs are mirrored.
const StreamPrefix = "streams/"

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// MinioStore mirrors job output directories into one bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
	region string
}

// NewMinioStore connects to the endpoint in cfg and makes sure the bucket exists.
func NewMinioStore(ctx context.Context, cfg *config.Config) (*MinioStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	s := &MinioStore{client: client, bucket: cfg.MinioBucket, region: cfg.MinioRegion}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}

	logger.Info("MinIO store ready",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))
	return s, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	logger.Info("Created bucket", logger.String("bucket", s.bucket))
	return nil
}

// Bucket is the bucket name.
func (s *MinioStore) Bucket() string {
	return s.bucket
}

// ObjectKey is the key of one file of a job's stream.
func ObjectKey(jobID, file string) string {
	return StreamPrefix + jobID + "/" + file
}

// ContentType returns the MIME type served for a stream file.
func ContentType(name string) string {
	switch path.Ext(name) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/mp2t"
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// UploadDir uploads every regular file directly inside dir under the job's prefix
// and returns the number of uploaded objects.
func (s *MinioStore) UploadDir(ctx context.Context, jobID, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	uploaded := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		key := ObjectKey(jobID, entry.Name())
		_, err := s.client.FPutObject(ctx, s.bucket, key, filepath.Join(dir, entry.Name()), minio.PutObjectOptions{
			ContentType: ContentType(entry.Name()),
		})
		if err != nil {
			return uploaded, fmt.Errorf("failed to upload %s: %w", key, err)
		}
		uploaded++
	}

	logger.Debug("Mirrored job output",
		logger.String("jobId", jobID),
		logger.Int("objects", uploaded))
	return uploaded, nil
}

// Open returns a reader for one stream file. The caller closes it.
func (s *MinioStore) Open(ctx context.Context, jobID, file string) (io.ReadCloser, *ObjectInfo, error) {
	key := ObjectKey(jobID, file)
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, s.mapError(key, err)
	}
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, nil, s.mapError(key, err)
	}
	return obj, &ObjectInfo{
		Key:          st.Key,
		Size:         st.Size,
		LastModified: st.LastModified,
		ContentType:  st.ContentType,
		ETag:         st.ETag,
	}, nil
}

func (s *MinioStore) mapError(key string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrObjectNotFound
	}
	return fmt.Errorf("failed to read %s: %w", key, err)
}

// List returns the objects under prefix.
func (s *MinioStore) List(ctx context.Context, prefix string) ([]ObjectInfo, *BucketStats, error) {
	stats := &BucketStats{}
	var objects []ObjectInfo

	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		info := ObjectInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
			ContentType:  object.ContentType,
			ETag:         object.ETag,
		}
		stats.Add(info)
		objects = append(objects, info)
	}
	return objects, stats, nil
}

// DeleteJob removes every mirrored object of a job and returns how many were removed.
func (s *MinioStore) DeleteJob(ctx context.Context, jobID string) (int, error) {
	return s.DeletePrefix(ctx, StreamPrefix+jobID+"/")
}

// DeletePrefix removes every object under prefix.
func (s *MinioStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	objects, _, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	if len(objects) == 0 {
		return 0, nil
	}

	objectsCh := make(chan minio.ObjectInfo, len(objects))
	for _, obj := range objects {
		objectsCh <- minio.ObjectInfo{Key: obj.Key}
	}
	close(objectsCh)

	failed := 0
	var firstErr error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, objectsCh, minio.RemoveObjectsOptions{}) {
		if rerr.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to delete %s: %w", rerr.ObjectName, rerr.Err)
			}
		}
	}
	return len(objects) - failed, firstErr
}
