package chunkstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config configures an object-storage-backed chunk store.
type S3Config struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UsePathStyle bool
}

// S3 persists chunks as JSON objects under "<prefix>/<chunk_id>.json". It
// trades per-call latency for unbounded durability, for deployments that
// want object-storage retention on full_text/summary instead of a database.
// created_at ordering is kept in a small in-memory index, filled only by
// this process's Put and Get calls, since S3 has no secondary index to sort
// by; objects this process has not written or read are not listed.
type S3 struct {
	client *s3.Client
	bucket string
	prefix string

	mu   sync.RWMutex
	byID map[string]time.Time // chunk_id -> created_at, populated lazily
}

// NewS3 builds an S3-backed Store from configuration, with credential and
// endpoint wiring that works for AWS and MinIO-compatible services alike.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 chunk store requires a bucket")
	}

	awsOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsOpts = append(awsOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: strings.TrimSuffix(cfg.Prefix, "/"),
		byID:   make(map[string]time.Time),
	}, nil
}

func (s *S3) key(chunkID string) string {
	if s.prefix == "" {
		return chunkID + ".json"
	}
	return s.prefix + "/" + chunkID + ".json"
}

func (s *S3) Put(ctx context.Context, c Chunk) error {
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(c.ChunkID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put chunk: %w", err)
	}
	s.mu.Lock()
	s.byID[c.ChunkID] = c.CreatedAt
	s.mu.Unlock()
	return nil
}

func (s *S3) Get(ctx context.Context, chunkID string) (Chunk, bool, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(chunkID)),
	})
	if isS3NotFound(err) {
		return Chunk{}, false, nil
	}
	if err != nil {
		return Chunk{}, false, fmt.Errorf("s3 get chunk: %w", err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return Chunk{}, false, fmt.Errorf("read chunk body: %w", err)
	}
	var c Chunk
	if err := json.Unmarshal(data, &c); err != nil {
		return Chunk{}, false, fmt.Errorf("unmarshal chunk: %w", err)
	}
	s.mu.Lock()
	s.byID[c.ChunkID] = c.CreatedAt
	s.mu.Unlock()
	return c, true, nil
}

func (s *S3) GetSummaries(ctx context.Context, chunkIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(chunkIDs))
	for _, id := range chunkIDs {
		c, ok, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out[id] = c.Summary
		}
	}
	return out, nil
}

// ListByCreatedAt serves from the in-memory index populated by prior Put/Get
// calls within this process. A cold process with an empty index returns no
// rows rather than paginating the whole bucket; callers that need a durable
// recency index should pair S3 with Postgres for ListByCreatedAt instead.
func (s *S3) ListByCreatedAt(_ context.Context, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.byID[ids[i]].After(s.byID[ids[j]])
	})
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func isS3NotFound(err error) bool {
	if err == nil {
		return false
	}
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound) ||
		strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey")
}
