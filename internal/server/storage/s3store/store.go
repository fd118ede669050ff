// Package s3store is a storage backend for S3-compatible object stores
// (AWS S3, MinIO). Upload sessions map onto multipart uploads.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gophdrive/internal/common"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/dmitrijs2005/gophdrive/internal/retryx"
	"github.com/dmitrijs2005/gophdrive/internal/server/storage"
)

// MinChunkMultiplier keeps parts at or above the S3 minimum of 5 MiB.
const MinChunkMultiplier = 16

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// api is the part of *s3.Client the store uses.
type api interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	ListParts(ctx context.Context, in *s3.ListPartsInput, optFns ...func(*s3.Options)) (*s3.ListPartsOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type Config struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	UsePathStyle bool

	PresignExpiry time.Duration

	OnRetry func(op string, retry int, err error)
}

type Store struct {
	cfg     Config
	client  api
	presign presigner
	policy  retryx.Policy
	logger  logging.Logger
}

var _ storage.Backend = (*Store)(nil)

func New(ctx context.Context, cfg Config, l logging.Logger) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: missing S3 bucket", common.ErrMisconfigured)
	}

	awsCfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.BaseEndpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
		// retryx owns retries.
		o.RetryMaxAttempts = 1
	})

	return newStore(cfg, client, s3.NewPresignClient(client), l), nil
}

func newStore(cfg Config, client api, p presigner, l logging.Logger) *Store {
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}
	s := &Store{cfg: cfg, client: client, presign: p, logger: l.With("module", "s3store")}
	s.policy = retryx.ChunkPolicy()
	s.policy.OnRetry = func(retry int, err error, delay time.Duration) {
		s.logger.Warn(context.Background(), "retrying s3 call", "retry", retry, "delay", delay, "error", err)
		if cfg.OnRetry != nil {
			cfg.OnRetry("s3", retry, err)
		}
	}
	return s
}

func (s *Store) Name() string { return "s3" }

func (s *Store) ResolveChunkSize(multiplier *int) int64 {
	return storage.ClampChunkSize(multiplier, MinChunkMultiplier)
}

// call runs op under the retry policy with SDK errors tagged by status.
func call[T any](ctx context.Context, s *Store, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	return retryx.DoValue(ctx, s.policy, func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		if err != nil {
			return v, classify(op, err)
		}
		return v, nil
	})
}

// classify tags an SDK error with the HTTP status of the response, if any.
func classify(op string, err error) error {
	var withStatus interface{ HTTPStatusCode() int }
	if errors.As(err, &withStatus) {
		status := withStatus.HTTPStatusCode()
		e := retryx.FromStatus(op, status, err.Error())
		e.Err = err
		if status == http.StatusNotFound {
			return fmt.Errorf("%w: %w", common.ErrorNotFound, e)
		}
		return e
	}
	return retryx.FromTransport(op, err)
}

func (s *Store) GetMetadata(ctx context.Context, basePath, relPath string) (*storage.Item, error) {
	key := storage.JoinPath(basePath, relPath)
	out, err := call(ctx, s, "head object", func(ctx context.Context) (*s3.HeadObjectOutput, error) {
		return s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(s.cfg.Bucket), Key: aws.String(key)})
	})
	if err != nil {
		return nil, err
	}
	return &storage.Item{
		ID:       key,
		Name:     path.Base(key),
		Size:     aws.ToInt64(out.ContentLength),
		MimeType: aws.ToString(out.ContentType),
		ETag:     aws.ToString(out.ETag),
		Modified: aws.ToTime(out.LastModified),
	}, nil
}

func (s *Store) UploadDirect(ctx context.Context, basePath, relPath string, data []byte) (*storage.Item, error) {
	key := storage.JoinPath(basePath, relPath)
	out, err := call(ctx, s, "put object", func(ctx context.Context) (*s3.PutObjectOutput, error) {
		return s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.cfg.Bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentLength: aws.Int64(int64(len(data))),
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "uploaded object", "key", key, "size", len(data))
	return &storage.Item{ID: key, Name: path.Base(key), Size: int64(len(data)), ETag: aws.ToString(out.ETag), Modified: time.Now()}, nil
}

// DeleteItem removes the object. S3 deletes are idempotent; a 404 from a
// compatible store is treated the same way.
func (s *Store) DeleteItem(ctx context.Context, basePath, relPath string) error {
	key := storage.JoinPath(basePath, relPath)
	_, err := call(ctx, s, "delete object", func(ctx context.Context) (*s3.DeleteObjectOutput, error) {
		return s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(s.cfg.Bucket), Key: aws.String(key)})
	})
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	return nil
}

func (s *Store) DownloadURL(ctx context.Context, basePath, relPath string) (string, error) {
	key := storage.JoinPath(basePath, relPath)
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.PresignExpiry))
	if err != nil {
		return "", fmt.Errorf("presign get %s: %w", key, err)
	}
	return req.URL, nil
}
