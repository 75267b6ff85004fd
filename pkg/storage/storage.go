package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/richxcame/fraud-investigator/pkg/config"
	"github.com/richxcame/fraud-investigator/pkg/resilience"
)

const reportContentType = "text/markdown; charset=utf-8"

var (
	// ErrObjectNotFound is returned when a report key does not exist in the bucket
	ErrObjectNotFound = errors.New("report object not found")
	// ErrObjectExists is returned by Create when the report key is already taken
	ErrObjectExists = errors.New("report object already exists")
)

// ObjectAPI is the subset of the S3 client used by ReportStore
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// NewS3Client builds an S3 client from storage settings. Static keys and a
// custom endpoint are optional; without them the default AWS chain is used.
func NewS3Client(ctx context.Context, cfg config.StorageConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// ReportStore keeps rendered case reports in an object store
type ReportStore struct {
	client  ObjectAPI
	bucket  string
	prefix  string
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig
}

// NewReportStore creates a report store. breaker may be nil.
func NewReportStore(client ObjectAPI, bucket, prefix string, breaker *resilience.CircuitBreaker) *ReportStore {
	return &ReportStore{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		breaker: breaker,
		retry:   resilience.DefaultRetryConfig(),
	}
}

// Key returns the object key for a case report
func (s *ReportStore) Key(caseID string) string {
	name := caseID + ".md"
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

// Put uploads a case report, replacing any previous version, and returns its object key
func (s *ReportStore) Put(ctx context.Context, caseID string, body []byte) (string, error) {
	return s.put(ctx, caseID, body, false)
}

// Create uploads the first report of a case. An existing object under the same
// key is left untouched and ErrObjectExists is returned.
func (s *ReportStore) Create(ctx context.Context, caseID string, body []byte) (string, error) {
	return s.put(ctx, caseID, body, true)
}

func (s *ReportStore) put(ctx context.Context, caseID string, body []byte, exclusive bool) (string, error) {
	key := s.Key(caseID)
	retry := s.retry
	retry.RetryableChecker = func(err error) bool { return !isPreconditionFailed(err) }

	_, err := resilience.DoWithBreaker(ctx, retry, s.breaker, "storage.put", func(ctx context.Context) (*s3.PutObjectOutput, error) {
		in := &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(body),
			ContentLength: aws.Int64(int64(len(body))),
			ContentType:   aws.String(reportContentType),
		}
		if exclusive {
			in.IfNoneMatch = aws.String("*")
		}
		return s.client.PutObject(ctx, in)
	})
	if err != nil {
		if exclusive && isPreconditionFailed(err) {
			return "", fmt.Errorf("put report %s: %w", key, ErrObjectExists)
		}
		return "", fmt.Errorf("put report %s: %w", key, err)
	}
	return key, nil
}

// Get downloads a report by object key
func (s *ReportStore) Get(ctx context.Context, key string) ([]byte, error) {
	retry := s.retry
	retry.RetryableChecker = func(err error) bool { return !isNotFound(err) }

	body, err := resilience.DoWithBreaker(ctx, retry, s.breaker, "storage.get", func(ctx context.Context) ([]byte, error) {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, err
		}
		defer out.Body.Close()
		return io.ReadAll(out.Body)
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("get report %s: %w", key, err)
	}
	return body, nil
}

// Delete removes a report. Deleting a missing key is not an error.
func (s *ReportStore) Delete(ctx context.Context, key string) error {
	_, err := resilience.DoWithBreaker(ctx, s.retry, s.breaker, "storage.delete", func(ctx context.Context) (*s3.DeleteObjectOutput, error) {
		return s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
	})
	if err != nil {
		return fmt.Errorf("delete report %s: %w", key, err)
	}
	return nil
}

// Check verifies the bucket is reachable
func (s *ReportStore) Check(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	return err
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}

// isPreconditionFailed matches a conditional write refused because the key exists
func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "PreconditionFailed", "ConditionalRequestConflict":
		return true
	}
	return false
}
