package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/quantfold/allocator-bot/internal/modules/allocation"
)

// S3API is the slice of the S3 client the store needs. Satisfied by
// *s3.Client; narrowed for tests.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store persists allocations and tasks as JSON documents in an S3 (or
// S3-compatible) bucket.
type S3Store struct {
	client        S3API
	bucket        string
	allocationKey string
	taskKey       string
	log           zerolog.Logger
	mu            sync.Mutex
}

// NewS3Client builds an S3 client for an S3-compatible endpoint with static
// credentials. An empty endpoint uses the default AWS resolution.
func NewS3Client(ctx context.Context, endpoint, accessKey, secretKey string) (*s3.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 configuration: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return client, nil
}

// NewS3Store creates an S3-backed store.
func NewS3Store(client S3API, bucket, allocationKey, taskKey string, log zerolog.Logger) *S3Store {
	return &S3Store{
		client:        client,
		bucket:        bucket,
		allocationKey: allocationKey,
		taskKey:       taskKey,
		log:           log.With().Str("store", "s3").Logger(),
	}
}

// SaveAllocation inserts or overwrites the rows under id.
func (s *S3Store) SaveAllocation(ctx context.Context, id string, rows []allocation.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection := make(map[string][]allocation.Row)
	if err := s.getDocument(ctx, s.allocationKey, &collection); err != nil {
		return err
	}
	collection[id] = rows

	if err := s.putDocument(ctx, s.allocationKey, collection); err != nil {
		return err
	}

	s.log.Debug().Str("allocation_id", id).Int("rows", len(rows)).Msg("Saved allocation")
	return nil
}

// LoadAllocations returns the whole allocation collection. A missing object
// is an empty collection.
func (s *S3Store) LoadAllocations(ctx context.Context) (map[string][]allocation.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection := make(map[string][]allocation.Row)
	if err := s.getDocument(ctx, s.allocationKey, &collection); err != nil {
		return nil, err
	}
	return collection, nil
}

// SaveTask inserts or overwrites the task under id.
func (s *S3Store) SaveTask(ctx context.Context, id string, task TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection := make(map[string]TaskRecord)
	if err := s.getDocument(ctx, s.taskKey, &collection); err != nil {
		return err
	}
	collection[id] = task

	if err := s.putDocument(ctx, s.taskKey, collection); err != nil {
		return err
	}

	s.log.Debug().Str("allocation_id", id).Msg("Saved task")
	return nil
}

// LoadTasks returns the whole task collection. A missing object is an empty
// collection.
func (s *S3Store) LoadTasks(ctx context.Context) (map[string]TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	collection := make(map[string]TaskRecord)
	if err := s.getDocument(ctx, s.taskKey, &collection); err != nil {
		return nil, err
	}
	return collection, nil
}

func (s *S3Store) getDocument(ctx context.Context, key string, out interface{}) error {
	output, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil // missing document is an empty collection
		}
		return fmt.Errorf("failed to get s3://%s/%s: %w", s.bucket, key, err)
	}
	defer output.Body.Close()

	data, err := io.ReadAll(output.Body)
	if err != nil {
		return fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, key, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

func (s *S3Store) putDocument(ctx context.Context, key string, collection interface{}) error {
	data, err := json.MarshalIndent(collection, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode s3://%s/%s: %w", s.bucket, key, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}
