// Package validation runs startup checks against external collaborators so
// misconfiguration fails fast instead of surfacing mid-request.
package validation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/quantfold/allocator-bot/internal/config"
	"github.com/quantfold/allocator-bot/internal/modules/prices"
)

// KeyChecker validates LLM credentials. Implemented by agent.LLMClient.
type KeyChecker interface {
	CheckKey(ctx context.Context) error
}

// BucketAPI is the slice of the S3 client the checks need.
type BucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Validator holds the collaborators to probe.
type Validator struct {
	cfg      *config.Config
	llm      KeyChecker
	bucket   BucketAPI
	provider prices.Provider
	log      zerolog.Logger
}

// New creates a validator. bucket may be nil when S3 is disabled.
func New(cfg *config.Config, llm KeyChecker, bucket BucketAPI, provider prices.Provider, log zerolog.Logger) *Validator {
	return &Validator{
		cfg:      cfg,
		llm:      llm,
		bucket:   bucket,
		provider: provider,
		log:      log.With().Str("component", "validation").Logger(),
	}
}

// Run executes all environment validations, failing on the first error.
// Set VALIDATION_SKIP=true to bypass in development environments.
func (v *Validator) Run(ctx context.Context) error {
	if os.Getenv("VALIDATION_SKIP") == "true" {
		v.log.Warn().Msg("VALIDATION_SKIP=true: skipping external credential checks")
		return nil
	}

	if err := v.checkOpenRouter(ctx); err != nil {
		return err
	}

	if v.cfg.S3Enabled {
		if err := v.checkS3(ctx); err != nil {
			return err
		}
	} else {
		if err := v.checkLocalStorage(); err != nil {
			return err
		}
	}

	if err := v.checkPriceProvider(ctx); err != nil {
		return err
	}

	v.log.Info().Msg("Environment validation succeeded")
	return nil
}

func (v *Validator) checkOpenRouter(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := v.llm.CheckKey(probeCtx); err != nil {
		return err
	}
	return nil
}

// checkS3 confirms bucket existence and read access with a head-bucket and a
// zero-key list.
func (v *Validator) checkS3(ctx context.Context) error {
	if v.bucket == nil {
		return fmt.Errorf("S3 validation failed: no client configured")
	}

	if _, err := v.bucket.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(v.cfg.S3BucketName),
	}); err != nil {
		return fmt.Errorf("S3 validation failed: %w", err)
	}

	if _, err := v.bucket.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(v.cfg.S3BucketName),
		MaxKeys: aws.Int32(0),
	}); err != nil {
		return fmt.Errorf("S3 validation failed: %w", err)
	}

	return nil
}

// checkLocalStorage ensures the data folder exists and is writable.
func (v *Validator) checkLocalStorage() error {
	path := v.cfg.DataFolderPath
	if path == "" {
		return fmt.Errorf("DATA_FOLDER_PATH must be set when S3 is disabled")
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create data folder at %q: %w", path, err)
	}

	testFile := filepath.Join(path, ".allocator_write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0644); err != nil {
		return fmt.Errorf("data folder is not writable at %q: %w", path, err)
	}
	if err := os.Remove(testFile); err != nil {
		return fmt.Errorf("failed to clean up write test at %q: %w", path, err)
	}

	return nil
}

// checkPriceProvider fetches a tiny slice of data to validate the key.
func (v *Validator) checkPriceProvider(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -5)

	_, err := v.provider.HistoricalPrices(
		probeCtx,
		[]string{"AAPL"},
		start.Format("2006-01-02"),
		end.Format("2006-01-02"),
	)
	if err != nil {
		return fmt.Errorf("price provider validation failed: %w", err)
	}
	return nil
}
