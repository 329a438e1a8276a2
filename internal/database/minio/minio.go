package minio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"underwriting-service/internal/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient wraps the MinIO client used to archive the generated
// policy documents once a policy issues.
type MinioClient struct {
	client *minio.Client
	config config.MinioConfig
}

// Storage defines the bucket names used by the underwriting service.
var Storage = struct {
	PolicyDocuments string
	QuoteDocuments  string
}{
	PolicyDocuments: "policy-documents",
	QuoteDocuments:  "quote-documents",
}

var BucketNames = []string{
	Storage.PolicyDocuments,
	Storage.QuoteDocuments,
}

func NewMinioClient(cfg config.MinioConfig) (*MinioClient, error) {
	endpoint := strings.TrimPrefix(cfg.MinioURL, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	isSecure, err := strconv.ParseBool(cfg.MinioSecure)
	if err != nil {
		slog.Warn("Invalid value for MinIO secure flag, defaulting to false", "error", err)
		isSecure = false
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: isSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := minioClient.ListBuckets(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO server: %w", err)
	}

	mc := &MinioClient{client: minioClient, config: cfg}
	if err := mc.ensureRequiredBuckets(); err != nil {
		return nil, fmt.Errorf("failed to ensure required buckets: %w", err)
	}

	slog.Info("MinIO client initialized", "endpoint", endpoint, "buckets", len(BucketNames))
	return mc, nil
}

func (mc *MinioClient) ensureRequiredBuckets() error {
	ctx := context.Background()
	for _, bucketName := range BucketNames {
		if err := mc.ensureBucket(ctx, bucketName); err != nil {
			return fmt.Errorf("failed to ensure bucket %s: %w", bucketName, err)
		}
	}
	return nil
}

func (mc *MinioClient) ensureBucket(ctx context.Context, bucketName string) error {
	exists, err := mc.client.BucketExists(ctx, bucketName)
	if err != nil {
		return fmt.Errorf("error checking bucket existence: %w", err)
	}
	if !exists {
		err := mc.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{
			Region: mc.config.MinioLocation,
		})
		if err != nil {
			return fmt.Errorf("error creating bucket %s: %w", bucketName, err)
		}
		slog.Info("Created bucket", "bucket", bucketName)
	}
	return nil
}

// ArchiveDocument stores document text under bucket/objectName and
// returns the object path.
func (mc *MinioClient) ArchiveDocument(ctx context.Context, bucket, objectName, document string) (string, error) {
	reader := bytes.NewReader([]byte(document))
	_, err := mc.client.PutObject(ctx, bucket, objectName, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive document %s/%s: %w", bucket, objectName, err)
	}
	return fmt.Sprintf("%s/%s", bucket, objectName), nil
}

// ArchivePolicyDocument stores the final policy wording under the
// policy documents bucket, keyed by policy number.
func (mc *MinioClient) ArchivePolicyDocument(ctx context.Context, policyNumber, document string) (string, error) {
	return mc.ArchiveDocument(ctx, Storage.PolicyDocuments, policyNumber+".txt", document)
}

// ArchiveQuoteDocument stores the rendered quote text under the quote
// documents bucket, keyed by session id.
func (mc *MinioClient) ArchiveQuoteDocument(ctx context.Context, sessionID, document string) (string, error) {
	return mc.ArchiveDocument(ctx, Storage.QuoteDocuments, sessionID+".txt", document)
}
