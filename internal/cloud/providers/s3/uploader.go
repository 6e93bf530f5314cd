// Package s3 uploads files straight to an S3 bucket (or an S3-compatible
// store) with a single PutObject per file.
package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/chinmay4o/superlinks/internal/api"
	"github.com/chinmay4o/superlinks/internal/cloud"
	"github.com/chinmay4o/superlinks/internal/config"
	"github.com/chinmay4o/superlinks/internal/http"
	"github.com/chinmay4o/superlinks/internal/logging"
	"github.com/chinmay4o/superlinks/internal/models"
	"github.com/chinmay4o/superlinks/internal/transfer"
)

// PutObjectAPI is the subset of *s3.Client used here.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader implements transfer.Transport on S3.
type Uploader struct {
	client    PutObjectAPI
	bucket    string
	prefix    string
	publicURL string
	logger    *logging.Logger
	newID     func() string
}

// NewUploader builds an S3 client from cfg. Static credentials are used when
// configured; otherwise the default AWS chain (env, shared config, IMDS) applies.
func NewUploader(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Uploader, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}

	httpClient, err := http.CreateOptimizedClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithHTTPClient(httpClient),
	}
	if cfg.S3AccessKeyID != "" && cfg.S3SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretKey, cfg.S3SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewUploaderWithClient(client, cfg, logger), nil
}

// NewUploaderWithClient wires an existing client.
func NewUploaderWithClient(client PutObjectAPI, cfg *config.Config, logger *logging.Logger) *Uploader {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Uploader{
		client:    client,
		bucket:    cfg.S3Bucket,
		prefix:    cfg.ObjectPrefix,
		publicURL: publicBase(cfg),
		logger:    logger,
		newID:     uuid.NewString,
	}
}

func publicBase(cfg *config.Config) string {
	switch {
	case cfg.S3PublicURL != "":
		return cfg.S3PublicURL
	case cfg.S3Endpoint != "":
		return cloud.ObjectURL(cfg.S3Endpoint, cfg.S3Bucket)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
	}
}

// Upload implements transfer.Transport.
func (u *Uploader) Upload(ctx context.Context, file transfer.File, meta models.UploadMetadata, progress func(sent int64)) (*models.FileDescriptor, error) {
	body, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer body.Close()

	id := u.newID()
	key := cloud.ObjectKey(u.prefix, meta, id)

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          transfer.NewProgressReader(body, progress),
		ContentLength: aws.Int64(file.Size),
		ContentType:   aws.String(file.MimeType),
		Metadata:      cloud.Metadata(meta),
	})
	if err != nil {
		return nil, classify(fmt.Sprintf("upload %s to s3://%s/%s", file.Name, u.bucket, key), err)
	}

	u.logger.Debug().Str("bucket", u.bucket).Str("key", key).Int64("size", file.Size).Msg("Uploaded object")

	return &models.FileDescriptor{
		ID:           id,
		URL:          cloud.ObjectURL(u.publicURL, key),
		OriginalName: meta.OriginalName,
		Size:         file.Size,
		MimeType:     file.MimeType,
	}, nil
}

// classify turns an S3 HTTP response error into an api.ServerError.
// Transport failures are left to the coordinator's classification.
func classify(op string, err error) error {
	var re interface{ HTTPStatusCode() int }
	if errors.As(err, &re) && re.HTTPStatusCode() > 0 {
		return &api.ServerError{Op: op, StatusCode: re.HTTPStatusCode(), Body: err.Error()}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
