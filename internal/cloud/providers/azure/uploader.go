// Package azure uploads files to an Azure Blob Storage container using a
// SAS token.
package azure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/google/uuid"

	"github.com/chinmay4o/superlinks/internal/api"
	"github.com/chinmay4o/superlinks/internal/cloud"
	"github.com/chinmay4o/superlinks/internal/config"
	"github.com/chinmay4o/superlinks/internal/http"
	"github.com/chinmay4o/superlinks/internal/logging"
	"github.com/chinmay4o/superlinks/internal/models"
	"github.com/chinmay4o/superlinks/internal/transfer"
)

const (
	blockSize   = 4 * 1024 * 1024
	concurrency = 4
)

// StreamUploader is the subset of *azblob.Client used here.
type StreamUploader interface {
	UploadStream(ctx context.Context, containerName string, blobName string, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error)
}

// Uploader implements transfer.Transport on Azure Blob Storage.
type Uploader struct {
	client     StreamUploader
	serviceURL string
	container  string
	prefix     string
	logger     *logging.Logger
	newID      func() string
}

// ServiceURL returns the account's blob endpoint.
func ServiceURL(account string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net", account)
}

// NewUploader creates the azblob client with the shared upload HTTP client.
func NewUploader(cfg *config.Config, logger *logging.Logger) (*Uploader, error) {
	if cfg.AzureAccount == "" || cfg.AzureContainer == "" {
		return nil, fmt.Errorf("Azure account and container are required")
	}

	httpClient, err := http.CreateOptimizedClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	sasURL := ServiceURL(cfg.AzureAccount) + "/"
	if sas := strings.TrimPrefix(cfg.AzureSASToken, "?"); sas != "" {
		sasURL += "?" + sas
	}

	client, err := azblob.NewClientWithNoCredential(sasURL, &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: httpClient,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}
	return NewUploaderWithClient(client, cfg, logger), nil
}

// NewUploaderWithClient wires an existing client.
func NewUploaderWithClient(client StreamUploader, cfg *config.Config, logger *logging.Logger) *Uploader {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Uploader{
		client:     client,
		serviceURL: ServiceURL(cfg.AzureAccount),
		container:  cfg.AzureContainer,
		prefix:     cfg.ObjectPrefix,
		logger:     logger,
		newID:      uuid.NewString,
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
	blobName := cloud.ObjectKey(u.prefix, meta, id)

	metadata := make(map[string]*string)
	for k, v := range cloud.Metadata(meta) {
		v := v
		// Azure metadata names must be C# identifiers.
		metadata[strings.ReplaceAll(k, "-", "_")] = &v
	}
	contentType := file.MimeType

	_, err = u.client.UploadStream(ctx, u.container, blobName, transfer.NewProgressReader(body, progress), &azblob.UploadStreamOptions{
		BlockSize:   blockSize,
		Concurrency: concurrency,
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
		Metadata:    metadata,
	})
	if err != nil {
		op := fmt.Sprintf("upload %s to container %s", file.Name, u.container)
		var re *azcore.ResponseError
		if errors.As(err, &re) {
			return nil, &api.ServerError{Op: op, StatusCode: re.StatusCode, Body: re.ErrorCode}
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	u.logger.Debug().Str("container", u.container).Str("blob", blobName).Int64("size", file.Size).Msg("Uploaded blob")

	return &models.FileDescriptor{
		ID:           id,
		URL:          cloud.ObjectURL(u.serviceURL+"/"+u.container, blobName),
		OriginalName: meta.OriginalName,
		Size:         file.Size,
		MimeType:     file.MimeType,
	}, nil
}
