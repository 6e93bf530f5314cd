// Package providers selects the upload transport for the configured backend.
package providers

import (
	"context"
	"fmt"

	"github.com/chinmay4o/superlinks/internal/cloud"
	"github.com/chinmay4o/superlinks/internal/cloud/providers/azure"
	"github.com/chinmay4o/superlinks/internal/cloud/providers/s3"
	"github.com/chinmay4o/superlinks/internal/config"
	"github.com/chinmay4o/superlinks/internal/logging"
	"github.com/chinmay4o/superlinks/internal/transfer"
)

// NewTransport returns the transfer.Transport for cfg.UploadBackend.
// apiClient is only required for the api backend.
func NewTransport(ctx context.Context, cfg *config.Config, apiClient cloud.Uploader, logger *logging.Logger) (transfer.Transport, error) {
	switch cfg.UploadBackend {
	case config.BackendAPI, "":
		if apiClient == nil {
			return nil, fmt.Errorf("api upload backend requires an API client")
		}
		return cloud.NewAPITransport(apiClient), nil
	case config.BackendS3:
		return s3.NewUploader(ctx, cfg, logger)
	case config.BackendAzure:
		return azure.NewUploader(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported upload backend: %s", cfg.UploadBackend)
	}
}
