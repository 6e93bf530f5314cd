// Package cloud adapts the upload backends (storefront API, S3, Azure Blob)
// to the coordinator's transfer.Transport contract.
package cloud

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/chinmay4o/superlinks/internal/models"
	"github.com/chinmay4o/superlinks/internal/transfer"
)

// Uploader is the multipart upload surface of the API client.
type Uploader interface {
	Upload(ctx context.Context, body io.Reader, mimeType string, meta models.UploadMetadata, progress func(sent int64)) (*models.FileDescriptor, error)
}

// APITransport sends files through POST /api/upload.
type APITransport struct {
	client Uploader
}

// NewAPITransport wraps an API client.
func NewAPITransport(client Uploader) *APITransport {
	return &APITransport{client: client}
}

// Upload implements transfer.Transport.
func (t *APITransport) Upload(ctx context.Context, file transfer.File, meta models.UploadMetadata, progress func(sent int64)) (*models.FileDescriptor, error) {
	body, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", file.Name, err)
	}
	defer body.Close()

	fd, err := t.client.Upload(ctx, body, file.MimeType, meta, progress)
	if err != nil {
		return nil, err
	}
	if fd.Size == 0 {
		fd.Size = file.Size
	}
	if fd.MimeType == "" {
		fd.MimeType = file.MimeType
	}
	return fd, nil
}

// ObjectKey builds the storage key for an upload: prefix/type/folder/id-name.
// Empty segments are skipped and the name is reduced to its base.
func ObjectKey(prefix string, meta models.UploadMetadata, id string) string {
	name := path.Base(strings.ReplaceAll(meta.OriginalName, "\\", "/"))
	parts := []string{}
	for _, p := range []string{prefix, string(meta.UploadType), meta.Folder} {
		p = strings.Trim(p, "/")
		if p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, id+"-"+name)
	return path.Join(parts...)
}

// ObjectURL joins base and key, escaping each key segment.
func ObjectURL(base, key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.Join(segments, "/")
}

// Metadata returns the upload metadata as string pairs for object stores.
// Empty values are omitted.
func Metadata(meta models.UploadMetadata) map[string]string {
	out := map[string]string{
		"original-name": meta.OriginalName,
		"upload-type":   string(meta.UploadType),
	}
	if meta.ProductID != "" {
		out["product-id"] = meta.ProductID
	}
	if meta.Description != "" {
		out["description"] = meta.Description
	}
	for k, v := range out {
		if v == "" {
			delete(out, k)
		}
	}
	return out
}
