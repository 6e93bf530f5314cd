package azure

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/chinmay4o/superlinks/internal/api"
	"github.com/chinmay4o/superlinks/internal/config"
	"github.com/chinmay4o/superlinks/internal/models"
	"github.com/chinmay4o/superlinks/internal/transfer"
)

type fakeBlob struct {
	container, name string
	body            string
	opts            *azblob.UploadStreamOptions
	err             error
}

func (f *fakeBlob) UploadStream(ctx context.Context, containerName, blobName string, body io.Reader, o *azblob.UploadStreamOptions) (azblob.UploadStreamResponse, error) {
	f.container, f.name, f.opts = containerName, blobName, o
	data, _ := io.ReadAll(body)
	f.body = string(data)
	return azblob.UploadStreamResponse{}, f.err
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.UploadBackend = config.BackendAzure
	cfg.AzureAccount = "superlinks"
	cfg.AzureContainer = "media"
	return cfg
}

func TestUploadStreamsBlob(t *testing.T) {
	fake := &fakeBlob{}
	u := NewUploaderWithClient(fake, testConfig(), nil)
	u.newID = func() string { return "id1" }

	file := transfer.FileFromBytes("clip.mp4", "", []byte("videodata"))
	meta := models.UploadMetadata{OriginalName: "clip.mp4", UploadType: models.UploadTypeVideo, ProductID: "prd-1"}

	var sent int64
	fd, err := u.Upload(context.Background(), file, meta, func(n int64) { sent = n })
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if fake.container != "media" || fake.name != "uploads/video/id1-clip.mp4" {
		t.Errorf("uploaded to %s/%s", fake.container, fake.name)
	}
	if fake.body != "videodata" || sent != 9 {
		t.Errorf("body = %q progress = %d", fake.body, sent)
	}
	if ct := fake.opts.HTTPHeaders.BlobContentType; ct == nil || *ct != "video/mp4" {
		t.Errorf("content type = %v", ct)
	}
	if v := fake.opts.Metadata["product_id"]; v == nil || *v != "prd-1" {
		t.Errorf("metadata = %v", fake.opts.Metadata)
	}
	if fd.URL != "https://superlinks.blob.core.windows.net/media/uploads/video/id1-clip.mp4" {
		t.Errorf("URL = %q", fd.URL)
	}
}

func TestUploadResponseErrorIsServerError(t *testing.T) {
	fake := &fakeBlob{err: &azcore.ResponseError{StatusCode: http.StatusForbidden, ErrorCode: "AuthenticationFailed"}}
	u := NewUploaderWithClient(fake, testConfig(), nil)

	_, err := u.Upload(context.Background(), transfer.FileFromBytes("a.txt", "", []byte("x")), models.UploadMetadata{OriginalName: "a.txt"}, nil)
	if status, ok := api.IsServerError(err); !ok || status != http.StatusForbidden {
		t.Errorf("Upload() error = %v, want ServerError 403", err)
	}
}

func TestNewUploaderRequiresContainer(t *testing.T) {
	cfg := testConfig()
	cfg.AzureContainer = ""
	if _, err := NewUploader(cfg, nil); err == nil {
		t.Fatal("NewUploader() should fail without a container")
	}
}
