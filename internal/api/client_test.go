package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/chinmay4o/superlinks/internal/config"
	"github.com/chinmay4o/superlinks/internal/models"
)

func testConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.APIBaseURL = baseURL
	return cfg
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(testConfig(srv.URL), StaticToken("tok-1"), nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client, srv
}

// TestNewClientRejectsEmptyBaseURL verifies that NewClient fails with a clear error
// instead of creating a client that fails every request.
func TestNewClientRejectsEmptyBaseURL(t *testing.T) {
	cfg := testConfig("")

	_, err := NewClient(cfg, StaticToken("tok"), nil)
	if err == nil {
		t.Fatal("NewClient() should return error for empty APIBaseURL")
	}
	if !strings.Contains(err.Error(), "API base URL is empty") {
		t.Errorf("NewClient() error = %q, want error containing 'API base URL is empty'", err.Error())
	}
}

func TestNewClientAcceptsValidBaseURL(t *testing.T) {
	client, err := NewClient(testConfig("https://api.superlinks.app/"), nil, nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v, want nil", err)
	}
	if client.BaseURL() != "https://api.superlinks.app" {
		t.Errorf("BaseURL() = %q, trailing slash should be trimmed", client.BaseURL())
	}
}

func TestNoTokenFailsBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	client, err := NewClient(testConfig(srv.URL), StaticToken(""), nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if _, err := client.ListBlocks(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("ListBlocks() error = %v, want ErrUnauthenticated", err)
	}
	_, err = client.Upload(context.Background(), strings.NewReader("x"), "text/plain", models.UploadMetadata{OriginalName: "a.txt"}, nil)
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Upload() error = %v, want ErrUnauthenticated", err)
	}
	if hits.Load() != 0 {
		t.Errorf("server received %d requests, want 0", hits.Load())
	}
}

func TestEnvelopeAndBareResponses(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bare", `[{"id":"blk-1","type":"link","title":"Shop"}]`},
		{"envelope", `{"success":true,"data":[{"id":"blk-1","type":"link","title":"Shop"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
					t.Errorf("Authorization = %q", got)
				}
				if r.URL.Path != "/api/blocks" {
					t.Errorf("path = %q, want /api/blocks", r.URL.Path)
				}
				io.WriteString(w, tt.body)
			})

			blocks, err := client.ListBlocks(context.Background())
			if err != nil {
				t.Fatalf("ListBlocks() error = %v", err)
			}
			if len(blocks) != 1 || blocks[0].ID != "blk-1" || blocks[0].Title != "Shop" {
				t.Errorf("ListBlocks() = %+v", blocks)
			}
		})
	}
}

func TestServerErrorCarriesStatusAndMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"database unavailable"}}`)
	})

	_, err := client.GetProfile(context.Background())
	status, ok := IsServerError(err)
	if !ok || status != http.StatusInternalServerError {
		t.Fatalf("GetProfile() error = %v, want ServerError 500", err)
	}
	if !strings.Contains(err.Error(), "database unavailable") {
		t.Errorf("error = %q, want server message", err.Error())
	}
}

func TestServerErrorTruncatesOnRuneBoundary(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantBody string
	}{
		{"short body kept", "  bad gateway  ", "bad gateway"},
		{"ascii cut at limit", strings.Repeat("a", 250), strings.Repeat("a", 200) + "..."},
		{"two-byte rune straddles limit", strings.Repeat("a", 199) + "été", strings.Repeat("a", 199) + "..."},
		{"three-byte runes", strings.Repeat("€", 80), strings.Repeat("€", 66) + "..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := (&ServerError{Op: "update", StatusCode: 502, Body: tt.body}).Error()
			if !utf8.ValidString(msg) {
				t.Fatalf("Error() = %q, not valid UTF-8", msg)
			}
			if want := "update failed: status 502: " + tt.wantBody; msg != want {
				t.Errorf("Error() = %q, want %q", msg, want)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.GetProduct(context.Background(), "prd-404")
	if !IsNotFound(err) {
		t.Errorf("GetProduct() error = %v, want 404", err)
	}
}

func TestNetworkErrorClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, err := NewClient(testConfig(url), StaticToken("tok"), nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	_, err = client.ListProducts(context.Background())
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Errorf("ListProducts() error = %T %v, want *NetworkError", err, err)
	}
}

func TestUpdateBlockSendsPatch(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/api/blocks/blk-9" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		var patch map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if patch["title"] != "New" {
			t.Errorf("patch = %v", patch)
		}
		io.WriteString(w, `{"data":{"id":"blk-9","title":"New","type":"text"}}`)
	})

	got, err := client.UpdateBlock(context.Background(), "blk-9", map[string]interface{}{"title": "New"})
	if err != nil {
		t.Fatalf("UpdateBlock() error = %v", err)
	}
	if got.Title != "New" {
		t.Errorf("UpdateBlock() = %+v", got)
	}
}

func TestListPurchasesQuery(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("productId") != "prd-1" || r.URL.Query().Get("status") != "paid" {
			t.Errorf("query = %q", r.URL.RawQuery)
		}
		io.WriteString(w, `{"data":[{"id":"pur-1","productId":"prd-1","amount":500,"status":"paid"}]}`)
	})

	purchases, err := client.ListPurchases(context.Background(), PurchaseFilter{ProductID: "prd-1", Status: models.PurchaseStatusPaid})
	if err != nil {
		t.Fatalf("ListPurchases() error = %v", err)
	}
	if len(purchases) != 1 || purchases[0].Amount != 500 {
		t.Errorf("ListPurchases() = %+v", purchases)
	}
}

func TestUploadMultipart(t *testing.T) {
	payload := strings.Repeat("a", 64*1024)

	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/upload" {
			t.Errorf("got %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if got := r.FormValue("originalName"); got != "cover.png" {
			t.Errorf("originalName = %q", got)
		}
		if got := r.FormValue("uploadType"); got != "product" {
			t.Errorf("uploadType = %q", got)
		}
		if got := r.FormValue("productId"); got != "prd-7" {
			t.Errorf("productId = %q", got)
		}
		if _, ok := r.MultipartForm.Value["folder"]; ok {
			t.Error("empty folder should not be sent")
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if len(data) != len(payload) {
			t.Errorf("file length = %d, want %d", len(data), len(payload))
		}
		if ct := hdr.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("part Content-Type = %q", ct)
		}
		io.WriteString(w, `{"data":{"id":"file-1","url":"https://cdn.superlinks.app/file-1","size":65536}}`)
	})

	var last atomic.Int64
	meta := models.UploadMetadata{OriginalName: "cover.png", UploadType: models.UploadTypeProduct, ProductID: "prd-7"}
	fd, err := client.Upload(context.Background(), strings.NewReader(payload), "image/png", meta, func(sent int64) {
		if sent < last.Load() {
			t.Errorf("progress went backwards: %d < %d", sent, last.Load())
		}
		last.Store(sent)
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if fd.ID != "file-1" || fd.OriginalName != "cover.png" {
		t.Errorf("Upload() = %+v", fd)
	}
	if last.Load() != int64(len(payload)) {
		t.Errorf("final progress = %d, want %d", last.Load(), len(payload))
	}
}

func TestUploadServerError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		io.WriteString(w, `{"message":"too large"}`)
	})

	_, err := client.Upload(context.Background(), strings.NewReader("abc"), "text/plain", models.UploadMetadata{OriginalName: "a.txt"}, nil)
	if status, ok := IsServerError(err); !ok || status != http.StatusRequestEntityTooLarge {
		t.Errorf("Upload() error = %v, want ServerError 413", err)
	}
}

func TestUploadCancelled(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Upload(ctx, strings.NewReader("abc"), "text/plain", models.UploadMetadata{OriginalName: "a.txt"}, nil)
	if !IsCancellation(err) {
		t.Errorf("Upload() error = %v, want cancellation", err)
	}
}

func TestRetryOnlyForGet(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIRetryMax = 1
	client, err := NewClient(cfg, StaticToken("tok"), nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if err := client.DeleteBlock(context.Background(), "blk-1"); err == nil {
		t.Fatal("DeleteBlock() should fail")
	}
	if hits.Load() != 1 {
		t.Errorf("DELETE attempts = %d, want 1", hits.Load())
	}
}

func TestRequestsArePaced(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		io.WriteString(w, `{"data":[]}`)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.APIRate = 0.001
	cfg.APIBurst = 1
	client, err := NewClient(cfg, StaticToken("tok"), nil)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if _, err := client.ListBlocks(context.Background()); err != nil {
		t.Fatalf("first ListBlocks() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.ListBlocks(ctx); !IsCancellation(err) {
		t.Errorf("second ListBlocks() error = %v, want cancellation while waiting for capacity", err)
	}
	if hits.Load() != 1 {
		t.Errorf("server received %d requests, want 1", hits.Load())
	}
}
