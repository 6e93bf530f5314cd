package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// storefront is a minimal in-memory API server.
type storefront struct {
	mu       sync.Mutex
	requests []string
	failOn   string
}

func (s *storefront) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	fail := s.failOn == r.Method+" "+r.URL.Path
	s.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer tok-cli" {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"bad token"}`)
		return
	}
	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"message":"database unavailable"}}`)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch r.Method + " " + r.URL.Path {
	case "GET /api/blocks":
		io.WriteString(w, `{"data":[
			{"id":"blk-1","type":"link","title":"Shop","url":"https://example.com","position":0,"visible":true},
			{"id":"blk-2","type":"text","title":"Hello","position":1,"visible":false}]}`)
	case "PATCH /api/blocks/blk-1":
		var patch map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&patch)
		io.WriteString(w, `{"data":{"id":"blk-1","type":"link","title":"`+patch["title"].(string)+`","position":0,"visible":true}}`)
	case "GET /api/profile":
		io.WriteString(w, `{"id":"usr-1","username":"mia","displayName":"Mia","bio":"Prints"}`)
	case "GET /api/products":
		io.WriteString(w, `{"data":[{"id":"prd-1","title":"Presets","price":1250,"currency":"usd","published":true}]}`)
	case "GET /api/purchases":
		io.WriteString(w, `{"data":[{"id":"pur-1","productId":"prd-1","buyerEmail":"a@example.com","amount":1250,"currency":"usd","status":"paid"}]}`)
	default:
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":"not found"}`)
	}
}

func (s *storefront) count(req string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r == req {
			n++
		}
	}
	return n
}

// runCLI executes args against srv with a clean environment.
func runCLI(t *testing.T, srv *httptest.Server, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SUPERLINKS_API_URL", srv.URL)
	t.Setenv("SUPERLINKS_TOKEN", "tok-cli")
	t.Setenv("SUPERLINKS_LOG_LEVEL", "error")

	root := NewRootCmd()
	AddCommands(root)
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err = root.Execute()
	return out.String(), errOut.String(), err
}

func TestBlocksListCommand(t *testing.T) {
	api := &storefront{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	out, _, err := runCLI(t, srv, "blocks", "list")
	if err != nil {
		t.Fatalf("blocks list error = %v", err)
	}
	for _, want := range []string{"Found 2 blocks", "1. [link] Shop", "2. [text] Hello (hidden)", "URL: https://example.com"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestBlocksUpdateCommand(t *testing.T) {
	api := &storefront{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	out, _, err := runCLI(t, srv, "blocks", "update", "blk-1", "--title", "Shop (sale)")
	if err != nil {
		t.Fatalf("blocks update error = %v", err)
	}
	if !strings.Contains(out, "Updated block: blk-1") {
		t.Errorf("output = %q", out)
	}
	if api.count("PATCH /api/blocks/blk-1") != 1 {
		t.Errorf("requests = %v", api.requests)
	}
}

func TestBlocksUpdateCommandFailure(t *testing.T) {
	api := &storefront{failOn: "PATCH /api/blocks/blk-1"}
	srv := httptest.NewServer(api)
	defer srv.Close()

	_, _, err := runCLI(t, srv, "blocks", "update", "blk-1", "--title", "Shop (sale)")
	if err == nil || !strings.Contains(err.Error(), "database unavailable") {
		t.Fatalf("blocks update error = %v, want the server message", err)
	}
	if api.count("PATCH /api/blocks/blk-1") != 1 {
		t.Errorf("a failed write should not be retried: %v", api.requests)
	}
}

func TestBlocksUpdateRequiresAChange(t *testing.T) {
	api := &storefront{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	if _, _, err := runCLI(t, srv, "blocks", "update", "blk-1"); err == nil {
		t.Fatal("expected an error without flags")
	}
	if len(api.requests) != 0 {
		t.Errorf("requests = %v, want none", api.requests)
	}
}

func TestCacheWarmServesSecondRoundFromCache(t *testing.T) {
	api := &storefront{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	out, _, err := runCLI(t, srv, "cache", "warm")
	if err != nil {
		t.Fatalf("cache warm error = %v", err)
	}
	for _, req := range []string{"GET /api/blocks", "GET /api/profile", "GET /api/products", "GET /api/purchases"} {
		if n := api.count(req); n != 1 {
			t.Errorf("%s sent %d times, want 1", req, n)
		}
	}
	if !strings.Contains(out, "Round 2") || !strings.Contains(out, "4 hits") {
		t.Errorf("output = %q", out)
	}
}

func TestPurchasesRefundRequiresConfirm(t *testing.T) {
	api := &storefront{}
	srv := httptest.NewServer(api)
	defer srv.Close()

	_, _, err := runCLI(t, srv, "purchases", "refund", "pur-1")
	if err == nil || !strings.Contains(err.Error(), "--confirm") {
		t.Fatalf("refund error = %v", err)
	}
	if len(api.requests) != 0 {
		t.Errorf("requests = %v, want none", api.requests)
	}
}

func TestConfigShowMasksToken(t *testing.T) {
	srv := httptest.NewServer(&storefront{})
	defer srv.Close()

	out, _, err := runCLI(t, srv, "config", "show")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	if strings.Contains(out, "tok-cli") {
		t.Error("token printed unmasked")
	}
	if !strings.Contains(out, "********-cli") || !strings.Contains(out, srv.URL) {
		t.Errorf("output = %q", out)
	}
}
