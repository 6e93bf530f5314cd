package http

import (
	"net/http"
	"net/url"
	"testing"

	ntlmssp "github.com/Azure/go-ntlmssp"

	"github.com/chinmay4o/superlinks/internal/config"
	"github.com/chinmay4o/superlinks/internal/constants"
)

func TestProxyFuncWithBypass(t *testing.T) {
	proxyURL, _ := url.Parse("http://proxy.corp:8080")

	tests := []struct {
		name       string
		noProxy    string
		url        string
		wantBypass bool
	}{
		{"empty list proxies everything", "", "https://api.superlinks.app/api/blocks", false},
		{"wildcard subdomain", "*.superlinks.app", "https://api.superlinks.app/api/blocks", true},
		{"bare domain matches root", "superlinks.app", "https://superlinks.app/", true},
		{"bare domain matches subdomain", "superlinks.app", "https://cdn.superlinks.app/a.png", true},
		{"cidr range", "10.0.0.0/8", "http://10.1.2.3:9000/uploads", true},
		{"non-matching host", "*.internal.corp,10.0.0.0/8", "https://api.superlinks.app/api/", false},
		{"list with spaces, s3 host", "*.amazonaws.com, 192.168.0.0/16", "https://creator-files.s3.amazonaws.com/k", true},
		{"list with spaces, lan ip", "*.amazonaws.com, 192.168.0.0/16", "http://192.168.1.100/api", true},
		{"list with spaces, miss", "*.amazonaws.com, 192.168.0.0/16", "https://acct.blob.core.windows.net/c", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", tt.url, nil)
			result, err := proxyFuncWithBypass(proxyURL, tt.noProxy)(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantBypass && result != nil {
				t.Errorf("expected direct connection for %s, got %v", tt.url, result)
			}
			if !tt.wantBypass {
				if result == nil {
					t.Fatalf("expected proxy for %s, got direct", tt.url)
				}
				if result.Host != "proxy.corp:8080" {
					t.Errorf("proxy host = %s, want proxy.corp:8080", result.Host)
				}
			}
		})
	}
}

func TestBuildProxyURL(t *testing.T) {
	cfg := config.Default()
	cfg.ProxyHost = "proxy.corp"

	u := buildProxyURL(cfg)
	if u.Host != "proxy.corp:8080" {
		t.Errorf("expected default port 8080, got %s", u.Host)
	}
	if u.User != nil {
		t.Error("expected no credentials without user/password")
	}

	cfg.ProxyPort = 3128
	cfg.ProxyUser = "alice"
	cfg.ProxyPassword = "secret"
	u = buildProxyURL(cfg)
	if u.Host != "proxy.corp:3128" {
		t.Errorf("expected proxy.corp:3128, got %s", u.Host)
	}
	if pw, ok := u.User.Password(); !ok || pw != "secret" || u.User.Username() != "alice" {
		t.Errorf("expected embedded credentials, got %v", u.User)
	}

	cfg.ProxyPassword = ""
	if buildProxyURL(cfg).User != nil {
		t.Error("expected credentials to be omitted when the password is missing")
	}
}

func TestConfigureHTTPClientModes(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		host      string
		wantErr   bool
		wantNTLM  bool
		wantProxy bool
	}{
		{"no proxy", "no-proxy", "", false, false, false},
		{"empty mode", "", "", false, false, false},
		{"basic", "basic", "proxy.corp", false, false, true},
		{"basic without host", "basic", "", false, false, false},
		{"ntlm", "ntlm", "proxy.corp", false, true, false},
		{"unknown", "socks", "", true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.ProxyMode = tt.mode
			cfg.ProxyHost = tt.host

			client, err := ConfigureHTTPClient(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if _, ok := client.Transport.(ntlmssp.Negotiator); ok != tt.wantNTLM {
				t.Errorf("NTLM negotiator = %v, want %v", ok, tt.wantNTLM)
			}
			if tr, ok := client.Transport.(*http.Transport); ok {
				if (tr.Proxy != nil) != tt.wantProxy {
					t.Errorf("proxy configured = %v, want %v", tr.Proxy != nil, tt.wantProxy)
				}
			}
		})
	}
}

func TestNeedsProxyPassword(t *testing.T) {
	cfg := config.Default()
	cfg.ProxyMode = "basic"
	cfg.ProxyUser = "alice"
	if !NeedsProxyPassword(cfg) {
		t.Error("expected password prompt for basic mode with user and no password")
	}
	cfg.ProxyPassword = "x"
	if NeedsProxyPassword(cfg) {
		t.Error("expected no prompt once the password is set")
	}
	cfg.ProxyMode = "system"
	cfg.ProxyPassword = ""
	if NeedsProxyPassword(cfg) {
		t.Error("expected no prompt for system mode")
	}
}

func TestClientTimeouts(t *testing.T) {
	cfg := config.Default()

	api, err := NewAPIClient(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if api.Timeout != constants.HTTPAPITimeout {
		t.Errorf("expected API timeout %v, got %v", constants.HTTPAPITimeout, api.Timeout)
	}

	upload, err := CreateOptimizedClient(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if upload.Timeout != 0 {
		t.Errorf("expected no overall timeout for uploads, got %v", upload.Timeout)
	}
	tr := upload.Transport.(*http.Transport)
	if !tr.DisableCompression || tr.MaxIdleConns != 512 {
		t.Error("expected upload transport tuning to be applied")
	}
}
