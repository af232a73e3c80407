package http

import (
	"crypto/x509"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"testing"

	ntlmssp "github.com/Azure/go-ntlmssp"

	"github.com/rescale/poloniex-int/internal/config"
	"github.com/rescale/poloniex-int/internal/logging"
)

func mustProxyURL(t *testing.T) *url.URL {
	t.Helper()
	proxyURL, err := url.Parse("http://proxy.corp:8080")
	if err != nil {
		t.Fatal(err)
	}
	return proxyURL
}

// TestProxyFuncWithBypass_EmptyNoProxy verifies that an empty noProxy always routes through proxy.
func TestProxyFuncWithBypass_EmptyNoProxy(t *testing.T) {
	proxyFunc := proxyFuncWithBypass(mustProxyURL(t), "", logging.Nop())

	req, _ := http.NewRequest("GET", "https://poloniex.com/public?command=returnTicker", nil)
	result, err := proxyFunc(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil {
		t.Fatal("expected proxy URL, got nil (direct)")
	}
	if result.Host != "proxy.corp:8080" {
		t.Errorf("expected proxy host proxy.corp:8080, got %s", result.Host)
	}
}

// TestProxyFuncWithBypass_MultiplePatterns verifies comma-separated patterns work.
func TestProxyFuncWithBypass_MultiplePatterns(t *testing.T) {
	proxyFunc := proxyFuncWithBypass(mustProxyURL(t), "*.example.com, 192.168.0.0/16, internal.corp", logging.Nop())

	tests := []struct {
		name       string
		url        string
		wantBypass bool
	}{
		{"wildcard match", "https://api.example.com/data", true},
		{"cidr match", "http://192.168.1.100/api", true},
		{"exact domain match", "https://internal.corp/status", true},
		{"subdomain of exact domain", "https://api.internal.corp/status", true},
		{"non-match", "https://poloniex.com/tradingApi", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", tt.url, nil)
			result, err := proxyFunc(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantBypass && result != nil {
				t.Errorf("expected bypass (nil) for %s, got %v", tt.url, result)
			}
			if !tt.wantBypass && result == nil {
				t.Errorf("expected proxy for %s, got nil (bypass)", tt.url)
			}
		})
	}
}

// TestBuildProxyURL verifies default port and credential embedding.
func TestBuildProxyURL(t *testing.T) {
	u := buildProxyURL(config.ProxyConfig{Host: "proxy.corp"})
	if u.Host != "proxy.corp:8080" {
		t.Errorf("expected default port 8080, got %s", u.Host)
	}
	if u.User != nil {
		t.Error("expected no credentials without password")
	}

	u = buildProxyURL(config.ProxyConfig{Host: "proxy.corp", Port: 3128, User: "alice", Password: "pw"})
	if u.Host != "proxy.corp:3128" {
		t.Errorf("expected port 3128, got %s", u.Host)
	}
	if pw, ok := u.User.Password(); !ok || pw != "pw" || u.User.Username() != "alice" {
		t.Errorf("expected embedded credentials, got %v", u.User)
	}
}

// TestConfigureHTTPClient_Modes verifies the transport chosen for each proxy mode.
func TestConfigureHTTPClient_Modes(t *testing.T) {
	cfg := config.Default()

	client, err := ConfigureHTTPClient(cfg, nil)
	if err != nil {
		t.Fatalf("no-proxy: %v", err)
	}
	if tr, ok := client.Transport.(*http.Transport); !ok || tr.Proxy != nil {
		t.Error("no-proxy mode must use a plain transport without proxy")
	}
	if client.CheckRedirect == nil {
		t.Error("redirects must not be followed")
	}

	cfg.Proxy = config.ProxyConfig{Mode: "ntlm", Host: "proxy.corp"}
	client, err = ConfigureHTTPClient(cfg, nil)
	if err != nil {
		t.Fatalf("ntlm: %v", err)
	}
	if _, ok := client.Transport.(ntlmssp.Negotiator); !ok {
		t.Errorf("ntlm mode must wrap the transport, got %T", client.Transport)
	}

	cfg.Proxy = config.ProxyConfig{Mode: "basic"}
	client, err = ConfigureHTTPClient(cfg, nil)
	if err != nil {
		t.Fatalf("basic without host: %v", err)
	}
	if tr, ok := client.Transport.(*http.Transport); !ok || tr.Proxy != nil {
		t.Error("basic mode without host must fall back to no-proxy")
	}

	cfg.Proxy = config.ProxyConfig{Mode: "socks"}
	if _, err := ConfigureHTTPClient(cfg, nil); err == nil {
		t.Error("expected error for unsupported proxy mode")
	}
}

// TestNeedsProxyPassword verifies the prompt condition.
func TestNeedsProxyPassword(t *testing.T) {
	if !NeedsProxyPassword(config.ProxyConfig{Mode: "ntlm", User: "alice"}) {
		t.Error("ntlm with user and no password needs a password")
	}
	if NeedsProxyPassword(config.ProxyConfig{Mode: "system", User: "alice"}) {
		t.Error("system mode never prompts")
	}
	if NeedsProxyPassword(config.ProxyConfig{Mode: "basic", User: "alice", Password: "pw"}) {
		t.Error("complete credentials need no prompt")
	}
}

// TestNewClientHTTP2Toggle verifies HTTP/2 is disabled by config.
func TestNewClientHTTP2Toggle(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.DisableHTTP2 = true

	client, err := NewClient(cfg, logging.Nop())
	if err != nil {
		t.Fatal(err)
	}
	tr := client.Transport.(*http.Transport)
	if tr.ForceAttemptHTTP2 {
		t.Error("expected HTTP/2 disabled")
	}
	if tr.TLSNextProto == nil || len(tr.TLSNextProto) != 0 {
		t.Error("expected empty TLSNextProto map")
	}
	if slices.Contains(tr.TLSClientConfig.NextProtos, "h2") {
		t.Errorf("expected ALPN without h2, got %v", tr.TLSClientConfig.NextProtos)
	}
	if client.Timeout != cfg.HTTP.Timeout {
		t.Errorf("expected timeout %v, got %v", cfg.HTTP.Timeout, client.Timeout)
	}
}

// TestNewClientNegotiatesProtocol verifies requests succeed against a TLS
// server that offers HTTP/2, with HTTP/2 both enabled and disabled.
func TestNewClientNegotiatesProtocol(t *testing.T) {
	t.Setenv("DISABLE_HTTP2", "")
	t.Setenv("FORCE_HTTP2", "")

	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, r.Proto)
	}))
	server.EnableHTTP2 = true
	server.StartTLS()
	defer server.Close()

	roots := x509.NewCertPool()
	roots.AddCert(server.Certificate())

	tests := []struct {
		name      string
		disable   bool
		wantProto string
	}{
		{"enabled", false, "HTTP/2.0"},
		{"disabled", true, "HTTP/1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.HTTP.DisableHTTP2 = tt.disable

			client, err := NewClient(cfg, logging.Nop())
			if err != nil {
				t.Fatal(err)
			}
			defer client.CloseIdleConnections()
			client.Transport.(*http.Transport).TLSClientConfig.RootCAs = roots

			resp, err := client.Get(server.URL)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Errorf("expected 200, got %d", resp.StatusCode)
			}
			if resp.Proto != tt.wantProto || string(body) != tt.wantProto {
				t.Errorf("expected %s, got response %s with body %q", tt.wantProto, resp.Proto, body)
			}
		})
	}
}
