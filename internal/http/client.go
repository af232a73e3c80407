package http

import (
	"crypto/tls"
	"fmt"
	nethttp "net/http"
	"os"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http2"

	"github.com/rescale/poloniex-int/internal/config"
	"github.com/rescale/poloniex-int/internal/logging"
)

// NewClient creates the HTTP session owned by one exchange client.
//
// Key features:
//   - Proxy support (uses ConfigureHTTPClient as base)
//   - Small connection pool, since every call is throttled anyway
//   - HTTP/2 unless disabled by config, DISABLE_HTTP2=true, or an active proxy
//   - Redirects are returned to the caller instead of followed
//
// Each exchange client must own its session; sessions are not shared.
func NewClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	client, err := ConfigureHTTPClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	// NTLM wraps the transport; tune the inner one
	var tr *nethttp.Transport
	switch rt := client.Transport.(type) {
	case *nethttp.Transport:
		tr = rt
	case ntlmssp.Negotiator:
		tr, _ = rt.RoundTripper.(*nethttp.Transport)
	}
	if tr == nil {
		return client, nil
	}

	// Proxies often have issues with HTTP/2 multiplexing.
	// Allow power users to force HTTP/2 through a proxy with FORCE_HTTP2=true
	disable := cfg.HTTP.DisableHTTP2 || os.Getenv("DISABLE_HTTP2") == "true"
	if proxyActive(cfg.Proxy) && os.Getenv("FORCE_HTTP2") != "true" {
		disable = true
	}
	if disable {
		// ALPN must not offer h2, or the server selects it and rejects HTTP/1.1 bytes
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
		if tr.TLSClientConfig == nil {
			tr.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		tr.TLSClientConfig.NextProtos = []string{"http/1.1"}
		return client, nil
	}

	tr.ForceAttemptHTTP2 = true
	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, fmt.Errorf("failed to enable HTTP/2: %w", err)
	}

	return client, nil
}

// proxyActive reports whether requests will go through a proxy.
// Trust config proxy mode first; only check env vars for "system" mode.
func proxyActive(proxy config.ProxyConfig) bool {
	switch strings.ToLower(proxy.Mode) {
	case "no-proxy", "":
		return false
	case "system":
		return os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
			os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
	default:
		return proxy.Host != ""
	}
}
