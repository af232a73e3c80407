package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	nethttp "net/http"
	"net/url"
	"strings"

	ntlmssp "github.com/Azure/go-ntlmssp"
	"golang.org/x/net/http/httpproxy"

	"github.com/rescale/poloniex-int/internal/config"
	"github.com/rescale/poloniex-int/internal/constants"
	"github.com/rescale/poloniex-int/internal/logging"
)

// newTransport returns the base transport shared by all proxy modes.
func newTransport() *nethttp.Transport {
	return &nethttp.Transport{
		DialContext: (&net.Dialer{
			Timeout:   constants.HTTPDialTimeout,
			KeepAlive: constants.HTTPDialKeepAlive,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:          constants.HTTPMaxConnsPerHost,
		MaxIdleConnsPerHost:   constants.HTTPMaxConnsPerHost,
		MaxConnsPerHost:       constants.HTTPMaxConnsPerHost,
		IdleConnTimeout:       constants.HTTPIdleConnTimeout,
		TLSHandshakeTimeout:   constants.HTTPTLSHandshakeTimeout,
		ExpectContinueTimeout: constants.HTTPExpectContinueTimeout,
	}
}

// ConfigureHTTPClient configures an HTTP client with proxy settings.
// Redirects are never followed so that 3xx responses reach the classifier.
func ConfigureHTTPClient(cfg *config.Config, logger *logging.Logger) (*nethttp.Client, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	transport := newTransport()
	proxy := cfg.Proxy

	client := &nethttp.Client{
		Transport:     transport,
		Timeout:       cfg.HTTP.Timeout,
		CheckRedirect: noRedirects,
	}

	// Configure proxy based on mode
	switch strings.ToLower(proxy.Mode) {
	case "no-proxy", "":
		transport.Proxy = nil
		return client, nil

	case "system":
		// Use system proxy settings from environment
		transport.Proxy = nethttp.ProxyFromEnvironment

	case "ntlm":
		// Fall back to no-proxy if host is missing (incomplete saved config)
		if proxy.Host == "" {
			logger.Warn().Msg("Proxy mode is NTLM but host is missing - falling back to no-proxy mode")
			return client, nil
		}

		transport.Proxy = proxyFuncWithBypass(buildProxyURL(proxy), proxy.NoProxy, logger)
		client.Transport = ntlmssp.Negotiator{
			RoundTripper: transport,
		}

	case "basic":
		if proxy.Host == "" {
			logger.Warn().Msg("Proxy mode is basic but host is missing - falling back to no-proxy mode")
			return client, nil
		}

		transport.Proxy = proxyFuncWithBypass(buildProxyURL(proxy), proxy.NoProxy, logger)
		if proxy.User != "" && proxy.Password == "" {
			logger.Warn().Msg("Proxy user configured but password missing - proxy auth disabled until password is set")
		}

	default:
		return nil, fmt.Errorf("unsupported proxy mode: %s", proxy.Mode)
	}

	// Only warm up when credentials are complete (or not needed)
	if proxy.Warmup && !NeedsProxyPassword(proxy) {
		if err := warmupProxy(client, cfg.Endpoints.PublicURL); err != nil {
			return nil, fmt.Errorf("proxy warmup failed: %w", err)
		}
	}

	return client, nil
}

func noRedirects(*nethttp.Request, []*nethttp.Request) error {
	return nethttp.ErrUseLastResponse
}

// buildProxyURL constructs a proxy URL from config
func buildProxyURL(proxy config.ProxyConfig) *url.URL {
	port := proxy.Port
	if port == 0 {
		port = constants.DefaultProxyPort
	}

	proxyURL := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(proxy.Host, fmt.Sprint(port)),
	}

	// Only embed credentials if both user AND password are provided
	// Empty password in URL can cause auth failures with some proxies
	if proxy.User != "" && proxy.Password != "" {
		proxyURL.User = url.UserPassword(proxy.User, proxy.Password)
	}

	return proxyURL
}

// warmupProxy performs a warmup request to establish the proxy connection
func warmupProxy(client *nethttp.Client, warmupURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), constants.ProxyWarmupTimeout)
	defer cancel()

	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, warmupURL, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("warmup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("warmup request returned server error: %d", resp.StatusCode)
	}

	return nil
}

// proxyFuncWithBypass returns a proxy function that respects the NoProxy bypass list.
// If noProxy is empty, behaves identically to nethttp.ProxyURL.
// When noProxy is set, uses golang.org/x/net/http/httpproxy to match hosts/CIDRs.
func proxyFuncWithBypass(proxyURL *url.URL, noProxy string, logger *logging.Logger) func(*nethttp.Request) (*url.URL, error) {
	if noProxy == "" {
		return nethttp.ProxyURL(proxyURL)
	}
	cfg := httpproxy.Config{
		HTTPProxy:  proxyURL.String(),
		HTTPSProxy: proxyURL.String(),
		NoProxy:    noProxy,
	}
	proxyFunc := cfg.ProxyFunc()
	return func(req *nethttp.Request) (*url.URL, error) {
		result, err := proxyFunc(req.URL)
		if result == nil {
			logger.Debug().Str("host", req.URL.Host).Msg("Proxy bypass (direct connection)")
		} else {
			logger.Debug().Str("host", req.URL.Host).Str("proxy", result.Host).Msg("Proxied")
		}
		return result, err
	}
}

// NeedsProxyPassword returns true if the proxy configuration requires a password
// but one has not been provided. Used by CLI to determine if interactive prompt is needed.
func NeedsProxyPassword(proxy config.ProxyConfig) bool {
	mode := strings.ToLower(proxy.Mode)
	// Only basic and ntlm modes require credentials
	if mode != "basic" && mode != "ntlm" {
		return false
	}
	return proxy.User != "" && proxy.Password == ""
}
