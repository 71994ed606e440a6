package utils

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// HTTPClientOptions configures the outbound HTTP client used for
// download proxying.
type HTTPClientOptions struct {
	Timeout     time.Duration
	UserAgent   string
	ProxyURL    string
	TLSInsecure bool
}

// userAgentTransport stamps every outgoing request with a fixed
// User-Agent. Facebook's CDN rejects requests without a browser UA.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// NewHTTPClient builds an HTTP client honoring the proxy and TLS
// options. A socks5:// proxy URL routes through a SOCKS5 dialer; http
// and https proxies go through the standard transport proxy hook.
func NewHTTPClient(opts HTTPClientOptions) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if opts.TLSInsecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if opts.ProxyURL != "" {
		proxyURL, err := url.Parse(opts.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}

		switch proxyURL.Scheme {
		case "socks5":
			var auth *proxy.Auth
			if proxyURL.User != nil {
				password, _ := proxyURL.User.Password()
				auth = &proxy.Auth{User: proxyURL.User.Username(), Password: password}
			}
			dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{Timeout: 30 * time.Second})
			if err != nil {
				return nil, fmt.Errorf("error creating SOCKS5 dialer: %w", err)
			}
			transport.Dial = dialer.Dial
		case "http", "https":
			transport.Proxy = http.ProxyURL(proxyURL)
		default:
			return nil, fmt.Errorf("unsupported proxy scheme: %s", proxyURL.Scheme)
		}
	}

	var rt http.RoundTripper = transport
	if opts.UserAgent != "" {
		rt = &userAgentTransport{base: transport, userAgent: opts.UserAgent}
	}

	return &http.Client{
		Timeout:   opts.Timeout,
		Transport: rt,
	}, nil
}
