package tsclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/digitorus/tsclient/log"
	"golang.org/x/net/http/httpproxy"
)

const (
	// ContentTypeQuery is the media type of a DER encoded Time-Stamp request.
	ContentTypeQuery = "application/timestamp-query"

	// ContentTypeReply is the media type of a DER encoded Time-Stamp response.
	ContentTypeReply = "application/timestamp-reply"

	// DefaultMaxResponseSize bounds the size of a TSA reply. A regular response
	// with certificates is usually less than 10 KiB.
	DefaultMaxResponseSize = 1 * 1024 * 1024 // 1 MiB
)

// Transport performs a single request/response exchange with a TSA.
type Transport interface {
	Send(ctx context.Context, url, method, contentType string, body []byte) ([]byte, error)
}

// HTTPOptions configures an HTTPTransport. The zero value sends requests
// through http.DefaultTransport, which honours the HTTP_PROXY, HTTPS_PROXY and
// NO_PROXY environment variables.
type HTTPOptions struct {
	// RoundTripper is used when no proxy is configured. Defaults to
	// http.DefaultTransport.
	RoundTripper http.RoundTripper

	// Proxy is the URL of an HTTP proxy, used instead of the environment.
	// ProxyUsername and ProxyPassword, if set, are sent to that proxy only.
	Proxy         string
	ProxyUsername string
	ProxyPassword string

	// NoProxy lists hosts that bypass the proxy, in the NO_PROXY format.
	NoProxy string

	// Timeout bounds a whole exchange. Zero means the caller's context alone
	// decides.
	Timeout time.Duration

	// MaxResponseSize defaults to DefaultMaxResponseSize.
	MaxResponseSize int64

	UserAgent string
}

// HTTPTransport sends Time-Stamp requests over HTTP as described in RFC 3161
// section 3.4. It is safe for concurrent use.
type HTTPTransport struct {
	rt        http.RoundTripper
	timeout   time.Duration
	maxSize   int64
	userAgent string
}

// NewHTTPTransport returns an HTTPTransport for opts. If opts is nil then
// sensible defaults are used.
func NewHTTPTransport(opts *HTTPOptions) (*HTTPTransport, error) {
	if opts == nil {
		opts = &HTTPOptions{}
	}
	t := &HTTPTransport{
		rt:        opts.RoundTripper,
		timeout:   opts.Timeout,
		maxSize:   opts.MaxResponseSize,
		userAgent: opts.UserAgent,
	}
	if t.rt == nil {
		t.rt = http.DefaultTransport
	}
	if t.maxSize <= 0 {
		t.maxSize = DefaultMaxResponseSize
	}
	if t.timeout < 0 {
		return nil, fmt.Errorf("negative timeout %s", t.timeout)
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		if proxyURL.Scheme == "" || proxyURL.Host == "" {
			return nil, fmt.Errorf("invalid proxy URL %q: scheme and host are required", opts.Proxy)
		}
		if opts.ProxyUsername != "" {
			proxyURL.User = url.UserPassword(opts.ProxyUsername, opts.ProxyPassword)
		}
		proxyFunc := (&httpproxy.Config{
			HTTPProxy:  proxyURL.String(),
			HTTPSProxy: proxyURL.String(),
			NoProxy:    opts.NoProxy,
		}).ProxyFunc()

		base, ok := t.rt.(*http.Transport)
		if !ok {
			return nil, fmt.Errorf("a proxy requires an *http.Transport, got %T", t.rt)
		}
		rt := base.Clone()
		rt.Proxy = func(req *http.Request) (*url.URL, error) {
			return proxyFunc(req.URL)
		}
		t.rt = rt
	}
	return t, nil
}

// Send posts body to url and returns the reply body. Any HTTP status other
// than 200 is reported as a TransportError.
func (t *HTTPTransport) Send(ctx context.Context, url, method, contentType string, body []byte) ([]byte, error) {
	logger := log.GetLogger(ctx)
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	if method == "" {
		method = http.MethodPost
	}

	hReq, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	hReq.Header.Set("Content-Type", contentType)
	hReq.Header.Set("Content-Length", strconv.Itoa(len(body)))
	hReq.Header.Set("Accept", ContentTypeReply)
	if t.userAgent != "" {
		hReq.Header.Set("User-Agent", t.userAgent)
	}

	logger.Debugf("sending %d byte %s request to %s", len(body), method, url)
	hResp, err := t.rt.RoundTrip(hReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer hResp.Body.Close()

	if hResp.StatusCode != http.StatusOK {
		return nil, &TransportError{StatusCode: hResp.StatusCode, Status: hResp.Status}
	}
	if ct := hResp.Header.Get("Content-Type"); ct != ContentTypeReply {
		logger.Warnf("unexpected response content type %q from %s", ct, url)
	}

	respBytes, err := io.ReadAll(io.LimitReader(hResp.Body, t.maxSize+1))
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if int64(len(respBytes)) > t.maxSize {
		return nil, &TransportError{Err: fmt.Errorf("response exceeds %d bytes", t.maxSize)}
	}
	logger.Debugf("received %d byte response from %s", len(respBytes), url)
	return respBytes, nil
}
