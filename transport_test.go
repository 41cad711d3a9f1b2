package tsclient_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/digitorus/tsclient"
	"github.com/digitorus/tsclient/log"
	"github.com/sirupsen/logrus"
)

func newTransport(t *testing.T, opts *tsclient.HTTPOptions) *tsclient.HTTPTransport {
	t.Helper()
	tr, err := tsclient.NewHTTPTransport(opts)
	if err != nil {
		t.Fatalf("NewHTTPTransport() error = %v", err)
	}
	return tr
}

func TestHTTPTransportSend(t *testing.T) {
	body := []byte{0x30, 0x03, 0x02, 0x01, 0x01}
	reply := []byte{0x30, 0x05, 0x30, 0x03, 0x02, 0x01, 0x00}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		wantHeaders := map[string]string{
			"Content-Type":   tsclient.ContentTypeQuery,
			"Content-Length": strconv.Itoa(len(body)),
			"Accept":         tsclient.ContentTypeReply,
			"User-Agent":     "tsclient-test/1.0",
		}
		for k, want := range wantHeaders {
			if got := r.Header.Get(k); got != want {
				t.Errorf("header %s = %q, want %q", k, got, want)
			}
		}
		if got, err := io.ReadAll(r.Body); err != nil {
			t.Errorf("read body: %v", err)
		} else if !bytes.Equal(got, body) {
			t.Errorf("body = %x, want %x", got, body)
		}

		w.Header().Set("Content-Type", tsclient.ContentTypeReply)
		_, _ = w.Write(reply)
	}))
	defer ts.Close()

	tr := newTransport(t, &tsclient.HTTPOptions{UserAgent: "tsclient-test/1.0"})
	got, err := tr.Send(context.Background(), ts.URL, http.MethodPost, tsclient.ContentTypeQuery, body)
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !bytes.Equal(got, reply) {
		t.Errorf("Send() = %x, want %x", got, reply)
	}
}

func TestHTTPTransportStatus(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusAccepted} {
		t.Run(strconv.Itoa(code), func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", tsclient.ContentTypeReply)
				w.WriteHeader(code)
			}))
			defer ts.Close()

			_, err := newTransport(t, nil).Send(context.Background(), ts.URL, "", tsclient.ContentTypeQuery, []byte{0x01})
			var transportErr *tsclient.TransportError
			if !errors.As(err, &transportErr) {
				t.Fatalf("Send() error = %v, want *TransportError", err)
			}
			if transportErr.StatusCode != code {
				t.Errorf("StatusCode = %d, want %d", transportErr.StatusCode, code)
			}
			if !strings.HasPrefix(err.Error(), "received HTTP error: "+strconv.Itoa(code)) {
				t.Errorf("Error() = %q", err.Error())
			}
		})
	}
}

func TestHTTPTransportContentTypeWarning(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte{0x05, 0x00})
	}))
	defer ts.Close()

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	ctx := log.WithLogger(context.Background(), logger)

	got, err := newTransport(t, nil).Send(ctx, ts.URL, http.MethodPost, tsclient.ContentTypeQuery, []byte{0x01})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !bytes.Equal(got, []byte{0x05, 0x00}) {
		t.Errorf("Send() = %x", got)
	}
	if !strings.Contains(buf.String(), "level=warning") || !strings.Contains(buf.String(), "application/octet-stream") {
		t.Errorf("expected a content type warning, got %q", buf.String())
	}
}

func TestHTTPTransportMaxResponseSize(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", tsclient.ContentTypeReply)
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer ts.Close()

	_, err := newTransport(t, &tsclient.HTTPOptions{MaxResponseSize: 1024}).Send(context.Background(), ts.URL, http.MethodPost, tsclient.ContentTypeQuery, []byte{0x01})
	var transportErr *tsclient.TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("Send() error = %v, want *TransportError", err)
	}

	got, err := newTransport(t, &tsclient.HTTPOptions{MaxResponseSize: 2048}).Send(context.Background(), ts.URL, http.MethodPost, tsclient.ContentTypeQuery, []byte{0x01})
	if err != nil || len(got) != 2048 {
		t.Errorf("Send() = %d bytes, %v", len(got), err)
	}
}

func TestHTTPTransportTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer ts.Close()

	tr := newTransport(t, &tsclient.HTTPOptions{Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := tr.Send(context.Background(), ts.URL, http.MethodPost, tsclient.ContentTypeQuery, []byte{0x01})
	var transportErr *tsclient.TransportError
	if !errors.As(err, &transportErr) || transportErr.StatusCode != 0 {
		t.Fatalf("Send() error = %v, want *TransportError without status", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("Send() returned after %v", elapsed)
	}
}

func TestHTTPTransportCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTransport(t, nil).Send(ctx, "http://tsa.example.com", http.MethodPost, tsclient.ContentTypeQuery, []byte{0x01})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Send() error = %v, want %v", err, context.Canceled)
	}
}

func TestHTTPTransportProxy(t *testing.T) {
	// the configured proxy is used instead of the environment
	t.Setenv("HTTP_PROXY", "http://127.0.0.1:1")
	t.Setenv("http_proxy", "http://127.0.0.1:1")

	tsa := newTSA(t)
	var proxyAuth, proxiedURL string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxyAuth = r.Header.Get("Proxy-Authorization")
		proxiedURL = r.URL.String()
		tsa.ServeHTTP(w, r)
	}))
	defer proxy.Close()

	tr := newTransport(t, &tsclient.HTTPOptions{
		Proxy:         proxy.URL,
		ProxyUsername: "user",
		ProxyPassword: "secret",
	})
	c := newClient(t, tsclient.Config{URL: "http://tsa.example.com/tsr", Transport: tr})
	if _, err := c.Timestamp(context.Background(), []byte("hello world")); err != nil {
		t.Fatalf("Timestamp() error = %v", err)
	}

	if want := "Basic " + base64.StdEncoding.EncodeToString([]byte("user:secret")); proxyAuth != want {
		t.Errorf("Proxy-Authorization = %q, want %q", proxyAuth, want)
	}
	if proxiedURL != "http://tsa.example.com/tsr" {
		t.Errorf("proxied URL = %q", proxiedURL)
	}
}

func TestNewHTTPTransportErrors(t *testing.T) {
	tests := []struct {
		name string
		opts *tsclient.HTTPOptions
	}{
		{"proxy without scheme", &tsclient.HTTPOptions{Proxy: "proxy.example.com:3128"}},
		{"unparsable proxy", &tsclient.HTTPOptions{Proxy: "http://%zz"}},
		{"proxy with custom round tripper", &tsclient.HTTPOptions{Proxy: "http://proxy.example.com:3128", RoundTripper: roundTripperFunc(nil)}},
		{"negative timeout", &tsclient.HTTPOptions{Timeout: -time.Second}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tsclient.NewHTTPTransport(tc.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
