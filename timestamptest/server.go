package timestamptest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"
)

// ServeHTTP answers RFC 3161 section 3.4 requests. Both POST and GET with a
// DER body are accepted. Rejections are returned with status 200 like a real
// TSA does.
func (tsa *TSA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/timestamp-query") {
		http.Error(w, "Invalid content type", http.StatusBadRequest)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	resp, err := tsa.Respond(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/timestamp-reply")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

// NewRouter mounts tsa at /tsr. Any other path answers 404.
func NewRouter(tsa *TSA) http.Handler {
	r := chi.NewRouter()
	r.Post("/tsr", tsa.ServeHTTP)
	r.Get("/tsr", tsa.ServeHTTP)
	return r
}

// NewServer starts an HTTP server for tsa. The TSA URL is the server URL
// followed by /tsr. The caller must Close the server.
func NewServer(tsa *TSA) *httptest.Server {
	return httptest.NewServer(NewRouter(tsa))
}

// URL returns the TSA endpoint of a server started by NewServer.
func URL(srv *httptest.Server) string {
	return srv.URL + "/tsr"
}
