package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusWriterHijack(t *testing.T) {
	hijacked := make(chan error, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		conn, _, err := wrapped.Hijack()
		if err == nil {
			conn.Close()
		}
		hijacked <- err
	}))
	defer server.Close()

	// The handler closes the hijacked connection without a response, so
	// the client side is expected to fail.
	resp, err := http.Get(server.URL)
	if err == nil {
		resp.Body.Close()
	}

	if err := <-hijacked; err != nil {
		t.Errorf("Hijack() through statusWriter error = %v", err)
	}
}

func TestStatusWriterHijackUnsupported(t *testing.T) {
	wrapped := &statusWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	if _, _, err := wrapped.Hijack(); err == nil {
		t.Error("expected error when the underlying writer cannot hijack")
	}
}
