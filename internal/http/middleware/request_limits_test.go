package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tendant/simple-idm-otp/internal/httputil"
)

// decodeEcho decodes a JSON body the way the feature handlers do.
var decodeEcho = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	if !httputil.Decode(w, r, &body) {
		return
	}
	httputil.JSON(w, http.StatusOK, body)
})

func jsonBody(n int) string {
	// {"k":"aaa..."} is n bytes long.
	return `{"k":"` + strings.Repeat("a", n-8) + `"}`
}

func TestRequestSizeLimit(t *testing.T) {
	handler := RequestSizeLimit(100)(decodeEcho)

	tests := []struct {
		name       string
		size       int
		hideLength bool
		wantStatus int
	}{
		{"small body", 50, false, http.StatusOK},
		{"exact limit", 100, false, http.StatusOK},
		{"declared too large", 150, false, http.StatusRequestEntityTooLarge},
		{"streamed too large", 150, true, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(jsonBody(tt.size)))
			if tt.hideLength {
				req.ContentLength = -1
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("got status %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

func TestRequestSizeLimit_Disabled(t *testing.T) {
	handler := RequestSizeLimit(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader(bytes.Repeat([]byte("a"), 4096)))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("got status %d, want %d", w.Code, http.StatusOK)
	}
}
