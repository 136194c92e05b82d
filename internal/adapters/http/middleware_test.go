package httpadapter

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestIDReplacesUnusableHeader(t *testing.T) {
	cases := map[string]string{
		"oversized":     strings.Repeat("a", maxRequestIDLength+1),
		"control chars": "abc\x00def",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			var seen string
			handler := requestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = w.Header().Get(requestIDHeader)
			}))
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			req.Header.Set(requestIDHeader, header)
			handler.ServeHTTP(httptest.NewRecorder(), req)
			if seen == "" || seen == header {
				t.Fatalf("expected a generated id, got %q", seen)
			}
		})
	}
}

func TestAccessLogLevelFollowsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	handler := accessLogMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/retrieve", nil))

	line := buf.String()
	for _, want := range []string{`"level":"ERROR"`, `"status":502`, `"bytes":8`, `"path":"/v1/retrieve"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %s", want, line)
		}
	}
}
