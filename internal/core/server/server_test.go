package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/poi-tile-cache/internal/core/health"
)

func TestNewRouter_Routes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ws := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUpgradeRequired)
	})
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "# metrics")
	})
	h := NewRouter(logger, Routes{WebSocket: ws, Metrics: metrics, Ready: map[string]health.Pinger{}})

	cases := []struct {
		path string
		code int
		body string
	}{
		{"/healthz", http.StatusOK, "ok"},
		{"/readyz", http.StatusOK, "ready"},
		{"/metrics", http.StatusOK, "# metrics"},
		{"/ws", http.StatusUpgradeRequired, ""},
		{"/", http.StatusUpgradeRequired, ""},
		{"/nope", http.StatusNotFound, ""},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, c.path, nil))
		if rr.Code != c.code {
			t.Fatalf("%s: status=%d want %d", c.path, rr.Code, c.code)
		}
		if c.body != "" && !strings.Contains(rr.Body.String(), c.body) {
			t.Fatalf("%s: body=%q want %q", c.path, rr.Body.String(), c.body)
		}
	}
}
