package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthChecker(t *testing.T) {
	sc := NewServerContext(context.Background(), nil, nil)
	h := NewHealthChecker(sc)
	h.SetInfo("v1.2.3", "http://agent:8000")

	mux := http.NewServeMux()
	h.RegisterHealthEndpoints(mux)

	get := func(path string) (int, map[string]any) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return rec.Code, body
	}

	code, body := get("/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, body = get("/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, map[string]any{"ready": "ok", "shutdown": "ok"}, body["checks"])

	code, body = get("/healthz/detailed")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "v1.2.3", body["version"])
	assert.Equal(t, "http://agent:8000", body["agent"])
	assert.NotEmpty(t, body["uptime"])

	h.SetReady(false)
	assert.False(t, h.IsReady())
	code, body = get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "not ready", body["status"])

	h.SetReady(true)
	require.NoError(t, sc.Shutdown())
	code, body = get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "shutting down", body["checks"].(map[string]any)["shutdown"])

	code, body = get("/healthz/detailed")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "shutting down", body["status"])

	code, _ = get("/healthz")
	assert.Equal(t, http.StatusOK, code, "liveness ignores shutdown")
}
