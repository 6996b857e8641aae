package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func ok(context.Context) error { return nil }

func TestHealth_AlwaysHealthy(t *testing.T) {
	mux := newHealthMux([]readinessCheck{{name: "redis", check: func(context.Context) error { return errors.New("down") }}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestReady_AllChecksPass(t *testing.T) {
	mux := newHealthMux([]readinessCheck{{name: "zeebe", check: ok}, {name: "redis", check: ok}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestReady_ReportsFailingDependency(t *testing.T) {
	mux := newHealthMux([]readinessCheck{
		{name: "zeebe", check: ok},
		{name: "postgres", check: func(context.Context) error { return errors.New("connection refused") }},
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Status  string            `json:"status"`
		Failing map[string]string `json:"failing"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body.Status)
	assert.Equal(t, map[string]string{"postgres": "connection refused"}, body.Failing)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := httptest.NewRecorder()
	newHealthMux(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRetryWithBackoff(t *testing.T) {
	log := zaptest.NewLogger(t)

	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := retryWithBackoff(func() error {
			calls++
			if calls < 3 {
				return errors.New("not yet")
			}
			return nil
		}, 5, 0, log, "connect")

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		cause := errors.New("unreachable")
		err := retryWithBackoff(func() error {
			calls++
			return cause
		}, 3, 0, log, "connect")

		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "connect failed after 3 attempts: unreachable", err.Error())
		assert.Equal(t, 3, calls)
	})
}
