package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/bookhive/bookhive-backend/pkg/config"
	"github.com/bookhive/bookhive-backend/pkg/logger"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "dev", Port: "8080"}}
}

func TestHealthLive(t *testing.T) {
	handler := NewRouter(RouterParams{
		Config: testConfig(),
		Logger: logger.New(logger.Options{ServiceName: "api-test"}),
	})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "dev", rec.Header().Get("X-BookHive-Env"))
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHealthReadyAllUp(t *testing.T) {
	handler := NewRouter(RouterParams{
		Config: testConfig(),
		Logger: logger.New(logger.Options{ServiceName: "api-test"}),
		DB:     fakePinger{},
		Redis:  fakePinger{},
	})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "ready", body.Data.Status)
	require.Equal(t, "ok", body.Data.Checks["database"])
	require.Equal(t, "ok", body.Data.Checks["redis"])
}

func TestHealthReadyDependencyDown(t *testing.T) {
	handler := NewRouter(RouterParams{
		Config: testConfig(),
		Logger: logger.New(logger.Options{ServiceName: "api-test"}),
		DB:     fakePinger{err: errors.New("connection refused")},
		Redis:  fakePinger{},
	})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "DEPENDENCY_ERROR", body.Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	handler := NewRouter(RouterParams{
		Config:     testConfig(),
		Logger:     logger.New(logger.Options{ServiceName: "api-test"}),
		Prometheus: registry,
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
