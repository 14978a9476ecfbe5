// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/telemetria/internal/config"
	"github.com/tomtom215/telemetria/internal/database"
	"github.com/tomtom215/telemetria/internal/geo"
	"github.com/tomtom215/telemetria/internal/models"
	"github.com/tomtom215/telemetria/internal/queue"
)

type fakeEnqueuer struct {
	batches []*models.Batch
	err     error
}

func (f *fakeEnqueuer) EnqueueBatch(_ context.Context, batch *models.Batch) error {
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, batch)
	return nil
}

type testEnv struct {
	db       *database.DB
	enqueuer *fakeEnqueuer
	server   http.Handler
}

func setupAPI(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("close test database: %v", err)
		}
	})

	cfg := &config.Config{
		Server: config.ServerConfig{
			MaxBatchBytes:      1 << 20,
			RateLimitPerMinute: 0,
		},
		Analytics: config.AnalyticsConfig{
			RetentionIntervals: []int{0, 1, 7},
			RageClickThreshold: 500 * time.Millisecond,
			RageClickMinCount:  5,
			TopPagesLimit:      10,
		},
	}

	enqueuer := &fakeEnqueuer{}
	resolver := geo.NewResolver(db, "ZZ")
	handler := NewHandler(db, enqueuer, resolver, nil, cfg)

	return &testEnv{
		db:       db,
		enqueuer: enqueuer,
		server:   NewRouter(handler, &cfg.Server),
	}
}

func (env *testEnv) request(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.RemoteAddr = "203.0.113.10:4242"
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) *models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response envelope: %v\nbody: %s", err, rec.Body.String())
	}
	return &resp
}

func validBatchBody(batchID string) []byte {
	return []byte(`{
		"batchId": "` + batchID + `",
		"timestamp": 1756600000000,
		"events": [
			{
				"eventId": "evt-1",
				"projectId": "proj-1",
				"sessionId": "sess-1",
				"clientId": "client-1",
				"type": "page_view",
				"timestamp": 1756600000000,
				"url": "/home"
			}
		]
	}`)
}

func TestIngestAccepted(t *testing.T) {
	env := setupAPI(t)

	rec := env.request(t, http.MethodPost, "/ingest", validBatchBody("batch-1"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202\nbody: %s", rec.Code, rec.Body.String())
	}

	resp := decodeEnvelope(t, rec)
	if resp.Status != "ok" {
		t.Errorf("envelope status = %q, want ok", resp.Status)
	}

	data, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("re-marshal data: %v", err)
	}
	var accepted models.IngestAccepted
	if err := json.Unmarshal(data, &accepted); err != nil {
		t.Fatalf("decode accepted payload: %v", err)
	}
	if accepted.BatchID != "batch-1" || accepted.JobID != "batch-1" {
		t.Errorf("accepted = %+v, want batchId == jobId == batch-1", accepted)
	}

	if len(env.enqueuer.batches) != 1 {
		t.Fatalf("enqueued batches = %d, want 1", len(env.enqueuer.batches))
	}
	if env.enqueuer.batches[0].Country != "ZZ" {
		t.Errorf("batch country = %q, want ZZ (unseeded store defaults)", env.enqueuer.batches[0].Country)
	}
}

func TestIngestValidationError(t *testing.T) {
	env := setupAPI(t)

	rec := env.request(t, http.MethodPost, "/ingest", []byte(`{"timestamp":1,"events":[]}`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != ErrCodeValidation {
		t.Errorf("error = %+v, want code %s", resp.Error, ErrCodeValidation)
	}
	if len(env.enqueuer.batches) != 0 {
		t.Error("invalid batch must not be enqueued")
	}
}

func TestIngestEnqueueTimeout(t *testing.T) {
	env := setupAPI(t)
	env.enqueuer.err = queue.ErrEnqueueTimeout

	rec := env.request(t, http.MethodPost, "/ingest", validBatchBody("batch-stuck"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != ErrCodeEnqueueTimeout {
		t.Errorf("error = %+v, want code %s", resp.Error, ErrCodeEnqueueTimeout)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("503 should carry Retry-After")
	}
}

func TestIngestBodyTooLarge(t *testing.T) {
	env := setupAPI(t)

	huge := []byte(`{"batchId":"b","timestamp":1,"events":[{"eventId":"` +
		strings.Repeat("x", 2<<20) + `"}]}`)
	rec := env.request(t, http.MethodPost, "/ingest", huge)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	env := setupAPI(t)

	rec := env.request(t, http.MethodGet, "/sessions/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Errorf("error = %+v, want code %s", resp.Error, ErrCodeNotFound)
	}
}

func TestGetSessionDetail(t *testing.T) {
	env := setupAPI(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	if err := env.db.UpsertSession(ctx, &models.Session{
		ID: "sess-1", ProjectID: "proj-1", ClientID: "client-1",
		Location: "SE", Device: "desktop",
		CreatedAt: now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if err := env.db.InsertReplayFrame(ctx, &models.ReplayFrame{
		EventID: "evt-f1", ReplayID: "rep-1", SessionID: "sess-1",
		ProjectID: "proj-1", Timestamp: now, SchemaVersion: 1,
		Payload: []byte(`{"type":2}`),
	}); err != nil {
		t.Fatalf("seed frame: %v", err)
	}

	rec := env.request(t, http.MethodGet, "/sessions/sess-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}

	resp := decodeEnvelope(t, rec)
	data, _ := json.Marshal(resp.Data)
	var detail models.SessionDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if detail.ID != "sess-1" || len(detail.Replays) != 1 {
		t.Errorf("detail = id %q with %d replays, want sess-1 with 1", detail.ID, len(detail.Replays))
	}
}

func TestGetHeatmapEscapedURL(t *testing.T) {
	env := setupAPI(t)
	ctx := context.Background()

	if err := env.db.RecordClick(ctx, &models.HeatmapBucket{
		ProjectID: "proj-1", URL: "/pricing?plan=pro",
		GridX: 10, GridY: 20, LastClickAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("seed click: %v", err)
	}

	rec := env.request(t, http.MethodGet, "/heatmaps/proj-1/%2Fpricing%3Fplan%3Dpro", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", rec.Code, rec.Body.String())
	}

	resp := decodeEnvelope(t, rec)
	data, _ := json.Marshal(resp.Data)
	var heatmap models.Heatmap
	if err := json.Unmarshal(data, &heatmap); err != nil {
		t.Fatalf("decode heatmap: %v", err)
	}
	if heatmap.ClickCount != 1 || len(heatmap.Buckets) != 1 {
		t.Errorf("heatmap = %d clicks / %d buckets, want 1/1", heatmap.ClickCount, len(heatmap.Buckets))
	}
}

func TestAnalyticsRequireProjectID(t *testing.T) {
	env := setupAPI(t)

	for _, path := range []string{
		"/analytics/retention",
		"/analytics/traffic",
		"/analytics/overview",
		"/analytics/top-pages",
	} {
		rec := env.request(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestAnalyticsBadDateRange(t *testing.T) {
	env := setupAPI(t)

	rec := env.request(t, http.MethodGet,
		"/analytics/traffic?projectId=proj-1&startDate=2026-08-10&endDate=2026-08-01", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	rec = env.request(t, http.MethodGet,
		"/analytics/retention?projectId=proj-1&intervals=0,-1", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative interval: status = %d, want 400", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	env := setupAPI(t)

	rec := env.request(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("/health status = %d, want 200", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	data, _ := json.Marshal(resp.Data)
	var health models.HealthStatus
	if err := json.Unmarshal(data, &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" || health.Database != "ok" {
		t.Errorf("health = %+v, want ok/ok", health)
	}

	for _, path := range []string{"/health/live", "/health/ready"} {
		rec := env.request(t, http.MethodGet, path, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupAPI(t)

	rec := env.request(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "# HELP") {
		t.Error("/metrics should expose prometheus text format")
	}
}

func TestListFailedJobsEmpty(t *testing.T) {
	env := setupAPI(t)

	rec := env.request(t, http.MethodGet, "/dlq", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeEnvelope(t, rec)
	if resp.Status != "ok" {
		t.Errorf("envelope status = %q, want ok", resp.Status)
	}
}
