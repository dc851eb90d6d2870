package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/RishiKendai/matchcode/internal/codebase"
	"github.com/RishiKendai/matchcode/internal/config"
	"github.com/RishiKendai/matchcode/internal/index"
	"github.com/RishiKendai/matchcode/internal/ingest"
	"github.com/RishiKendai/matchcode/internal/matching"
	"github.com/RishiKendai/matchcode/internal/models"
	"github.com/RishiKendai/matchcode/internal/repository/boltdb"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
)

const (
	testSecret = "test-secret"
	testIssuer = "matchcode"
	abbotSHA1  = "51d28a27d919ce8690a40f4f335b9d591ceb16e9"
)

type memoryQueue struct {
	mu       sync.Mutex
	requests []*models.IndexRequest
}

func (q *memoryQueue) Enqueue(ctx context.Context, req *models.IndexRequest) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.requests = append(q.requests, req)
	return "1-0", nil
}

type memoryStatus struct {
	mu    sync.Mutex
	steps map[string]models.Step
}

func (s *memoryStatus) UpdateStatus(ctx context.Context, packageID string, step models.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[packageID] = step
	return nil
}

func (s *memoryStatus) GetStatus(ctx context.Context, packageID string) (models.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	step, ok := s.steps[packageID]
	if !ok {
		return "", ingest.ErrStatusNotFound
	}
	return step, nil
}

type testServer struct {
	router *gin.Engine
	queue  *memoryQueue
	status *memoryStatus
	store  *boltdb.Store
	token  string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := boltdb.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	registry := index.NewRegistry(store)

	cb, err := codebase.FromScan(&codebase.Scan{Files: []codebase.Resource{
		{Path: "abbot", Type: "directory"},
		{Path: "abbot/Main.class", Type: "file", SHA1: strings.Repeat("a", 40)},
	}})
	if err != nil {
		t.Fatalf("FromScan: %v", err)
	}
	pkg := &models.Package{ID: "pkg-abbot", Type: "maven", Name: "abbot", Version: "0.12.3", Filename: "abbot-0.12.3.jar", SHA1: abbotSHA1}
	if _, err := index.NewIndexer(registry).IndexPackage(context.Background(), pkg, cb); err != nil {
		t.Fatalf("IndexPackage: %v", err)
	}

	pool := matching.NewWorkerPool(context.Background(), 2)
	t.Cleanup(pool.Close)

	cfg := &config.Config{JWTSecret: testSecret, JWTIssuer: testIssuer, RateLimitRPS: 1000}
	ts := &testServer{
		queue:  &memoryQueue{},
		status: &memoryStatus{steps: make(map[string]models.Step)},
		store:  store,
	}
	ts.router = SetupRoutes(cfg, registry, pool, ts.queue, ts.status)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"api_key": "tester",
		"iss":     testIssuer,
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	ts.token = token
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ts.token)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/packages/pkg-abbot", nil)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	ts.token = "not-a-token"
	if w := ts.do(t, http.MethodGet, "/api/v1/packages/pkg-abbot", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token status = %d, want 401", w.Code)
	}
}

func TestMatchEndpoint(t *testing.T) {
	ts := newTestServer(t)
	scan := `{"archive_sha1": "` + strings.ToUpper(abbotSHA1) + `", "files": [
		{"path": "x", "type": "directory"},
		{"path": "x/Main.class", "type": "file", "sha1": "` + strings.Repeat("a", 40) + `"}
	]}`
	w := ts.do(t, http.MethodPost, "/api/v1/match", scan)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp models.MatchResponse
	decodeBody(t, w, &resp)

	type row struct{ Path, MatchType, Filename string }
	var got []row
	for _, r := range resp.Results {
		for _, m := range r.Matches {
			got = append(got, row{r.Path, m.MatchType, m.Filename})
		}
	}
	want := []row{
		{"x", "exact-package-archive", "abbot-0.12.3.jar"},
		{"x/Main.class", "exact-file", "abbot-0.12.3.jar"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("match rows (-want +got):\n%s", diff)
	}

	w = ts.do(t, http.MethodPost, "/api/v1/match?tiers=exact-file", scan)
	decodeBody(t, w, &resp)
	if len(resp.Results) != 1 || resp.Results[0].Path != "x/Main.class" {
		t.Errorf("tiered results = %+v", resp.Results)
	}
}

func TestMatchErrors(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		name string
		path string
		body string
		code string
	}{
		{name: "malformed", path: "/api/v1/match", body: `{"files": [{"path": "a.js", "type": "file", "sha1": "xyz"}]}`, code: "MALFORMED_FINGERPRINT"},
		{name: "bad scan", path: "/api/v1/match", body: `{"files": [`, code: "INVALID_SCAN"},
		{name: "unknown tier", path: "/api/v1/match?tiers=fuzzy", body: `{"files": [{"path": "a.js", "type": "file"}]}`, code: "INVALID_TIER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, tt.path, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
			var resp ErrorResponse
			decodeBody(t, w, &resp)
			if resp.Code != tt.code {
				t.Errorf("code = %q, want %q", resp.Code, tt.code)
			}
		})
	}
}

func TestIndexEndpoint(t *testing.T) {
	ts := newTestServer(t)
	body := `{"package": {"type": "npm", "name": "async", "version": "3.2.0"}, "scan_url": "https://scans.example.com/async.json"}`
	w := ts.do(t, http.MethodPost, "/api/v1/index", body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp models.IndexResponse
	decodeBody(t, w, &resp)
	if resp.Step != models.StepQueued || resp.PackageID == "" {
		t.Fatalf("response = %+v", resp)
	}
	if len(ts.queue.requests) != 1 || ts.queue.requests[0].Package.ID != resp.PackageID {
		t.Fatalf("queued requests = %+v", ts.queue.requests)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/index/"+resp.PackageID+"/status", "")
	var status models.IndexStatusResponse
	decodeBody(t, w, &status)
	if status.Step != models.StepQueued {
		t.Errorf("status step = %q, want queued", status.Step)
	}

	if w := ts.do(t, http.MethodGet, "/api/v1/index/unknown/status", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown status code = %d, want 404", w.Code)
	}
	if w := ts.do(t, http.MethodPost, "/api/v1/index", `{"package": {"type": "npm", "name": "x"}}`); w.Code != http.StatusBadRequest {
		t.Errorf("request without scan code = %d, want 400", w.Code)
	}
}

func TestPackageEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/packages/pkg-abbot", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Package models.Package `json:"package"`
		Purl    string         `json:"purl"`
	}
	decodeBody(t, w, &resp)
	if resp.Purl != "pkg:maven/abbot@0.12.3" || resp.Package.Filename != "abbot-0.12.3.jar" {
		t.Errorf("package response = %+v", resp)
	}

	if w := ts.do(t, http.MethodDelete, "/api/v1/packages/pkg-abbot", ""); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/api/v1/packages/pkg-abbot", ""); w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	if w := ts.do(t, http.MethodDelete, "/api/v1/packages/pkg-abbot", ""); w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}

	n := 0
	if err := ts.store.Walk(models.ExactFile, func(*models.IndexEntry) error { n++; return nil }); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if n != 0 {
		t.Errorf("%d file entries survive package deletion", n)
	}
}
