package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/services"
)

// memStore keeps the dataset document in memory for handler tests.
type memStore struct {
	document []byte
	revision int64
}

func (m *memStore) Load(ctx context.Context) ([]byte, int64, error) {
	return m.document, m.revision, nil
}

func (m *memStore) Replace(ctx context.Context, document []byte) (int64, error) {
	m.document = append([]byte(nil), document...)
	m.revision++
	return m.revision, nil
}

func (m *memStore) Close() error { return nil }

func newTestServer(t *testing.T) (*Server, *memStore) {
	t.Helper()
	store := &memStore{document: []byte("[]")}
	svc := services.NewDatasetService(store, nil, nil)
	s := NewServer(":0", svc, cache.NewRenderCache(1<<20, time.Minute), 1<<20, 1000)
	t.Cleanup(func() {
		s.limiter.stop()
	})
	return s, store
}

func doJSON(t *testing.T, s *Server, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func createCategory(t *testing.T, s *Server, name string) core.Category {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/api/categories", map[string]string{"name": name})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category: status %d, body %s", rec.Code, rec.Body.String())
	}
	var cat core.Category
	if err := json.Unmarshal(rec.Body.Bytes(), &cat); err != nil {
		t.Fatalf("decode category: %v", err)
	}
	return cat
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: status %d, body %q", rec.Code, rec.Body.String())
	}
}

func TestCategoryCRUD(t *testing.T) {
	s, _ := newTestServer(t)

	cat := createCategory(t, s, "Groceries")
	if cat.Name != "Groceries" {
		t.Fatalf("unexpected name %q", cat.Name)
	}

	rec := doJSON(t, s, http.MethodPost, "/api/categories/"+cat.ID.String()+"/items",
		map[string]string{"amount": "12,50", "description": "weekly shop"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item: status %d, body %s", rec.Code, rec.Body.String())
	}
	var item core.ExpenseItem
	if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
		t.Fatalf("decode item: %v", err)
	}
	if item.Amount.String() != "12.5" {
		t.Fatalf("amount parsed as %s", item.Amount)
	}

	rec = doJSON(t, s, http.MethodPut, "/api/categories/"+cat.ID.String(),
		map[string]string{"name": "Food"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("rename: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, "/api/categories", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var listed datasetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Categories) != 1 || listed.Categories[0].Name != "Food" {
		t.Fatalf("unexpected listing: %+v", listed)
	}
	if listed.Revision != 3 {
		t.Fatalf("revision = %d, want 3", listed.Revision)
	}

	rec = doJSON(t, s, http.MethodDelete,
		"/api/categories/"+cat.ID.String()+"/items/"+item.ID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete item: status %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodDelete, "/api/categories/"+cat.ID.String(), nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete category: status %d", rec.Code)
	}
}

func TestValidationErrors(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/categories", map[string]string{"name": ""})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty name: status %d, want 422", rec.Code)
	}

	cat := createCategory(t, s, "Travel")
	rec = doJSON(t, s, http.MethodPost, "/api/categories/"+cat.ID.String()+"/items",
		map[string]string{"amount": "not-a-number"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bad amount: status %d, want 422", rec.Code)
	}

	rec = doJSON(t, s, http.MethodPut, "/api/categories/not-a-uuid",
		map[string]string{"name": "X"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad uuid: status %d, want 400", rec.Code)
	}

	missing := core.NewCategory("missing")
	rec = doJSON(t, s, http.MethodDelete, "/api/categories/"+missing.ID.String(), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown category: status %d, want 404", rec.Code)
	}
}

func TestExportImportImageRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)

	cat := createCategory(t, s, "Books")
	rec := doJSON(t, s, http.MethodPost, "/api/categories/"+cat.ID.String()+"/items",
		map[string]string{"amount": "18.00", "description": "novel"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create item: status %d", rec.Code)
	}

	rec = doJSON(t, s, http.MethodGet, "/api/export/image?strategy=stego", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: status %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type = %q", ct)
	}
	image := rec.Body.Bytes()

	// Wipe, then restore from the exported carrier.
	req := httptest.NewRequest(http.MethodPost, "/api/import/text", strings.NewReader("[]"))
	rec = httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear: status %d, body %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/import/image", bytes.NewReader(image))
	rec = httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("import: status %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s, http.MethodGet, "/api/categories", nil)
	var listed datasetResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Categories) != 1 || listed.Categories[0].Name != "Books" {
		t.Fatalf("round-trip lost data: %+v", listed)
	}
}

func TestExportImageCaching(t *testing.T) {
	s, _ := newTestServer(t)

	createCategory(t, s, "Cached")

	rec := doJSON(t, s, http.MethodGet, "/api/export/image", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: status %d", rec.Code)
	}
	if s.renders.Size() != 1 {
		t.Fatalf("render cache size = %d, want 1", s.renders.Size())
	}
	first := rec.Body.Bytes()

	rec = doJSON(t, s, http.MethodGet, "/api/export/image", nil)
	if !bytes.Equal(rec.Body.Bytes(), first) {
		t.Fatalf("cached render differs from first render")
	}

	// A write bumps the revision, so the next export misses the cache.
	createCategory(t, s, "Newer")
	rec = doJSON(t, s, http.MethodGet, "/api/export/image", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export after write: status %d", rec.Code)
	}
	if s.renders.Size() != 2 {
		t.Fatalf("render cache size = %d, want 2", s.renders.Size())
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/import/image",
		strings.NewReader("definitely not a png"))
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("garbage import: status %d, want 400", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/import/scan",
		strings.NewReader("!!! not base64 !!!"))
	rec = httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("garbage scan: status %d, want 400", rec.Code)
	}
}

func TestImportBodyTooLarge(t *testing.T) {
	store := &memStore{document: []byte("[]")}
	svc := services.NewDatasetService(store, nil, nil)
	s := NewServer(":0", svc, nil, 128, 1000)
	t.Cleanup(func() { s.limiter.stop() })

	req := httptest.NewRequest(http.MethodPost, "/api/import/image",
		bytes.NewReader(make([]byte, 1024)))
	rec := httptest.NewRecorder()
	s.Server.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized import: status %d, want 413", rec.Code)
	}
}

func TestUnknownStrategy(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/export/image?strategy=carrier-pigeon", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown strategy: status %d, want 400", rec.Code)
	}
}

func TestExportText(t *testing.T) {
	s, _ := newTestServer(t)

	createCategory(t, s, "Plain")
	rec := doJSON(t, s, http.MethodGet, "/api/export/text", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export text: status %d", rec.Code)
	}
	var d core.Dataset
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("exported text is not valid JSON: %v", err)
	}
	if len(d) != 1 || d[0].Name != "Plain" {
		t.Fatalf("unexpected export: %+v", d)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	store := &memStore{document: []byte("[]")}
	svc := services.NewDatasetService(store, nil, nil)
	s := NewServer(":0", svc, nil, 1<<20, 5)
	t.Cleanup(func() { s.limiter.stop() })

	for i := 0; i < 5; i++ {
		rec := doJSON(t, s, http.MethodPost, "/api/categories",
			map[string]string{"name": fmt.Sprintf("cat-%d", i)})
		if rec.Code == http.StatusTooManyRequests {
			t.Fatalf("write %d limited below the configured budget", i)
		}
	}

	rec := doJSON(t, s, http.MethodPost, "/api/categories",
		map[string]string{"name": "over-budget"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 past the write budget, got %d", rec.Code)
	}
	if got := s.limiter.rejectedTotal(); got != 1 {
		t.Fatalf("rejected total = %d, want 1", got)
	}

	// Reads stay unthrottled.
	rec = doJSON(t, s, http.MethodGet, "/api/categories", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("read blocked by write limiter: %d", rec.Code)
	}
}
