package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"redirector/pkg/logging"
	"redirector/pkg/service"
	"redirector/pkg/storage"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock implementations for testing
type mockRedirectionStorage struct {
	redirections map[string]*storage.Redirection
	nextID       int
	visits       *mockVisitStorage
}

func newMockRedirectionStorage() *mockRedirectionStorage {
	return &mockRedirectionStorage{redirections: make(map[string]*storage.Redirection)}
}

func (m *mockRedirectionStorage) Create(ctx context.Context, r *storage.Redirection) (*storage.Redirection, error) {
	if _, exists := m.redirections[r.Slug]; exists {
		return nil, storage.ErrDuplicate
	}
	m.nextID++
	now := time.Now().UTC()
	created := *r
	created.ID = m.nextID
	created.CreatedAt = now
	created.UpdatedAt = now
	m.redirections[r.Slug] = &created
	return &created, nil
}

func (m *mockRedirectionStorage) GetBySlug(ctx context.Context, slug string) (*storage.Redirection, error) {
	if r, exists := m.redirections[slug]; exists {
		return r, nil
	}
	return nil, nil
}

func (m *mockRedirectionStorage) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	_, exists := m.redirections[slug]
	return exists, nil
}

func (m *mockRedirectionStorage) UpdateURL(ctx context.Context, slug, url string) (*storage.Redirection, error) {
	r, exists := m.redirections[slug]
	if !exists {
		return nil, nil
	}
	r.URL = url
	r.UpdatedAt = time.Now().UTC()
	return r, nil
}

func (m *mockRedirectionStorage) Delete(ctx context.Context, id int) error {
	for slug, r := range m.redirections {
		if r.ID == id {
			delete(m.redirections, slug)
		}
	}
	if m.visits != nil {
		kept := m.visits.visits[:0]
		for _, v := range m.visits.visits {
			if v.RedirectionID != id {
				kept = append(kept, v)
			}
		}
		m.visits.visits = kept
	}
	return nil
}

type mockVisitStorage struct {
	visits []*storage.Visit
	nextID int
}

func (m *mockVisitStorage) Create(ctx context.Context, visit *storage.Visit) (*storage.Visit, error) {
	m.nextID++
	visit.ID = m.nextID
	visit.CreatedAt = time.Now().UTC()
	m.visits = append(m.visits, visit)
	return visit, nil
}

func (m *mockVisitStorage) Stats(ctx context.Context, redirectionID int) (int64, *time.Time, error) {
	var count int64
	var last *time.Time
	for _, v := range m.visits {
		if v.RedirectionID != redirectionID {
			continue
		}
		count++
		if last == nil || v.CreatedAt.After(*last) {
			t := v.CreatedAt
			last = &t
		}
	}
	return count, last, nil
}

func newTestRouter() (*chi.Mux, *mockRedirectionStorage, *mockVisitStorage) {
	redirections := newMockRedirectionStorage()
	visits := &mockVisitStorage{}
	redirections.visits = visits

	registry := service.NewRegistry(redirections, visits, logging.NewLogger(logging.LevelError))
	handler := NewHandler(registry, nil)

	r := chi.NewRouter()
	SetupRoutes(r, handler)
	return r, redirections, visits
}

func createRedirection(t *testing.T, router *chi.Mux, body string) service.CreateRedirectionResponse {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/create", bytes.NewBufferString(body))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp service.CreateRedirectionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateEndpoint(t *testing.T) {
	router, _, _ := newTestRouter()

	resp := createRedirection(t, router, `{"url":"https://example.com"}`)
	assert.Len(t, resp.Slug, 6)
}

func TestCreateEndpointInvalidURL(t *testing.T) {
	router, _, _ := newTestRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/create", bytes.NewBufferString(`{"url":"example.com"}`))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateEndpointShortCustomSlug(t *testing.T) {
	router, redirections, _ := newTestRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/create", bytes.NewBufferString(`{"url":"https://example.com","custom_slug":"ab"}`))
	router.ServeHTTP(rec, req)

	// Rejected by shape validation, before any uniqueness check.
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, redirections.redirections)
}

func TestCreateEndpointDuplicateCustomSlug(t *testing.T) {
	router, _, _ := newTestRouter()

	createRedirection(t, router, `{"url":"https://example.com","custom_slug":"promo"}`)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/create", bytes.NewBufferString(`{"url":"https://example.org","custom_slug":"promo"}`))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRedirectFlow(t *testing.T) {
	router, _, _ := newTestRouter()

	resp := createRedirection(t, router, `{"url":"https://example.com"}`)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/details/"+resp.Slug, nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var details storage.RedirectionStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Equal(t, int64(0), details.VisitsCount)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/"+resp.Slug, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/details/"+resp.Slug, nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &details))
	assert.Equal(t, int64(1), details.VisitsCount)
	assert.NotNil(t, details.LastVisitedAt)
}

func TestRedirectVisitCarriesEnrichment(t *testing.T) {
	router, _, visits := newTestRouter()

	resp := createRedirection(t, router, `{"url":"https://example.com"}`)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/"+resp.Slug, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusFound, rec.Code)

	require.Len(t, visits.visits, 1)
	visit := visits.visits[0]
	require.NotNil(t, visit.IP)
	assert.Equal(t, "203.0.113.9", *visit.IP)
	require.NotNil(t, visit.Language)
	assert.Equal(t, "en-US", *visit.Language)
	require.NotNil(t, visit.Browser)
	assert.Equal(t, "Chrome", *visit.Browser)
	require.NotNil(t, visit.Platform)
	assert.Equal(t, "Windows", *visit.Platform)
	assert.Nil(t, visit.Country) // no geo resolver wired
}

func TestRedirectUnknownSlug(t *testing.T) {
	router, _, _ := newTestRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func seedExpired(redirections *mockRedirectionStorage, slug string) {
	redirections.nextID++
	now := time.Now().UTC()
	redirections.redirections[slug] = &storage.Redirection{
		ID:             redirections.nextID,
		Slug:           slug,
		URL:            "https://example.com",
		Source:         service.DefaultSource,
		ExpirationDate: now.AddDate(0, 0, -1),
		CreatedAt:      now.AddDate(0, 0, -31),
		UpdatedAt:      now.AddDate(0, 0, -31),
	}
}

func TestExpiredRedirection(t *testing.T) {
	router, redirections, _ := newTestRouter()
	seedExpired(redirections, "stale")

	// Details distinguishes expired from never-existed.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/details/stale", nil)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusGone, rec.Code)

	// Visitors just see not-found.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/stale", nil)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Mutations still reach the row.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/stale", bytes.NewBufferString(`{"url":"https://example.org"}`))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateEndpoint(t *testing.T) {
	router, _, _ := newTestRouter()

	resp := createRedirection(t, router, `{"url":"https://example.com"}`)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/"+resp.Slug, bytes.NewBufferString(`{"url":"https://example.org"}`))
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated storage.Redirection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "https://example.org", updated.URL)
	assert.Equal(t, resp.Slug, updated.Slug)
}

func TestDeleteEndpoint(t *testing.T) {
	router, _, _ := newTestRouter()

	resp := createRedirection(t, router, `{"url":"https://example.com"}`)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/"+resp.Slug, nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var deleted storage.Redirection
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deleted))
	assert.Equal(t, resp.Slug, deleted.Slug)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/details/"+resp.Slug, nil)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHelloWorld(t *testing.T) {
	router, _, _ := newTestRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/hello-world", nil)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Hello World!", rec.Body.String())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name      string
		forwarded string
		remote    string
		expected  string
	}{
		{"forwarded single", "203.0.113.9", "10.0.0.1:1234", "203.0.113.9"},
		{"forwarded list", "203.0.113.9, 10.0.0.1, 172.16.0.1", "10.0.0.1:1234", "203.0.113.9"},
		{"remote addr", "", "192.0.2.7:5678", "192.0.2.7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			assert.Equal(t, tt.expected, clientIP(req))
		})
	}
}
