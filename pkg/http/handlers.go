package http

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"redirector/pkg/enrichment"
	"redirector/pkg/service"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	registry *service.Registry
	geo      *enrichment.GeoResolver
}

func NewHandler(registry *service.Registry, geo *enrichment.GeoResolver) *Handler {
	return &Handler{registry: registry, geo: geo}
}

func (h *Handler) CreateRedirection(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRedirectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	// Shape check happens here, before the registry's uniqueness check.
	if req.CustomSlug != nil && !service.ValidateSlug(*req.CustomSlug) {
		http.Error(w, "invalid slug: must be 3-16 characters of [a-zA-Z0-9_-]", http.StatusBadRequest)
		return
	}

	resp, err := h.registry.CreateRedirection(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handler) GetRedirectionDetails(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	details, err := h.registry.GetRedirectionDetailsBySlug(r.Context(), slug)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(details)
}

func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	resp, err := h.registry.Redirect(r.Context(), slug, h.visitMetadata(r))
	if err != nil {
		// Visitors get a plain not-found whether the slug never existed
		// or has expired.
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Redirect(w, r, resp.URL, http.StatusFound)
}

func (h *Handler) UpdateRedirection(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	updated, err := h.registry.UpdateRedirectionBySlug(r.Context(), slug, req.URL)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

func (h *Handler) DeleteRedirection(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	deleted, err := h.registry.DeleteRedirectionBySlug(r.Context(), slug)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(deleted)
}

func (h *Handler) HelloWorld(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Hello World!"))
}

// visitMetadata assembles the enrichment fields for one visit from the
// request headers, the user-agent parser and the geo resolver.
func (h *Handler) visitMetadata(r *http.Request) *service.VisitMetadata {
	userAgent := r.Header.Get("User-Agent")
	language := r.Header.Get("Accept-Language")
	ip := clientIP(r)

	uaInfo := enrichment.ParseUserAgent(userAgent)

	metadata := &service.VisitMetadata{
		UserAgent: optional(userAgent),
		Language:  optional(language),
		Platform:  uaInfo.Platform,
		Browser:   uaInfo.Browser,
		Device:    uaInfo.Device,
		OS:        uaInfo.OS,
		IP:        optional(ip),
	}

	if h.geo != nil && ip != "" {
		location := h.geo.Resolve(r.Context(), ip)
		metadata.Country = optional(location.Country)
		metadata.Region = optional(location.Region)
		metadata.City = optional(location.City)
	}

	return metadata
}

// clientIP prefers the first X-Forwarded-For entry and falls back to the
// connection remote address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidURL), errors.Is(err, service.ErrMissingSlug):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, service.ErrSlugAlreadyExists):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, service.ErrRedirectionNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, service.ErrRedirectionExpired):
		http.Error(w, "gone", http.StatusGone)
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func SetupRoutes(r *chi.Mux, handler *Handler) {
	r.Get("/hello-world", handler.HelloWorld)
	r.Post("/create", handler.CreateRedirection)
	r.Get("/details/{slug}", handler.GetRedirectionDetails)
	r.Get("/{slug}", handler.Redirect)
	r.Put("/{slug}", handler.UpdateRedirection)
	r.Delete("/{slug}", handler.DeleteRedirection)
}
