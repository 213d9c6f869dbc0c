package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tphummel/pcbuild/internal/builds"
	"github.com/tphummel/pcbuild/internal/compat"
	"github.com/tphummel/pcbuild/internal/db"
	"github.com/tphummel/pcbuild/internal/middleware"
	"github.com/tphummel/pcbuild/internal/models"
)

const (
	maxBodyBytes       = 64 * 1024
	defaultPageLimit   = 20
	maxComponentsLimit = 100
	maxBuildsLimit     = 50
)

// Catalog is the read side of the component store used by the handlers.
type Catalog interface {
	Ping(ctx context.Context) error
	Categories(ctx context.Context) ([]models.CategoryInfo, error)
	ListComponents(ctx context.Context, f db.ComponentFilter) ([]*models.Component, int, error)
	GetComponent(ctx context.Context, id string) (*models.Component, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	Catalog Catalog
	Builds  *builds.Service
	// Token widens build listings for authenticated callers.
	Token   string
	Version string
	Commit  string
}

type pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func newPagination(page, limit, total int) *pagination {
	return &pagination{Page: page, Limit: limit, Total: total, Pages: (total + limit - 1) / limit}
}

type envelope struct {
	Success    bool        `json:"success"`
	Data       any         `json:"data,omitempty"`
	Pagination *pagination `json:"pagination,omitempty"`
	Error      string      `json:"error,omitempty"`
	Message    string      `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeData(w http.ResponseWriter, status int, data any, p *pagination) {
	writeJSON(w, status, envelope{Success: true, Data: data, Pagination: p})
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, envelope{Error: kind, Message: msg})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, builds.KindValidation, msg)
}

// writeServiceError maps store and service errors to responses. what names
// the resource for 404s and the action for 500s.
func writeServiceError(w http.ResponseWriter, err error, what, action string) {
	var verr *builds.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Kind, verr.Message)
	case errors.Is(err, compat.ErrInvalidInput):
		badRequest(w, err.Error())
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "Not Found", what+" not found")
	default:
		slog.Error("request failed", "action", action, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error", "failed to "+action)
	}
}

// decodeBody reads a size-limited JSON body into v, writing the error
// response itself when it returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "request body too large")
			return false
		}
		badRequest(w, "invalid JSON")
		return false
	}
	return true
}

// Health handles GET /healthz. No auth required.
// Returns 503 if the database is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.Version,
		"commit":  h.Commit,
	})
}

// Categories handles GET /api/v1/components/categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Catalog.Categories(r.Context())
	if err != nil {
		writeServiceError(w, err, "category", "list categories")
		return
	}
	if cats == nil {
		cats = []models.CategoryInfo{}
	}
	writeData(w, http.StatusOK, cats, nil)
}

// ListComponents handles GET /api/v1/components.
func (h *Handler) ListComponents(w http.ResponseWriter, r *http.Request) {
	f, err := componentFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	components, total, err := h.Catalog.ListComponents(r.Context(), f)
	if err != nil {
		writeServiceError(w, err, "component", "list components")
		return
	}
	if components == nil {
		components = []*models.Component{}
	}
	writeData(w, http.StatusOK, components, newPagination(f.Page, f.Limit, total))
}

// GetComponent handles GET /api/v1/components/{id}.
func (h *Handler) GetComponent(w http.ResponseWriter, r *http.Request) {
	c, err := h.Catalog.GetComponent(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, "component", "get component")
		return
	}
	writeData(w, http.StatusOK, c, nil)
}

type checkRequest struct {
	Components []models.SelectionItem `json:"components"`
}

// CheckCompatibility handles POST /api/v1/compatibility/check.
func (h *Handler) CheckCompatibility(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if !decodeBody(w, r, &req) {
		return
	}
	report, err := h.Builds.Check(r.Context(), req.Components)
	if err != nil {
		writeServiceError(w, err, "component", "check compatibility")
		return
	}
	writeData(w, http.StatusOK, report, nil)
}

// buildResponse is a build together with its compatibility report.
type buildResponse struct {
	*models.Build
	Compatibility *compat.Report `json:"compatibility"`
}

// CreateBuild handles POST /api/v1/builds.
func (h *Handler) CreateBuild(w http.ResponseWriter, r *http.Request) {
	var req builds.CreateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b, report, err := h.Builds.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "component", "create build")
		return
	}
	writeData(w, http.StatusCreated, buildResponse{Build: b, Compatibility: report}, nil)
}

// ListBuilds handles GET /api/v1/builds. Unauthenticated callers only see
// public builds.
func (h *Handler) ListBuilds(w http.ResponseWriter, r *http.Request) {
	f, err := buildFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	f.PublicOnly = !middleware.Authenticated(h.Token, r)

	list, total, err := h.Builds.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, err, "build", "list builds")
		return
	}
	if list == nil {
		list = []*models.Build{}
	}
	writeData(w, http.StatusOK, list, newPagination(f.Page, f.Limit, total))
}

// GetBuild handles GET /api/v1/builds/{id}. Private builds are reported as
// not found to unauthenticated callers.
func (h *Handler) GetBuild(w http.ResponseWriter, r *http.Request) {
	b, report, err := h.Builds.Get(r.Context(), r.PathValue("id"))
	if err == nil && !b.IsPublic && !middleware.Authenticated(h.Token, r) {
		err = sql.ErrNoRows
	}
	if err != nil {
		writeServiceError(w, err, "build", "get build")
		return
	}
	writeData(w, http.StatusOK, buildResponse{Build: b, Compatibility: report}, nil)
}

// DeleteBuild handles DELETE /api/v1/builds/{id}.
func (h *Handler) DeleteBuild(w http.ResponseWriter, r *http.Request) {
	if err := h.Builds.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, err, "build", "delete build")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func componentFilter(r *http.Request) (db.ComponentFilter, error) {
	q := r.URL.Query()
	f := db.ComponentFilter{
		Brand:  q.Get("brand"),
		Search: q.Get("search"),
		SortBy: q.Get("sortBy"),
	}

	if c := q.Get("category"); c != "" {
		cat, ok := lookupCategory(c)
		if !ok {
			return f, fmt.Errorf("invalid category %q", c)
		}
		f.Category = string(cat)
	}
	if f.SortBy != "" && !db.ValidComponentSorts[f.SortBy] {
		return f, fmt.Errorf("invalid sortBy %q", f.SortBy)
	}

	var err error
	if f.PriceMin, err = priceParam(q.Get("priceMin"), "priceMin"); err != nil {
		return f, err
	}
	if f.PriceMax, err = priceParam(q.Get("priceMax"), "priceMax"); err != nil {
		return f, err
	}
	if f.PriceMin != nil && f.PriceMax != nil && f.PriceMin.GreaterThan(*f.PriceMax) {
		return f, errors.New("priceMin must not exceed priceMax")
	}
	if v := q.Get("inStock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("invalid inStock %q", v)
		}
		f.InStock = &b
	}

	f.Page, f.Limit, err = pageParams(r, maxComponentsLimit)
	return f, err
}

func buildFilter(r *http.Request) (db.BuildFilter, error) {
	q := r.URL.Query()
	f := db.BuildFilter{
		UseCase: q.Get("useCase"),
		SortBy:  q.Get("sortBy"),
	}
	if f.UseCase != "" && !models.ValidUseCases[f.UseCase] {
		return f, fmt.Errorf("invalid useCase %q", f.UseCase)
	}
	if f.SortBy != "" && !db.ValidBuildSorts[f.SortBy] {
		return f, fmt.Errorf("invalid sortBy %q", f.SortBy)
	}
	var err error
	f.Page, f.Limit, err = pageParams(r, maxBuildsLimit)
	return f, err
}

func pageParams(r *http.Request, maxLimit int) (page, limit int, err error) {
	page, limit = 1, defaultPageLimit
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil || page < 1 {
			return 0, 0, fmt.Errorf("page must be a positive integer")
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxLimit {
			return 0, 0, fmt.Errorf("limit must be between 1 and %d", maxLimit)
		}
	}
	return page, limit, nil
}

func priceParam(v, name string) (*decimal.Decimal, error) {
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return nil, fmt.Errorf("%s must be a non-negative number", name)
	}
	return &d, nil
}

func lookupCategory(name string) (models.Category, bool) {
	for _, c := range models.Categories {
		if strings.EqualFold(string(c), name) {
			return c, true
		}
	}
	return "", false
}
