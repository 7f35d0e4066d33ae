package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/model"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/observability"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/search"
)

const (
	RouteShops  = "/api/shops"
	RouteSearch = "/api/shops/search"

	// upper bound accepted for maxDistanceKm
	maxRadiusKm = 500
)

// Searcher serves validated proximity queries.
type Searcher interface {
	Search(ctx context.Context, q model.SearchQuery) (model.SearchResult, error)
}

type errorBody struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// HandleShops lists shops for an optional service filter, without distances.
func HandleShops(logger *slog.Logger, s Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, RouteShops, sw.code, time.Since(start).Seconds())
		}()

		svc, err := model.ParseServiceFilter(serviceParam(r))
		if err != nil {
			writeJSON(sw, r, http.StatusBadRequest, errorBody{Message: err.Error(), Field: "service"})
			return
		}
		serve(logger, sw, r, s, model.SearchQuery{Service: svc})
	}
}

// HandleSearch validates query params and calls the searcher.
func HandleSearch(logger *slog.Logger, s Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		defer func() {
			observability.ObserveHTTP(r.Method, RouteSearch, sw.code, time.Since(start).Seconds())
		}()

		q, field, err := ParseSearchRequest(r)
		if err != nil {
			writeJSON(sw, r, http.StatusBadRequest, errorBody{Message: err.Error(), Field: field})
			return
		}
		serve(logger, sw, r, s, q)
	}
}

func serve(logger *slog.Logger, w *statusWriter, r *http.Request, s Searcher, q model.SearchQuery) {
	res, err := s.Search(r.Context(), q)
	if err != nil {
		var ve *search.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, r, http.StatusBadRequest, errorBody{Message: ve.Message, Field: ve.Field})
			return
		}
		logger.ErrorContext(r.Context(), "search failed", "err", err)
		writeJSON(w, r, http.StatusInternalServerError, errorBody{Message: "internal server error"})
		return
	}

	w.Header().Set("X-Search-Ranked", strconv.FormatBool(res.Ranked))
	shops := res.Shops
	if shops == nil {
		shops = []model.RankedShop{}
	}
	writeJSON(w, r, http.StatusOK, shops)
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// ParseSearchRequest returns the offending field name with any error.
func ParseSearchRequest(r *http.Request) (model.SearchQuery, string, error) {
	qs := r.URL.Query()

	svc, err := model.ParseServiceFilter(serviceParam(r))
	if err != nil {
		return model.SearchQuery{}, "service", err
	}

	var maxKm float64
	if raw := strings.TrimSpace(qs.Get("maxDistanceKm")); raw != "" {
		maxKm, err = parseRadius(raw)
		if err != nil {
			return model.SearchQuery{}, "maxDistanceKm", fmt.Errorf("invalid maxDistanceKm: %w", err)
		}
	}

	return model.SearchQuery{
		Service:       svc,
		PostalCode:    qs.Get("postalCode"),
		MaxDistanceKm: maxKm,
	}, "", nil
}

// "search" is accepted as an alias used by older clients
func serviceParam(r *http.Request) string {
	qs := r.URL.Query()
	if v := qs.Get("service"); v != "" {
		return v
	}
	return qs.Get("search")
}

func parseRadius(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	if math.IsNaN(f) || f <= 0 || f > maxRadiusKm {
		return 0, fmt.Errorf("must be in (0,%d]", maxRadiusKm)
	}
	return f, nil
}

// writes v as JSON with a content ETag; a matching If-None-Match gets 304
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, "encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusOK {
		etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(buf.Bytes()))
		w.Header().Set("ETag", etag)
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
