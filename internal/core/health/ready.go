package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// ShopCounter is satisfied by every shop store.
type ShopCounter interface {
	Count(ctx context.Context) (int, error)
}

const readinessTimeout = 2 * time.Second

// Readiness reports ready once the shop store answers.
func Readiness(sc ShopCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		type resp struct {
			Status string `json:"status"`
			Shops  *int   `json:"shops,omitempty"`
			Error  string `json:"error,omitempty"`
		}

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		out := resp{Status: "not_ready"}
		n, err := sc.Count(ctx)
		if err != nil {
			out.Error = err.Error()
		} else {
			out.Status = "ready"
			out.Shops = &n
		}

		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
