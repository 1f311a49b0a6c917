package schedule

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/opensemanticworld/oswgen/internal/history"
)

// BuildLister provides recorded builds
type BuildLister interface {
	List(ctx context.Context, f history.Filter) ([]history.Build, error)
}

// StateSource provides the scheduler state
type StateSource interface {
	State() State
}

// NewRouter serves
//
//	GET /healthz  scheduler state
//	GET /builds   recorded builds, filtered by ?package= and ?limit=
//
// builds may be nil when history is disabled.
func NewRouter(state StateSource, builds BuildLister) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, state.State())
	})

	r.Get("/builds", func(w http.ResponseWriter, r *http.Request) {
		if builds == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "build history is disabled"})
			return
		}

		f := history.Filter{Package: r.URL.Query().Get("package")}
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
				return
			}
			f.Limit = n
		}

		list, err := builds.List(r.Context(), f)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, list)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
