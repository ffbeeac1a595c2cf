package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AngelCh415/buyer-rollup/internal/ingest"
	"github.com/AngelCh415/buyer-rollup/internal/metrics"
	"github.com/AngelCh415/buyer-rollup/internal/period"
	"github.com/AngelCh415/buyer-rollup/internal/utils"
	"github.com/AngelCh415/buyer-rollup/internal/zones"
)

// ReadyFunc reports whether the backing stores answer. Nil means always ready.
type ReadyFunc func(ctx context.Context) error

func NewRouter(log *slog.Logger, svc *metrics.Service, g prometheus.Gatherer, ready ReadyFunc) http.Handler {
	mux := chi.NewRouter()
	mux.Use(utils.RequestID)
	mux.Use(utils.Logger(log))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
	mux.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				http.Error(w, "not ready: "+err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(200)
		w.Write([]byte("ready"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	mux.Get("/rollup", func(w http.ResponseWriter, r *http.Request) {
		q, err := svc.ParseQuery(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		res, err := svc.Rollup(r.Context(), q)
		if err != nil {
			fail(w, log, r, err)
			return
		}
		writeJSON(w, res)
	})

	mux.Get("/rollup/rows", func(w http.ResponseWriter, r *http.Request) {
		q, err := svc.ParseQuery(r.URL.Query())
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		res, err := svc.Rows(r.Context(), q)
		if err != nil {
			fail(w, log, r, err)
			return
		}
		writeJSON(w, res)
	})

	mux.Get("/zones/classify", func(w http.ResponseWriter, r *http.Request) {
		article := r.URL.Query().Get("article")
		if article == "" {
			http.Error(w, "article required", 400)
			return
		}
		cpl, err := metrics.ParseCPL(r.URL.Query().Get("cpl"))
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		z, ok, err := svc.Classify(r.Context(), article, cpl)
		if err != nil {
			fail(w, log, r, err)
			return
		}
		writeJSON(w, map[string]any{"article": article, "cpl": cpl, "zone": z, "classified": ok})
	})

	return mux
}

// fail maps service errors to status codes.
func fail(w http.ResponseWriter, log *slog.Logger, r *http.Request, err error) {
	var fe *ingest.FetchError
	switch {
	case errors.Is(err, zones.ErrUnordered), errors.Is(err, period.ErrNegativeRange):
		http.Error(w, err.Error(), 400)
	case errors.As(err, &fe):
		http.Error(w, err.Error(), 502)
	default:
		log.Error("rollup failed", slog.String("rid", utils.RID(r.Context())), slog.String("err", err.Error()))
		http.Error(w, "internal error", 500)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.Encode(v)
}
