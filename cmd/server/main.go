package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/AngelCh415/buyer-rollup/internal/config"
	"github.com/AngelCh415/buyer-rollup/internal/httpx"
	"github.com/AngelCh415/buyer-rollup/internal/ingest"
	"github.com/AngelCh415/buyer-rollup/internal/metrics"
	"github.com/AngelCh415/buyer-rollup/internal/store"
	"github.com/AngelCh415/buyer-rollup/internal/utils"
)

type sources struct {
	grants  ingest.GrantSource
	zones   ingest.ZoneSource
	ref     ingest.ReferenceSource
	records ingest.RecordSource
	ready   httpx.ReadyFunc
}

func main() {
	// .env es opcional
	_ = godotenv.Load()
	cfg := config.FromEnv()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	decimal.MarshalJSONWithoutQuotes = true

	utils.MustRegister(prometheus.DefaultRegisterer)
	ingest.MustRegister(prometheus.DefaultRegisterer)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	src, err := openSources(cfg, logger)
	if err != nil {
		logger.Error("sources", slog.String("err", err.Error()))
		os.Exit(1)
	}

	fetcher := ingest.NewFetcher(src.records, logger, cfg)
	defer fetcher.Close()
	svc := metrics.NewService(src.grants, src.zones, src.ref, fetcher, logger, cfg)

	r := httpx.NewRouter(logger, svc, prometheus.DefaultGatherer, src.ready)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting server",
		slog.String("port", cfg.Port),
		slog.String("timezone", cfg.Location.String()),
		slog.Int("fetch_workers", cfg.FetchWorkers),
		slog.Int("fetch_chunk_size", cfg.FetchChunkSize))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

// openSources picks Postgres when DATABASE_URL is set, else the reference
// file, else an empty in-memory store. Records come from the reporting API
// when RECORDS_API_URL is set.
func openSources(cfg config.Config, log *slog.Logger) (sources, error) {
	var s sources
	mem := store.NewMemoryStore()
	switch {
	case cfg.DatabaseURL != "":
		pg, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return s, err
		}
		s.grants, s.zones, s.ref, s.records = pg, pg, pg, pg
		s.ready = func(ctx context.Context) error { return pg.Ping(ctx) }
		log.Info("using postgres store")
	case cfg.ReferenceFile != "":
		ref, err := config.LoadReference(cfg.ReferenceFile, cfg.Location)
		if err != nil {
			return s, err
		}
		if mem, err = store.FromReference(ref); err != nil {
			return s, err
		}
		fallthrough
	default:
		s.grants, s.zones, s.ref, s.records = mem, mem, mem, mem
		log.Warn("no database configured, using in-memory store", slog.String("reference_file", cfg.ReferenceFile))
	}

	if cfg.RecordsURL != "" {
		hs := ingest.NewHTTPSource(ingest.NewHTTPClient(cfg.HTTPTimeout), cfg)
		s.records = hs
		// tipos de cambio y costes también vienen del API
		if cfg.DatabaseURL == "" && cfg.ReferenceFile == "" {
			s.ref = hs
		}
	}
	return s, nil
}
