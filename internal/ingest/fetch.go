package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/AngelCh415/buyer-rollup/internal/config"
	"github.com/AngelCh415/buyer-rollup/internal/models"
)

var fetchChunks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rollup_fetch_chunks_total",
		Help: "Record fetch chunks by entity and outcome (ok, failed, fatal).",
	},
	[]string{"entity", "outcome"},
)

// MustRegister registers the fetch collectors on reg.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(fetchChunks)
}

// Snapshot is the raw input of one rollup query.
type Snapshot struct {
	Ads         []models.AdRecord
	Conversions []models.ConversionRecord
	Sales       []models.SaleRecord
	Warnings    []ChunkWarning
}

// Fetcher loads a snapshot from a RecordSource in chunks of identifiers on a
// shared pool, so no more than the configured number of requests are in
// flight across all queries.
type Fetcher struct {
	src       RecordSource
	log       *slog.Logger
	pool      pond.Pool
	chunkSize int
}

func NewFetcher(src RecordSource, log *slog.Logger, cfg config.Config) *Fetcher {
	workers := cfg.FetchWorkers
	if workers < 1 {
		workers = 1
	}
	size := cfg.FetchChunkSize
	if size < 1 {
		size = 150
	}
	return &Fetcher{src: src, log: log, pool: pond.NewPool(workers), chunkSize: size}
}

// Close waits for running chunks and releases the pool.
func (f *Fetcher) Close() { f.pool.StopAndWait() }

// Fetch loads ads for sourceIDs in [from, to], then the conversions of those
// ads, then the sales of those conversions.
func (f *Fetcher) Fetch(ctx context.Context, sourceIDs []string, from, to time.Time) (*Snapshot, error) {
	snap := &Snapshot{}

	ads, warns, err := fetchChunked(ctx, f, "ads", sourceIDs, func(ctx context.Context, ids []string) ([]models.AdRecord, error) {
		return f.src.Ads(ctx, ids, from, to)
	})
	if err != nil {
		return nil, err
	}
	snap.Ads = ads
	snap.Warnings = append(snap.Warnings, warns...)

	adIDs := distinct(len(ads), func(i int) string { return ads[i].AdID })
	convs, warns, err := fetchChunked(ctx, f, "conversions", adIDs, func(ctx context.Context, ids []string) ([]models.ConversionRecord, error) {
		return f.src.Conversions(ctx, ids, from, to)
	})
	if err != nil {
		return nil, err
	}
	snap.Conversions = convs
	snap.Warnings = append(snap.Warnings, warns...)

	// sales close after the click, so no upper date bound
	clickIDs := distinct(len(convs), func(i int) string { return convs[i].ClickID })
	sales, warns, err := fetchChunked(ctx, f, "sales", clickIDs, func(ctx context.Context, ids []string) ([]models.SaleRecord, error) {
		return f.src.Sales(ctx, ids, from, time.Time{})
	})
	if err != nil {
		return nil, err
	}
	snap.Sales = sales
	snap.Warnings = append(snap.Warnings, warns...)

	f.log.Debug("snapshot fetched",
		slog.Int("ads", len(snap.Ads)),
		slog.Int("conversions", len(snap.Conversions)),
		slog.Int("sales", len(snap.Sales)),
		slog.Int("warnings", len(snap.Warnings)))
	return snap, nil
}

// fetchChunked runs fn once per chunk of ids. Failed chunks become warnings
// and contribute nothing; the first fatal error cancels the remaining chunks
// and is returned as a *FetchError. Rows come back in chunk order.
func fetchChunked[T any](ctx context.Context, f *Fetcher, entity string, ids []string, fn func(context.Context, []string) ([]T, error)) ([]T, []ChunkWarning, error) {
	chunks := Chunk(ids, f.chunkSize)
	if len(chunks) == 0 {
		return nil, nil, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		results  = make([][]T, len(chunks))
		warnings []ChunkWarning
		fatal    *FetchError
	)
	group := f.pool.NewGroupContext(ctx)
	groupCtx := group.Context()
	for i, c := range chunks {
		i, c := i, c
		group.Submit(func() {
			if err := groupCtx.Err(); err != nil {
				return
			}
			rows, err := fn(groupCtx, c)
			if err == nil {
				results[i] = rows
				fetchChunks.WithLabelValues(entity, "ok").Inc()
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if IsFatal(err) {
				fetchChunks.WithLabelValues(entity, "fatal").Inc()
				if fatal == nil {
					fatal = &FetchError{Entity: entity, Chunk: i, Err: err}
				}
				cancel()
				return
			}
			fetchChunks.WithLabelValues(entity, "failed").Inc()
			warnings = append(warnings, ChunkWarning{Entity: entity, Chunk: i, Size: len(c), Err: err.Error()})
			f.log.Warn("chunk fetch failed, treated as empty",
				slog.String("entity", entity),
				slog.Int("chunk", i),
				slog.Int("size", len(c)),
				slog.String("err", err.Error()))
		})
	}
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		mu.Lock()
		if fatal == nil {
			fatal = &FetchError{Entity: entity, Chunk: -1, Err: err}
		}
		mu.Unlock()
	}
	if fatal != nil {
		return nil, nil, fatal
	}
	// el contexto del llamador se canceló sin que ningún chunk fallara
	if err := ctx.Err(); err != nil {
		return nil, nil, &FetchError{Entity: entity, Chunk: -1, Err: err}
	}

	var out []T
	for _, rows := range results {
		out = append(out, rows...)
	}
	// orden determinista
	sort.Slice(warnings, func(i, j int) bool { return warnings[i].Chunk < warnings[j].Chunk })
	return out, warnings, nil
}

// Chunk splits ids into consecutive slices of at most size elements.
func Chunk(ids []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

func distinct(n int, key func(i int) string) []string {
	seen := make(map[string]struct{}, n)
	var out []string
	for i := 0; i < n; i++ {
		k := key(i)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

