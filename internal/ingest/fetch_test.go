package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/buyer-rollup/internal/config"
	"github.com/AngelCh415/buyer-rollup/internal/models"
)

type fakeSource struct {
	mu       sync.Mutex
	calls    map[string]int
	inFlight int32
	maxSeen  int32
	delay    time.Duration
	failAds  func(ids []string) error
}

func (s *fakeSource) enter(kind string) func() {
	s.mu.Lock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[kind]++
	s.mu.Unlock()
	n := atomic.AddInt32(&s.inFlight, 1)
	for {
		m := atomic.LoadInt32(&s.maxSeen)
		if n <= m || atomic.CompareAndSwapInt32(&s.maxSeen, m, n) {
			break
		}
	}
	time.Sleep(s.delay)
	return func() { atomic.AddInt32(&s.inFlight, -1) }
}

// every source id yields one ad "ad-<id>", every ad one conversion "click-<ad>"
func (s *fakeSource) Ads(ctx context.Context, ids []string, from, to time.Time) ([]models.AdRecord, error) {
	defer s.enter("ads")()
	if s.failAds != nil {
		if err := s.failAds(ids); err != nil {
			return nil, err
		}
	}
	var out []models.AdRecord
	for _, id := range ids {
		out = append(out, models.AdRecord{SourceID: id, AdID: "ad-" + id, Date: from})
	}
	return out, nil
}

func (s *fakeSource) Conversions(ctx context.Context, ids []string, from, to time.Time) ([]models.ConversionRecord, error) {
	defer s.enter("conversions")()
	var out []models.ConversionRecord
	for _, id := range ids {
		out = append(out, models.ConversionRecord{AdvID: id, ClickID: "click-" + id})
	}
	return out, nil
}

func (s *fakeSource) Sales(ctx context.Context, ids []string, from, to time.Time) ([]models.SaleRecord, error) {
	defer s.enter("sales")()
	var out []models.SaleRecord
	for _, id := range ids {
		if strings.HasSuffix(id, "0") {
			continue
		}
		out = append(out, models.SaleRecord{ClickID: id, OrderStatus: "2"})
	}
	return out, nil
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func sourceIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('A'+i/10)) + string(rune('0'+i%10))
	}
	return out
}

func TestChunk(t *testing.T) {
	assert.Nil(t, Chunk(nil, 3))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, Chunk([]string{"a", "b", "c"}, 2))
	assert.Len(t, Chunk(sourceIDs(10), 0), 10)
}

func TestFetchChunksAndKeepsOrder(t *testing.T) {
	src := &fakeSource{delay: 5 * time.Millisecond}
	f := NewFetcher(src, quietLogger(), config.Config{FetchWorkers: 3, FetchChunkSize: 4})
	defer f.Close()

	ids := sourceIDs(22)
	snap, err := f.Fetch(context.Background(), ids, time.Now(), time.Now())
	require.NoError(t, err)
	require.Len(t, snap.Ads, 22)
	for i, a := range snap.Ads {
		assert.Equal(t, ids[i], a.SourceID)
	}
	assert.Len(t, snap.Conversions, 22)
	// click ids ending in 0 have no sale
	assert.Len(t, snap.Sales, 22-3)
	assert.Empty(t, snap.Warnings)

	assert.Equal(t, 6, src.calls["ads"])
	assert.Equal(t, 6, src.calls["conversions"])
	assert.LessOrEqual(t, atomic.LoadInt32(&src.maxSeen), int32(3))
}

func TestFetchToleratesChunkFailures(t *testing.T) {
	src := &fakeSource{failAds: func(ids []string) error {
		if ids[0] == "A4" {
			return errors.New("upstream 502")
		}
		return nil
	}}
	f := NewFetcher(src, quietLogger(), config.Config{FetchWorkers: 2, FetchChunkSize: 4})
	defer f.Close()

	snap, err := f.Fetch(context.Background(), sourceIDs(12), time.Now(), time.Now())
	require.NoError(t, err)
	assert.Len(t, snap.Ads, 8)
	require.Len(t, snap.Warnings, 1)
	w := snap.Warnings[0]
	assert.Equal(t, "ads", w.Entity)
	assert.Equal(t, 1, w.Chunk)
	assert.Equal(t, 4, w.Size)
	assert.Contains(t, w.Err, "502")
}

func TestFetchAbortsOnFatal(t *testing.T) {
	src := &fakeSource{failAds: func(ids []string) error {
		if ids[0] == "A2" {
			return Fatal(errors.New("token revoked"))
		}
		return nil
	}}
	f := NewFetcher(src, quietLogger(), config.Config{FetchWorkers: 2, FetchChunkSize: 2})
	defer f.Close()

	snap, err := f.Fetch(context.Background(), sourceIDs(10), time.Now(), time.Now())
	assert.Nil(t, snap)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "ads", fe.Entity)
	assert.Equal(t, 1, fe.Chunk)
	assert.Contains(t, err.Error(), "token revoked")
}

func TestFetchCancelledContext(t *testing.T) {
	f := NewFetcher(&fakeSource{}, quietLogger(), config.Config{FetchWorkers: 1, FetchChunkSize: 2})
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Fetch(ctx, sourceIDs(4), time.Now(), time.Now())
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchEmpty(t *testing.T) {
	f := NewFetcher(&fakeSource{}, quietLogger(), config.Config{})
	defer f.Close()

	snap, err := f.Fetch(context.Background(), nil, time.Now(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, snap.Ads)
	assert.Empty(t, snap.Sales)
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(errors.New("x")))
	assert.True(t, IsFatal(Fatal(errors.New("x"))))
	assert.True(t, IsFatal(context.DeadlineExceeded))
	assert.Nil(t, Fatal(nil))
}
