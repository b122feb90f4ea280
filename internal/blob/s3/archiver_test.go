package s3blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foresightlabs/foresight/internal/domain"
	"github.com/foresightlabs/foresight/internal/store/memory"
)

// fakeBlobStore backs both blob ports with an in-memory object map so the
// archiver's upload, verification and skip logic can be tested without a
// bucket. dropPuts simulates an upload that reports success but stores
// nothing, which the read-back verification must catch.
type fakeBlobStore struct {
	objects    map[string][]byte
	dropPuts   bool
	multiparts int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}}
}

func (f *fakeBlobStore) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if f.dropPuts {
		return nil
	}
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[path] = buf
	return nil
}

func (f *fakeBlobStore) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	f.multiparts++
	return f.Put(ctx, path, data, "")
}

func (f *fakeBlobStore) Get(_ context.Context, path string) (io.ReadCloser, error) {
	buf, ok := f.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(buf)), nil
}

func (f *fakeBlobStore) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var infos []domain.BlobInfo
	for path, buf := range f.objects {
		if strings.HasPrefix(path, prefix) {
			infos = append(infos, domain.BlobInfo{Path: path, Size: int64(len(buf))})
		}
	}
	return infos, nil
}

func (f *fakeBlobStore) Exists(_ context.Context, path string) (bool, error) {
	_, ok := f.objects[path]
	return ok, nil
}

var (
	_ domain.BlobWriter = (*fakeBlobStore)(nil)
	_ domain.BlobReader = (*fakeBlobStore)(nil)
)

func newTestArchiver(t *testing.T) (*ArchiveImpl, *fakeBlobStore, domain.TxStores) {
	t.Helper()
	blobs := newFakeBlobStore()
	stores := memory.New().Stores()
	arch := NewArchiver(blobs, blobs,
		stores.Trades, stores.Reputation, stores.Markets, stores.Settlements, stores.Audit)
	return arch, blobs, stores
}

func settledMarket(id string, outcome int) domain.Market {
	now := time.Now().UTC()
	return domain.Market{
		ID:              id,
		Title:           "Will the launch slip to Q2?",
		Outcomes:        []string{"Yes", "No"},
		Mechanism:       domain.MechanismParimutuel,
		Pool:            []float64{60, 40},
		Status:          domain.MarketStatusSettled,
		ResolvedOutcome: &outcome,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestArchiveTradesUploadsLedgerAndAudits(t *testing.T) {
	ctx := context.Background()
	arch, blobs, stores := newTestArchiver(t)

	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	old := cutoff.Add(-48 * time.Hour)
	require.NoError(t, stores.Trades.Create(ctx, domain.Trade{
		ID: "t1", UserID: "u1", MarketID: "m1", Outcome: 0, Quantity: 10, Cost: 10, CreatedAt: old,
	}))
	require.NoError(t, stores.Trades.Create(ctx, domain.Trade{
		ID: "t2", UserID: "u2", MarketID: "m1", Outcome: 1, Quantity: 5, Cost: 5, CreatedAt: old.Add(time.Hour),
	}))
	// Recent trade stays out of the ledger.
	require.NoError(t, stores.Trades.Create(ctx, domain.Trade{
		ID: "t3", UserID: "u1", MarketID: "m1", Outcome: 0, Quantity: 1, Cost: 1, CreatedAt: cutoff.Add(time.Hour),
	}))

	count, err := arch.ArchiveTrades(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	ledger, ok := blobs.objects["archive/trades/2026-03.jsonl"]
	require.True(t, ok, "expected trades ledger object")
	lines := strings.Split(strings.TrimRight(string(ledger), "\n"), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"id":"t1"`)
	assert.Contains(t, lines[1], `"id":"t2"`)
	assert.Zero(t, blobs.multiparts, "small ledger should use a single put")

	entries, err := stores.Audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "archive.trades", entries[0].Event)
}

func TestArchiveTradesFailsWhenUploadNotReadable(t *testing.T) {
	ctx := context.Background()
	arch, blobs, stores := newTestArchiver(t)
	blobs.dropPuts = true

	cutoff := time.Now().UTC()
	require.NoError(t, stores.Trades.Create(ctx, domain.Trade{
		ID: "t1", UserID: "u1", MarketID: "m1", Quantity: 10, Cost: 10, CreatedAt: cutoff.Add(-time.Hour),
	}))

	count, err := arch.ArchiveTrades(ctx, cutoff)
	require.Error(t, err)
	assert.Zero(t, count)
	assert.Contains(t, err.Error(), "verify")

	// A failed archival must not be logged as done.
	entries, err := stores.Audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestArchiveTradesEmptyUploadsNothing(t *testing.T) {
	ctx := context.Background()
	arch, blobs, _ := newTestArchiver(t)

	count, err := arch.ArchiveTrades(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, blobs.objects)
}

func TestArchiveReputationUploadsLedger(t *testing.T) {
	ctx := context.Background()
	arch, blobs, stores := newTestArchiver(t)

	cutoff := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, stores.Reputation.Create(ctx, domain.ReputationRecord{
		ID: "r1", UserID: "u1", MarketID: "m1", Brier: 0.09, Delta: 0.82, CreatedAt: cutoff.Add(-time.Hour),
	}))

	count, err := arch.ArchiveReputation(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	ledger, ok := blobs.objects["archive/reputation/2026-05.jsonl"]
	require.True(t, ok, "expected reputation ledger object")
	assert.Contains(t, string(ledger), `"brier":0.09`)
}

func TestArchiveSettlementsPairsMarketWithRecord(t *testing.T) {
	ctx := context.Background()
	arch, blobs, stores := newTestArchiver(t)

	require.NoError(t, stores.Markets.Create(ctx, settledMarket("m1", 0)))
	require.NoError(t, stores.Settlements.Create(ctx, domain.SettlementRecord{
		ID: "s1", MarketID: "m1", Outcome: 0, TotalPool: 100, TotalPaid: 100, SettledAt: time.Now().UTC(),
	}))

	count, err := arch.ArchiveSettlements(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	ledger, ok := blobs.objects["archive/settlements/m1.jsonl"]
	require.True(t, ok, "expected settlement ledger object")
	assert.Contains(t, string(ledger), `"market"`)
	assert.Contains(t, string(ledger), `"settlement"`)
	assert.Contains(t, string(ledger), `"id":"s1"`)
}

func TestArchiveSettlementsSkipsAlreadyArchived(t *testing.T) {
	ctx := context.Background()
	arch, blobs, stores := newTestArchiver(t)

	require.NoError(t, stores.Markets.Create(ctx, settledMarket("m1", 1)))
	require.NoError(t, stores.Settlements.Create(ctx, domain.SettlementRecord{
		ID: "s1", MarketID: "m1", Outcome: 1, TotalPool: 50, TotalPaid: 50, SettledAt: time.Now().UTC(),
	}))

	count, err := arch.ArchiveSettlements(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	archived := blobs.objects["archive/settlements/m1.jsonl"]

	// Second pass finds the ledger in place and leaves it alone.
	count, err = arch.ArchiveSettlements(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, archived, blobs.objects["archive/settlements/m1.jsonl"])

	entries, err := stores.Audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no-op pass should not add an audit entry")
}

func TestArchiveSettlementsSkipsMarketsWithoutRecord(t *testing.T) {
	ctx := context.Background()
	arch, blobs, stores := newTestArchiver(t)

	require.NoError(t, stores.Markets.Create(ctx, settledMarket("m1", 0)))

	count, err := arch.ArchiveSettlements(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, blobs.objects)
}

func TestInventoryListsArchiveObjects(t *testing.T) {
	ctx := context.Background()
	arch, blobs, stores := newTestArchiver(t)

	cutoff := time.Now().UTC()
	require.NoError(t, stores.Trades.Create(ctx, domain.Trade{
		ID: "t1", UserID: "u1", MarketID: "m1", Quantity: 2, Cost: 2, CreatedAt: cutoff.Add(-time.Hour),
	}))
	_, err := arch.ArchiveTrades(ctx, cutoff)
	require.NoError(t, err)

	infos, err := arch.Inventory(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, int64(len(blobs.objects[infos[0].Path])), infos[0].Size)
	assert.True(t, strings.HasPrefix(infos[0].Path, "archive/trades/"))
}

func TestUploadUsesMultipartForLargeLedgers(t *testing.T) {
	ctx := context.Background()
	arch, blobs, _ := newTestArchiver(t)

	big := bytes.Repeat([]byte("x"), multipartThreshold)
	require.NoError(t, arch.upload(ctx, "archive/trades/big.jsonl", big))
	assert.Equal(t, 1, blobs.multiparts)
	assert.Len(t, blobs.objects["archive/trades/big.jsonl"], multipartThreshold)
}
