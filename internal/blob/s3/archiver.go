package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/foresightlabs/foresight/internal/domain"
)

// multipartThreshold is the ledger size above which uploads switch to the
// multipart path.
const multipartThreshold = 8 * 1024 * 1024

// Narrow store interfaces required by the archiver: only the time-ranged
// query methods it actually calls, not the full store surface.

// TradeArchiveStore provides read access to trades for archival.
type TradeArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error)
}

// ReputationArchiveStore provides read access to scoring records for
// archival.
type ReputationArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.ReputationRecord, error)
}

// settlementLedger is the archived shape per settled market: the terminal
// market state alongside its settlement record.
type settlementLedger struct {
	Market     domain.Market           `json:"market"`
	Settlement domain.SettlementRecord `json:"settlement"`
}

// ArchiveImpl implements domain.Archiver by querying the stores for aged
// records, serializing them to JSONL, uploading the result to object
// storage, and reading each upload back to verify it landed intact.
//
// Deletion of archived records from the primary store is intentionally NOT
// performed here; that is a separate explicit step after the archive has
// been verified.
type ArchiveImpl struct {
	writer      domain.BlobWriter
	reader      domain.BlobReader
	trades      TradeArchiveStore
	reputation  ReputationArchiveStore
	markets     domain.MarketStore
	settlements domain.SettlementStore
	audit       domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	trades TradeArchiveStore,
	reputation ReputationArchiveStore,
	markets domain.MarketStore,
	settlements domain.SettlementStore,
	audit domain.AuditStore,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:      writer,
		reader:      reader,
		trades:      trades,
		reputation:  reputation,
		markets:     markets,
		settlements: settlements,
		audit:       audit,
	}
}

// ArchiveTrades uploads all trades before the cutoff to
// archive/trades/YYYY-MM.jsonl and records the archival in the audit log.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	count := int64(len(trades))
	if err := a.audit.Log(ctx, "archive.trades", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive trades audit log: %w", err)
	}
	return count, nil
}

// ArchiveReputation uploads all scoring records before the cutoff to
// archive/reputation/YYYY-MM.jsonl and records the archival in the audit
// log.
func (a *ArchiveImpl) ArchiveReputation(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.reputation.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive reputation query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive reputation marshal: %w", err)
	}

	path := archivePath("reputation", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive reputation upload: %w", err)
	}

	count := int64(len(records))
	if err := a.audit.Log(ctx, "archive.reputation", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive reputation audit log: %w", err)
	}
	return count, nil
}

// ArchiveSettlements uploads one ledger object per settled market at
// archive/settlements/{marketID}.jsonl, pairing the terminal market state
// with its settlement record. Settled markets are immutable, so a market
// whose ledger object already exists is skipped; the returned count covers
// newly archived markets only.
func (a *ArchiveImpl) ArchiveSettlements(ctx context.Context) (int64, error) {
	markets, err := a.markets.List(ctx, domain.MarketStatusSettled, domain.ListOpts{})
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settlements query: %w", err)
	}

	var count int64
	for _, m := range markets {
		path := fmt.Sprintf("archive/settlements/%s.jsonl", m.ID)
		exists, err := a.reader.Exists(ctx, path)
		if err != nil {
			return count, fmt.Errorf("s3blob: archive settlement %s check: %w", m.ID, err)
		}
		if exists {
			continue
		}

		rec, err := a.settlements.GetByMarket(ctx, m.ID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return count, fmt.Errorf("s3blob: archive settlement %s query: %w", m.ID, err)
		}

		buf, err := marshalJSONL([]settlementLedger{{Market: m, Settlement: rec}})
		if err != nil {
			return count, fmt.Errorf("s3blob: archive settlement %s marshal: %w", m.ID, err)
		}

		if err := a.upload(ctx, path, buf); err != nil {
			return count, fmt.Errorf("s3blob: archive settlement %s upload: %w", m.ID, err)
		}
		count++
	}

	if count > 0 {
		if err := a.audit.Log(ctx, "archive.settlements", map[string]any{
			"count": count,
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive settlements audit log: %w", err)
		}
	}
	return count, nil
}

// Inventory lists every object under the archive prefix, giving operators a
// view of what has been archived without touching the primary stores.
func (a *ArchiveImpl) Inventory(ctx context.Context) ([]domain.BlobInfo, error) {
	infos, err := a.reader.List(ctx, "archive/")
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive inventory: %w", err)
	}
	return infos, nil
}

// upload writes data to path, switching to multipart above the size
// threshold, then reads the object back and compares lengths. A short or
// missing read-back fails the archival so nothing is ever counted as
// archived without a verified object behind it.
func (a *ArchiveImpl) upload(ctx context.Context, path string, data []byte) error {
	if int64(len(data)) >= multipartThreshold {
		if err := a.writer.PutMultipart(ctx, path, bytes.NewReader(data), minPartSize); err != nil {
			return err
		}
	} else {
		if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/x-ndjson"); err != nil {
			return err
		}
	}

	body, err := a.reader.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	defer body.Close()

	n, err := io.Copy(io.Discard, body)
	if err != nil {
		return fmt.Errorf("verify %s: %w", path, err)
	}
	if n != int64(len(data)) {
		return fmt.Errorf("verify %s: stored %d bytes, expected %d", path, n, len(data))
	}
	return nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON, one compact
// line per record.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
