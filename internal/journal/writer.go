package journal

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/ledgerlink/internal/protocol"
)

// Config configures the journal writer.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
}

// Stats counts writer activity.
type Stats struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
	Skipped   int64 // frames without a usable ledger payload
}

// ledgerRow is one archived ledger close.
type ledgerRow struct {
	ID          uuid.UUID
	LedgerIndex int64
	LedgerHash  string
	TxnCount    int
	ClosedAt    int64 // ledger close time, seconds since ledger epoch
	ReceivedAt  int64 // local receive time, µs since epoch
}

// ledgerClosedWire is the payload of a ledgerClosed stream frame.
type ledgerClosedWire struct {
	LedgerIndex int64  `json:"ledger_index"`
	LedgerHash  string `json:"ledger_hash"`
	TxnCount    int    `json:"txn_count"`
	LedgerTime  int64  `json:"ledger_time"`
}

// Writer batches ledger stream events and writes them to the
// ledger_events table. Record is called from the client's listener
// fan-out; flushes happen on batch size or the flush ticker.
type Writer struct {
	cfg    Config
	logger *slog.Logger

	db *pgxpool.Pool

	batch       []ledgerRow
	batchMu     sync.Mutex
	stats       Stats
	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWriter creates a journal writer.
func NewWriter(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		cfg:    cfg,
		db:     db,
		logger: logger,
		batch:  make([]ledgerRow, 0, cfg.BatchSize),
	}
}

// Start begins the flush loop.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts down the writer and flushes what remains.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("journal writer stopped")
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
	}

	// w.ctx is cancelled by now; the final flush runs on the stop context.
	w.flush(ctx)
	return nil
}

// Stats returns current counters.
func (w *Writer) Stats() Stats {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// Record accumulates one stream frame. Frames without a ledger payload
// are counted and skipped.
func (w *Writer) Record(msg *protocol.Message) {
	row, ok := w.transform(msg)
	if !ok {
		w.batchMu.Lock()
		w.stats.Skipped++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// transform converts a parsed frame to a row.
func (w *Writer) transform(msg *protocol.Message) (ledgerRow, bool) {
	var wire ledgerClosedWire
	if err := json.Unmarshal(msg.Raw, &wire); err != nil {
		return ledgerRow{}, false
	}
	if wire.LedgerIndex == 0 || wire.LedgerHash == "" {
		return ledgerRow{}, false
	}

	return ledgerRow{
		ID:          uuid.New(),
		LedgerIndex: wire.LedgerIndex,
		LedgerHash:  wire.LedgerHash,
		TxnCount:    wire.TxnCount,
		ClosedAt:    wire.LedgerTime,
		ReceivedAt:  time.Now().UnixMicro(),
	}, true
}

// pendingBatch returns the number of rows awaiting flush.
func (w *Writer) pendingBatch() int {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return len(w.batch)
}

// flushLoop periodically flushes the batch.
func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// flush writes the current batch to the database.
func (w *Writer) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}
	batch := w.batch
	w.batch = make([]ledgerRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	conflicts, err := w.batchInsert(ctx, batch)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.stats.Errors++
		w.batchMu.Unlock()
		return
	}

	w.batchMu.Lock()
	w.stats.Inserts += int64(len(batch) - conflicts)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed ledger events",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []ledgerRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO ledger_events (id, ledger_index, ledger_hash, txn_count, closed_at, received_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (ledger_index) DO NOTHING
		`, r.ID, r.LedgerIndex, r.LedgerHash, r.TxnCount, r.ClosedAt, r.ReceivedAt)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
