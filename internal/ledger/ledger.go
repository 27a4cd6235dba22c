// Package ledger keeps the append-only, newest-first history of verification records.
package ledger

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/goodnatureofminers/smartinvoice/internal/model"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no record carries the requested invoice.
var ErrNotFound = errors.New("record not found")

// Ledger is safe for concurrent use. Appends are serialized; readers always see
// a complete snapshot from before or after an append.
type Ledger struct {
	store   Store
	metrics Metrics
	logger  *zap.Logger

	appendMu sync.Mutex

	mu      sync.RWMutex
	records []model.VerificationRecord
}

// Open loads persisted history from store. An unreadable or corrupt store is
// logged and treated as an empty ledger.
func Open(store Store, metrics Metrics, logger *zap.Logger) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("ledger store is required")
	}
	if metrics == nil {
		return nil, errors.New("ledger metrics is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	records, err := store.Load()
	if err != nil {
		logger.Warn("ledger history unreadable, starting empty", zap.Error(err))
		records = nil
	}
	records = normalize(records)
	metrics.ObserveLoad(err, len(records))
	logger.Info("ledger opened", zap.Int("records", len(records)))

	return &Ledger{
		store:   store,
		metrics: metrics,
		logger:  logger,
		records: records,
	}, nil
}

// Append assigns the next invoice number, builds the record through build and
// stores it as the newest entry. Assignment and append happen under one lock.
// The record is kept even when persisting fails; the returned error only
// reports that the backing store could not be written.
func (l *Ledger) Append(build func(invoice int) model.VerificationRecord) (rec model.VerificationRecord, err error) {
	l.appendMu.Lock()
	defer l.appendMu.Unlock()

	started := time.Now()
	current := l.snapshot()
	defer func() {
		l.metrics.ObserveAppend(err, len(current)+1, started)
	}()

	invoice := nextInvoice(current)
	rec = build(invoice)
	rec.Invoice = invoice

	next := make([]model.VerificationRecord, 0, len(current)+1)
	next = append(next, rec)
	next = append(next, current...)

	if saveErr := l.store.Save(next); saveErr != nil {
		l.logger.Error("ledger persist failed", zap.Int("invoice", invoice), zap.Error(saveErr))
		err = fmt.Errorf("persist invoice %d: %w", invoice, saveErr)
	}

	l.mu.Lock()
	l.records = next
	l.mu.Unlock()

	return rec, err
}

// All returns every record, newest first.
func (l *Ledger) All() []model.VerificationRecord {
	return slices.Clone(l.snapshot())
}

// ByInvoice returns the record with the given invoice number or ErrNotFound.
func (l *Ledger) ByInvoice(invoice int) (model.VerificationRecord, error) {
	for _, rec := range l.snapshot() {
		if rec.Invoice == invoice {
			return rec, nil
		}
	}
	return model.VerificationRecord{}, fmt.Errorf("invoice %d: %w", invoice, ErrNotFound)
}

// Len returns the number of stored records.
func (l *Ledger) Len() int {
	return len(l.snapshot())
}

// snapshot returns the current backing slice. Appends replace the slice rather
// than writing into it, so the result is safe to read without holding mu.
func (l *Ledger) snapshot() []model.VerificationRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.records
}

// nextInvoice is count+1. A hand-edited history whose newest invoice is
// already past that count continues after it so numbers never collide.
func nextInvoice(records []model.VerificationRecord) int {
	invoice := len(records) + 1
	if len(records) > 0 && records[0].Invoice >= invoice {
		invoice = records[0].Invoice + 1
	}
	return invoice
}

func normalize(records []model.VerificationRecord) []model.VerificationRecord {
	if len(records) == 0 {
		return []model.VerificationRecord{}
	}
	out := slices.Clone(records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Invoice > out[j].Invoice
	})
	return out
}
