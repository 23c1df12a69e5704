package budget

import (
	"context"
	"sync"
	"time"

	"github.com/shaiso/MarketMind/internal/domain"
)

// Ledger — бюджетная книга: append-only записи расходов по тенантам.
//
// Реализации: MemoryLedger (тесты, degraded-режим без БД) и
// repo.LedgerRepo (Postgres).
type Ledger interface {
	// Append добавляет запись о расходе.
	Append(ctx context.Context, entry domain.LedgerEntry) error

	// SpendSince возвращает сумму расходов тенанта начиная с since.
	SpendSince(ctx context.Context, tenantID string, since time.Time) (float64, error)
}

// MemoryLedger — потокобезопасная in-memory реализация Ledger.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
}

// NewMemoryLedger создаёт пустой MemoryLedger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

// Append реализует Ledger.
func (l *MemoryLedger) Append(_ context.Context, entry domain.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	return nil
}

// SpendSince реализует Ledger.
func (l *MemoryLedger) SpendSince(_ context.Context, tenantID string, since time.Time) (float64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var total float64
	for i := range l.entries {
		e := &l.entries[i]
		if e.TenantID != tenantID {
			continue
		}
		if e.RecordedAt.Before(since) {
			continue
		}
		total += e.CostUnits
	}
	return total, nil
}

// Len возвращает количество записей (для тестов).
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
