package budget

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/MarketMind/internal/domain"
)

func newTestGuard(ceilings StaticCeilings) (*Guard, *MemoryLedger) {
	ledger := NewMemoryLedger()
	g := New(Config{
		Ledger:   ledger,
		Ceilings: ceilings,
	})
	return g, ledger
}

func TestAdmit_WithinCeiling(t *testing.T) {
	g, _ := newTestGuard(StaticCeilings{"acme": 100})

	d, err := g.Admit(context.Background(), "acme", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !d.Allowed {
		t.Errorf("expected allowed, got denied: %s", d.Reason)
	}
	if d.NearLimit {
		t.Error("expected NearLimit=false at zero spend")
	}
}

func TestAdmit_ExceedsCeiling(t *testing.T) {
	g, _ := newTestGuard(StaticCeilings{"acme": 100})

	// Накручиваем расход до 95
	if err := g.Record(context.Background(), domain.LedgerEntry{
		ID:        uuid.New(),
		TenantID:  "acme",
		RunID:     uuid.New(),
		Stage:     "research",
		CostUnits: 95,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	d, err := g.Admit(context.Background(), "acme", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.Allowed {
		t.Error("expected denied: 95 + 10 > 100")
	}
	if d.Reason == "" {
		t.Error("expected reason to be filled")
	}
}

func TestAdmit_ExactlyAtCeiling(t *testing.T) {
	// spend + estimate == ceiling — допускается (превышение строгое)
	g, _ := newTestGuard(StaticCeilings{"acme": 100})

	if err := g.Record(context.Background(), domain.LedgerEntry{
		ID:        uuid.New(),
		TenantID:  "acme",
		RunID:     uuid.New(),
		CostUnits: 90,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	d, err := g.Admit(context.Background(), "acme", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !d.Allowed {
		t.Errorf("expected allowed at exact ceiling, got denied: %s", d.Reason)
	}
}

func TestAdmit_UnknownTenant(t *testing.T) {
	g, _ := newTestGuard(StaticCeilings{"acme": 100})

	d, err := g.Admit(context.Background(), "ghost", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if d.Allowed {
		t.Error("expected unknown tenant to be denied")
	}
}

func TestAdmit_NearLimit(t *testing.T) {
	g, _ := newTestGuard(StaticCeilings{"acme": 100})

	if err := g.Record(context.Background(), domain.LedgerEntry{
		ID:        uuid.New(),
		TenantID:  "acme",
		RunID:     uuid.New(),
		CostUnits: 85,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	d, err := g.Admit(context.Background(), "acme", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !d.Allowed {
		t.Fatalf("expected allowed, got denied: %s", d.Reason)
	}
	if !d.NearLimit {
		t.Error("expected NearLimit at 85%% of ceiling")
	}
}

func TestAdmit_IgnoresOtherTenants(t *testing.T) {
	g, _ := newTestGuard(StaticCeilings{"acme": 100, "globex": 100})

	if err := g.Record(context.Background(), domain.LedgerEntry{
		ID:        uuid.New(),
		TenantID:  "globex",
		RunID:     uuid.New(),
		CostUnits: 200,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	d, err := g.Admit(context.Background(), "acme", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !d.Allowed {
		t.Errorf("spend of globex must not affect acme: %s", d.Reason)
	}
}

func TestAdmit_PreviousPeriodNotCounted(t *testing.T) {
	g, ledger := newTestGuard(StaticCeilings{"acme": 100})

	// "Сейчас" — 15 марта; расход прошлого месяца не считается
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	if err := ledger.Append(context.Background(), domain.LedgerEntry{
		ID:         uuid.New(),
		TenantID:   "acme",
		RunID:      uuid.New(),
		CostUnits:  95,
		RecordedAt: time.Date(2026, time.February, 20, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	d, err := g.Admit(context.Background(), "acme", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !d.Allowed {
		t.Errorf("previous period spend must not count: %s", d.Reason)
	}
	if d.Spend != 0 {
		t.Errorf("expected zero spend this period, got %v", d.Spend)
	}
}

func TestRecord_FillsRecordedAt(t *testing.T) {
	g, ledger := newTestGuard(StaticCeilings{"acme": 100})

	if err := g.Record(context.Background(), domain.LedgerEntry{
		ID:        uuid.New(),
		TenantID:  "acme",
		RunID:     uuid.New(),
		CostUnits: 1,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	if ledger.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", ledger.Len())
	}

	spend, err := g.Spend(context.Background(), "acme")
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
	if spend != 1 {
		t.Errorf("expected spend 1, got %v", spend)
	}
}
