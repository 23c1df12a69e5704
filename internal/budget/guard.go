package budget

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/MarketMind/internal/domain"
)

// nearLimitFraction — доля потолка, после которой допуск помечается
// флагом NearLimit.
const nearLimitFraction = 0.8

// Ceilings — потолки бюджета по тенантам.
//
// Потолок задаётся конфигурацией (тариф тенанта), не вычисляется ядром.
type Ceilings interface {
	// Ceiling возвращает потолок тенанта на биллинговый период.
	// ok=false — тенант неизвестен (допуск отклоняется).
	Ceiling(tenantID string) (float64, bool)
}

// StaticCeilings — Ceilings поверх обычного map (конфигурация, тесты).
type StaticCeilings map[string]float64

// Ceiling реализует Ceilings.
func (c StaticCeilings) Ceiling(tenantID string) (float64, bool) {
	ceiling, ok := c[tenantID]
	return ceiling, ok
}

// Decision — результат допуска стадии.
type Decision struct {
	// Allowed — можно ли выполнять стадию.
	Allowed bool

	// NearLimit — расход превысил 80% потолка (допуск при этом разрешён).
	NearLimit bool

	// Reason — причина отказа (заполняется только при !Allowed).
	Reason string

	// Spend — текущий расход периода на момент проверки.
	Spend float64

	// Ceiling — потолок тенанта.
	Ceiling float64
}

// Guard следит за расходами тенантов и отклоняет стадии,
// которые вывели бы расход за потолок периода.
//
// Гарантия мягкая: admit использует оценку стоимости ДО выполнения,
// record фиксирует факт ПОСЛЕ. Конкурентные допуски одного тенанта
// могут оба пройти до того, как любой из них запишет расход, поэтому
// небольшой перерасход в пределах одной стадии возможен и допустим.
// Это документированный инвариант, а не дефект.
type Guard struct {
	ledger   Ledger
	ceilings Ceilings
	logger   *slog.Logger

	// now подменяется в тестах.
	now func() time.Time
}

// Config — конфигурация Guard.
type Config struct {
	// Ledger — бюджетная книга.
	Ledger Ledger

	// Ceilings — потолки по тенантам.
	Ceilings Ceilings

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт новый Guard.
func New(cfg Config) *Guard {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Guard{
		ledger:   cfg.Ledger,
		ceilings: cfg.Ceilings,
		logger:   logger,
		now:      time.Now,
	}
}

// Admit проверяет, может ли тенант выполнить стадию с оценочной
// стоимостью estimate.
//
// Отказ:
//   - тенант неизвестен (нет потолка)
//   - spend + estimate превысил бы потолок
//
// Ошибка возвращается только при сбое самой книги (БД недоступна);
// в этом случае стадия не допускается.
func (g *Guard) Admit(ctx context.Context, tenantID string, estimate float64) (Decision, error) {
	ceiling, ok := g.ceilings.Ceiling(tenantID)
	if !ok {
		return Decision{
			Allowed: false,
			Reason:  fmt.Sprintf("no budget ceiling configured for tenant %s", tenantID),
		}, nil
	}

	spend, err := g.ledger.SpendSince(ctx, tenantID, domain.PeriodStart(g.now()))
	if err != nil {
		return Decision{}, fmt.Errorf("ledger spend: %w", err)
	}

	d := Decision{
		Spend:   spend,
		Ceiling: ceiling,
	}

	if spend+estimate > ceiling {
		d.Reason = fmt.Sprintf("spend %.2f + estimate %.2f exceeds ceiling %.2f",
			spend, estimate, ceiling)
		return d, nil
	}

	d.Allowed = true
	d.NearLimit = spend >= ceiling*nearLimitFraction

	if d.NearLimit {
		g.logger.Warn("tenant near budget ceiling",
			"tenant_id", tenantID,
			"spend", spend,
			"ceiling", ceiling,
		)
	}

	return d, nil
}

// Record фиксирует фактическую стоимость завершившегося шага.
//
// Вызывается ПОСЛЕ выполнения шага; ошибка записи логируется
// вызывающим и никогда не отменяет результат стадии — учёт расходов
// best-effort относительно корректности результата pipeline.
func (g *Guard) Record(ctx context.Context, entry domain.LedgerEntry) error {
	if entry.RecordedAt.IsZero() {
		entry.RecordedAt = g.now()
	}

	if err := g.ledger.Append(ctx, entry); err != nil {
		return fmt.Errorf("ledger append: %w", err)
	}

	return nil
}

// Spend возвращает текущий расход тенанта за период (для API/CLI).
func (g *Guard) Spend(ctx context.Context, tenantID string) (float64, error) {
	return g.ledger.SpendSince(ctx, tenantID, domain.PeriodStart(g.now()))
}
