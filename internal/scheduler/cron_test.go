package scheduler

import (
	"testing"
	"time"

	"github.com/shaiso/MarketMind/internal/domain"
)

func TestCalculateNextDueCron(t *testing.T) {
	sched := &domain.Schedule{
		CronExpr: "0 9 * * 1", // каждый понедельник в 9:00
		Timezone: "UTC",
	}

	// Среда 2026-01-07 12:00 UTC
	from := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("CalculateNextDue returned error: %v", err)
	}

	// Следующий понедельник: 2026-01-12 09:00 UTC
	want := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("next due = %v, want %v", next, want)
	}
}

func TestCalculateNextDueInterval(t *testing.T) {
	sched := &domain.Schedule{
		IntervalSec: 3600,
		Timezone:    "UTC",
	}

	from := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("CalculateNextDue returned error: %v", err)
	}

	want := from.Add(time.Hour)
	if !next.Equal(want) {
		t.Errorf("next due = %v, want %v", next, want)
	}
}

func TestCalculateNextDueInvalidTimezoneFallsBackToUTC(t *testing.T) {
	sched := &domain.Schedule{
		IntervalSec: 60,
		Timezone:    "Not/AZone",
	}

	from := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("CalculateNextDue returned error: %v", err)
	}

	want := from.Add(time.Minute)
	if !next.Equal(want) {
		t.Errorf("next due = %v, want %v", next, want)
	}
}

func TestCalculateNextDueNeitherCronNorInterval(t *testing.T) {
	sched := &domain.Schedule{Timezone: "UTC"}

	if _, err := CalculateNextDue(sched, time.Now()); err == nil {
		t.Error("expected error for schedule without cron or interval")
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("0 9 * * 1"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := ValidateCronExpr("not a cron"); err == nil {
		t.Error("invalid expression accepted")
	}
}
