package harness_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"kvcore/config"
	"kvcore/database"
	"kvcore/harness"
	"kvcore/lib/logger"
)

func newMemory(t *testing.T) *database.DB {
	t.Helper()
	logger.Discard()
	props := config.Default()
	db := database.NewStandaloneDatabase(&props)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoad_OperationBudget(t *testing.T) {
	tests := []struct {
		name string
		cfg  harness.LoadConfig
	}{
		{"single client", harness.LoadConfig{Clients: 1, Operations: 500, KeySpace: 50, WriteRatio: 0.5}},
		{"uneven batches", harness.LoadConfig{Clients: 4, Operations: 1001, KeySpace: 10, WriteRatio: 0.3, Seed: 7}},
		{"writes only", harness.LoadConfig{Clients: 8, Operations: 2000, KeySpace: 100, WriteRatio: 1}},
		{"reads only", harness.LoadConfig{Clients: 2, Operations: 300, KeySpace: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := harness.Load(context.Background(), newMemory(t), tt.cfg)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if report.Operations != int64(tt.cfg.Operations) {
				t.Errorf("Operations = %d, want %d", report.Operations, tt.cfg.Operations)
			}
			if report.Errors != 0 {
				t.Errorf("Errors = %d, want 0", report.Errors)
			}
			if report.Clients != tt.cfg.Clients {
				t.Errorf("Clients = %d, want %d", report.Clients, tt.cfg.Clients)
			}
			if _, err := uuid.Parse(report.RunID); err != nil {
				t.Errorf("RunID %q is not a uuid: %v", report.RunID, err)
			}
			l := report.Latency
			if !(l.Min <= l.P50 && l.P50 <= l.P90 && l.P90 <= l.P99 && l.P99 <= l.Max) {
				t.Errorf("latency not ordered: %+v", l)
			}
			if l.Mean < l.Min || l.Mean > l.Max {
				t.Errorf("mean %v outside [%v, %v]", l.Mean, l.Min, l.Max)
			}
			if report.OpsPerSec <= 0 {
				t.Errorf("OpsPerSec = %v, want > 0", report.OpsPerSec)
			}
		})
	}
}

func TestLoad_Duration(t *testing.T) {
	start := time.Now()
	report, err := harness.Load(context.Background(), newMemory(t), harness.LoadConfig{
		Clients:    3,
		Duration:   50 * time.Millisecond,
		WriteRatio: 0.5,
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if report.Operations == 0 {
		t.Error("Operations = 0, want some")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Load ran %v past a 50ms duration", elapsed)
	}
}

func TestLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := harness.Load(ctx, newMemory(t), harness.LoadConfig{Clients: 2, Operations: 1000})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if report.Operations != 0 {
		t.Errorf("Operations = %d, want 0 on a canceled context", report.Operations)
	}
}

func TestLoad_ClosedBackendCountsErrors(t *testing.T) {
	db := newMemory(t)
	db.Close()
	report, err := harness.Load(context.Background(), db, harness.LoadConfig{Clients: 2, Operations: 100})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if report.Errors != 100 {
		t.Errorf("Errors = %d, want 100", report.Errors)
	}
}
