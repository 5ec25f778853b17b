package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/timosh-design/blankstock/internal/intake"
	"github.com/timosh-design/blankstock/internal/ledger"
	"github.com/timosh-design/blankstock/internal/replenish"
)

// Runner holds the services the scheduled jobs operate on.
type Runner struct {
	Ledger        *ledger.Service
	Replenish     *replenish.Engine
	Unmapped      *intake.Repository
	Logger        *slog.Logger
	LeadTimeDays  int
	RetentionDays int
}

// Handlers returns the task handlers the worker mux should mount.
func (r *Runner) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskReplenishReport, Handler: r.HandleReplenishReport},
		{Type: TaskUsageRefresh, Handler: r.HandleUsageRefresh},
		{Type: TaskLedgerVerify, Handler: r.HandleLedgerVerify},
		{Type: TaskUnmappedCleanup, Handler: r.HandleUnmappedCleanup},
	}
}

// CronEntries returns the default schedule. Usage statistics refresh
// before the replenishment report so the report sees fresh averages.
func (r *Runner) CronEntries() ([]CronRegistration, error) {
	specs := []struct {
		spec     string
		taskType string
	}{
		{"30 5 * * *", TaskUsageRefresh},
		{"0 6 * * *", TaskReplenishReport},
		{"0 3 * * *", TaskLedgerVerify},
		{"0 4 * * 0", TaskUnmappedCleanup},
	}
	entries := make([]CronRegistration, 0, len(specs))
	for _, s := range specs {
		task, err := NewScheduledTask(s.taskType, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		entries = append(entries, CronRegistration{Spec: s.spec, Task: task})
	}
	return entries, nil
}

// HandleReplenishReport computes the replenishment report and logs SKUs
// whose projected stockout falls inside the supplier lead time.
func (r *Runner) HandleReplenishReport(ctx context.Context, t *asynq.Task) error {
	var payload ScheduledPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	report, err := r.Replenish.Report(ctx)
	if err != nil {
		return err
	}
	r.Logger.Info("replenishment report generated",
		slog.Int("below_min", report.Summary.SKUsBelowMin),
		slog.Int("critical", report.Summary.Critical),
		slog.Int("high", report.Summary.High),
		slog.Int("medium", report.Summary.Medium),
		slog.Int("total_units", report.Summary.TotalUnits))
	for _, s := range replenish.AtRisk(report, r.LeadTimeDays) {
		r.Logger.Warn("stockout inside supplier lead time",
			slog.String("sku", s.SKU),
			slog.Int("on_hand", s.OnHand),
			slog.String("urgency", string(s.Urgency)),
			slog.Time("stockout_date", s.StockoutDate),
			slog.Int("suggested_qty", s.SuggestedQty))
	}
	return nil
}

// HandleUsageRefresh recomputes rolling average daily usage per SKU.
func (r *Runner) HandleUsageRefresh(ctx context.Context, t *asynq.Task) error {
	var payload ScheduledPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	updated, err := r.Ledger.RefreshUsageStats(ctx, time.Now().UTC())
	if err != nil {
		return err
	}
	r.Logger.Info("usage refresh complete", slog.Int("updated", updated))
	return nil
}

// HandleLedgerVerify refolds the ledger and repairs drifted balances.
func (r *Runner) HandleLedgerVerify(ctx context.Context, t *asynq.Task) error {
	var payload ScheduledPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	report, err := r.Ledger.Rebuild(ctx, true)
	if err != nil {
		return err
	}
	if len(report.Drift) > 0 {
		r.Logger.Warn("ledger verify repaired drift",
			slog.Int("skus_checked", report.SKUsChecked),
			slog.Int("drift", len(report.Drift)))
		return nil
	}
	r.Logger.Info("ledger verify clean", slog.Int("skus_checked", report.SKUsChecked))
	return nil
}

// HandleUnmappedCleanup prunes resolved triage items past the retention
// window. Pending items are kept indefinitely.
func (r *Runner) HandleUnmappedCleanup(ctx context.Context, t *asynq.Task) error {
	var payload ScheduledPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	retention := r.RetentionDays
	if retention <= 0 {
		retention = 90
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -retention)
	deleted, err := r.Unmapped.DeleteResolvedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	r.Logger.Info("unmapped cleanup complete",
		slog.Int64("deleted", deleted),
		slog.Time("cutoff", cutoff))
	return nil
}
