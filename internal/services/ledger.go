package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/yukikurage/taskboard/internal/logging"
	"github.com/yukikurage/taskboard/internal/repository"
)

// Ledger owns the per-worker workload and completion counters.
//
// Adjustments are applied by the store as single atomic statements, so
// concurrent callers never lose an update. They are not transactional with
// the task write that triggered them; a failed adjustment is logged and
// repaired by Reconcile.
type Ledger struct {
	tasks   repository.TaskRepository
	workers repository.WorkerRepository
	log     *logging.Logger
}

// NewLedger creates a new Ledger
func NewLedger(tasks repository.TaskRepository, workers repository.WorkerRepository, log *logging.Logger) *Ledger {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Ledger{
		tasks:   tasks,
		workers: workers,
		log:     log.WithComponent("ledger"),
	}
}

// Adjust applies delta to a worker's current workload, clamped at zero.
func (l *Ledger) Adjust(ctx context.Context, workerID string, delta int, reason string) error {
	value, err := l.workers.AdjustWorkload(ctx, workerID, delta)
	if err != nil {
		l.log.Error("workload adjustment failed",
			"worker_id", workerID, "delta", delta, "reason", reason, "error", err)
		return fmt.Errorf("%w: worker %s delta %+d: %v", ErrLedgerAdjustmentFailed, workerID, delta, err)
	}

	l.log.Debug("workload adjusted",
		"worker_id", workerID, "delta", delta, "reason", reason, "current_workload", value)
	return nil
}

// RecordCompletion adds one to a worker's completed task count.
func (l *Ledger) RecordCompletion(ctx context.Context, workerID, reason string) error {
	if err := l.workers.IncrementTasksCompleted(ctx, workerID); err != nil {
		l.log.Error("completion count update failed",
			"worker_id", workerID, "reason", reason, "error", err)
		return fmt.Errorf("%w: worker %s completion: %v", ErrLedgerAdjustmentFailed, workerID, err)
	}
	return nil
}

// Drift is a counter that disagreed with the task table.
type Drift struct {
	WorkerID  string `json:"worker_id"`
	Recorded  int    `json:"recorded"`
	Actual    int    `json:"actual"`
	Corrected bool   `json:"corrected"`
}

// ReconcileReport summarises one reconciliation run.
type ReconcileReport struct {
	Checked    int       `json:"checked"`
	Drifts     []Drift   `json:"drifts"`
	Orphans    []string  `json:"orphans,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Reconcile recounts active assignments from the task table and overwrites
// every drifted workload counter. A counter that changes between the recount
// and the write is left alone and reported as not corrected; the next run
// picks it up.
func (l *Ledger) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{StartedAt: time.Now(), Drifts: []Drift{}}

	counts, err := l.tasks.CountActiveByAssignee(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count active assignments: %w", err)
	}
	workloads, err := l.workers.ListWorkloads(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workloads: %w", err)
	}

	ids := make([]string, 0, len(workloads))
	for id := range workloads {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		recorded, actual := workloads[id], counts[id]
		report.Checked++
		if recorded == actual {
			continue
		}

		ok, err := l.workers.SetWorkload(ctx, id, recorded, actual)
		if err != nil {
			return nil, fmt.Errorf("failed to correct workload for %s: %w", id, err)
		}
		l.log.Warn("workload drift",
			"worker_id", id, "recorded", recorded, "actual", actual, "corrected", ok)
		report.Drifts = append(report.Drifts, Drift{
			WorkerID:  id,
			Recorded:  recorded,
			Actual:    actual,
			Corrected: ok,
		})
	}

	for id := range counts {
		if _, ok := workloads[id]; !ok {
			report.Orphans = append(report.Orphans, id)
		}
	}
	sort.Strings(report.Orphans)
	if len(report.Orphans) > 0 {
		l.log.Warn("active tasks assigned to workers without a profile", "worker_ids", report.Orphans)
	}

	report.FinishedAt = time.Now()
	return report, nil
}

// Reconciler runs Ledger.Reconcile on a fixed interval until stopped.
type Reconciler struct {
	ledger   *Ledger
	interval time.Duration
	log      *logging.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	cancel context.CancelFunc
	last   *ReconcileReport
}

// NewReconciler creates a stopped Reconciler.
func NewReconciler(ledger *Ledger, interval time.Duration, log *logging.Logger) *Reconciler {
	if log == nil {
		log = logging.NopLogger()
	}
	return &Reconciler{
		ledger:   ledger,
		interval: interval,
		log:      log.WithComponent("reconciler"),
	}
}

// Start launches the background loop. It does nothing if the loop is
// already running or the interval is not positive.
func (r *Reconciler) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil || r.interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.wg.Add(1)
	go r.loop(ctx)
}

// Stop cancels the loop and waits for an in-flight run to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// RunOnce reconciles immediately and remembers the report.
func (r *Reconciler) RunOnce(ctx context.Context) (*ReconcileReport, error) {
	report, err := r.ledger.Reconcile(ctx)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.last = report
	r.mu.Unlock()
	return report, nil
}

// LastReport returns the most recent report, or nil before the first run.
func (r *Reconciler) LastReport() *ReconcileReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Reconciler) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.runSafely(ctx)
		}
	}
}

func (r *Reconciler) runSafely(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("reconcile panicked", "panic", p, "stack", string(debug.Stack()))
		}
	}()

	report, err := r.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			r.log.Error("reconcile failed", "error", err)
		}
		return
	}
	r.log.Info("reconcile finished", "checked", report.Checked, "drifts", len(report.Drifts))
}
