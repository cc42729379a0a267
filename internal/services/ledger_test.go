package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/taskboard/internal/models"
)

func TestLedger_AdjustWrapsFailure(t *testing.T) {
	env := newTestEnv(t, nil)

	err := env.ledger.Adjust(context.Background(), "missing", 1, "assigned")
	assert.ErrorIs(t, err, ErrLedgerAdjustmentFailed)

	err = env.ledger.RecordCompletion(context.Background(), "missing", "completed")
	assert.ErrorIs(t, err, ErrLedgerAdjustmentFailed)
}

func TestLedger_ReconcileCorrectsDrift(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin := env.createAdmin(t, "admin")
	alice := env.createWorker(t, "alice", 0)
	bob := env.createWorker(t, "bob", 0)

	for i := 0; i < 2; i++ {
		res, err := env.lifecycle.CreateTask(ctx, CreateTaskInput{Title: "t", Description: "d", CreatedBy: admin.ID})
		require.NoError(t, err)
		_, err = env.lifecycle.Assign(ctx, res.Task.ID, alice.UserID)
		require.NoError(t, err)
	}

	// simulate lost and spurious adjustments
	require.NoError(t, env.db.Model(&models.WorkerProfile{}).Where("user_id = ?", alice.UserID).Update("current_workload", 1).Error)
	require.NoError(t, env.db.Model(&models.WorkerProfile{}).Where("user_id = ?", bob.UserID).Update("current_workload", 3).Error)

	report, err := env.ledger.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	require.Len(t, report.Drifts, 2)

	byWorker := map[string]Drift{}
	for _, d := range report.Drifts {
		byWorker[d.WorkerID] = d
	}
	assert.Equal(t, Drift{WorkerID: alice.UserID, Recorded: 1, Actual: 2, Corrected: true}, byWorker[alice.UserID])
	assert.Equal(t, Drift{WorkerID: bob.UserID, Recorded: 3, Actual: 0, Corrected: true}, byWorker[bob.UserID])
	assert.Empty(t, env.drift(t))

	report, err = env.ledger.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Drifts)
}

func TestLedger_ReconcileReportsOrphans(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin := env.createAdmin(t, "admin")
	w := env.createWorker(t, "w", 0)

	res, err := env.lifecycle.CreateTask(ctx, CreateTaskInput{Title: "t", Description: "d", CreatedBy: admin.ID})
	require.NoError(t, err)
	_, err = env.lifecycle.Assign(ctx, res.Task.ID, w.UserID)
	require.NoError(t, err)
	require.NoError(t, env.db.Where("user_id = ?", w.UserID).Delete(&models.WorkerProfile{}).Error)

	report, err := env.ledger.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{w.UserID}, report.Orphans)
}

func TestReconciler_RunsPeriodically(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.createWorker(t, "w", 4)

	r := NewReconciler(env.ledger, 10*time.Millisecond, nil)
	assert.Nil(t, r.LastReport())

	r.Start()
	r.Start()
	require.Eventually(t, func() bool {
		return r.LastReport() != nil
	}, 2*time.Second, 10*time.Millisecond)
	r.Stop()
	r.Stop()

	assert.Equal(t, 0, env.workload(t, w.UserID))
}

func TestReconciler_DisabledWithoutInterval(t *testing.T) {
	env := newTestEnv(t, nil)

	r := NewReconciler(env.ledger, 0, nil)
	r.Start()
	r.Stop()
	assert.Nil(t, r.LastReport())

	report, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Same(t, report, r.LastReport())
}
