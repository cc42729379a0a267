package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/repository"
)

type LifecycleServiceTestSuite struct {
	suite.Suite
	env   *testEnv
	svc   *LifecycleService
	admin *models.User
	ctx   context.Context
}

func (suite *LifecycleServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(suite.T(), nil)
	suite.svc = suite.env.lifecycle
	suite.admin = suite.env.createAdmin(suite.T(), "admin")
	suite.ctx = context.Background()
}

func (suite *LifecycleServiceTestSuite) createTask(title string, skills ...string) *models.Task {
	res, err := suite.svc.CreateTask(suite.ctx, CreateTaskInput{
		Title:          title,
		Description:    "Description of " + title,
		Priority:       models.PriorityHigh,
		RequiredSkills: skills,
		CreatedBy:      suite.admin.ID,
	})
	suite.Require().NoError(err)
	return res.Task
}

func (suite *LifecycleServiceTestSuite) assertNoDrift() {
	suite.Empty(suite.env.drift(suite.T()))
}

// Scenario A
func (suite *LifecycleServiceTestSuite) TestCreateTask_PendingWithoutLedgerChange() {
	w := suite.env.createWorker(suite.T(), "alice", 0)

	res, err := suite.svc.CreateTask(suite.ctx, CreateTaskInput{
		Title:          "Build dashboard",
		Description:    "Admin dashboard",
		Priority:       models.PriorityHigh,
		RequiredSkills: []string{"React", "sql", "react"},
		CreatedBy:      suite.admin.ID,
	})
	suite.Require().NoError(err)
	suite.Empty(res.Warnings)
	suite.Equal(models.TaskStatusPending, res.Task.Status)
	suite.Equal(models.PriorityHigh, res.Task.Priority)
	suite.Nil(res.Task.Deadline)
	suite.Equal([]string{"react", "sql"}, res.Task.SkillNames())
	suite.Equal(0, suite.env.workload(suite.T(), w.UserID))
}

func (suite *LifecycleServiceTestSuite) TestCreateTask_Validation() {
	past := time.Now().Add(-time.Minute)
	zero := 0.0
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}

	cases := []struct {
		name  string
		input CreateTaskInput
	}{
		{"empty title", CreateTaskInput{Title: "  ", Description: "d"}},
		{"long title", CreateTaskInput{Title: string(long), Description: "d"}},
		{"empty description", CreateTaskInput{Title: "t"}},
		{"bad priority", CreateTaskInput{Title: "t", Description: "d", Priority: "urgent"}},
		{"past deadline", CreateTaskInput{Title: "t", Description: "d", Deadline: &past}},
		{"zero estimate", CreateTaskInput{Title: "t", Description: "d", EstimatedHours: &zero}},
	}

	for _, tc := range cases {
		suite.Run(tc.name, func() {
			tc.input.CreatedBy = suite.admin.ID
			_, err := suite.svc.CreateTask(suite.ctx, tc.input)
			suite.ErrorIs(err, ErrValidation)
		})
	}

	_, total, err := suite.svc.ListTasks(suite.ctx, ListTasksInput{})
	suite.Require().NoError(err)
	suite.Zero(total)
}

func (suite *LifecycleServiceTestSuite) TestCreateTask_RequiresCreator() {
	_, err := suite.svc.CreateTask(suite.ctx, CreateTaskInput{Title: "t", Description: "d"})
	suite.ErrorIs(err, ErrAuthRequired)

	_, err = suite.svc.CreateTask(suite.ctx, CreateTaskInput{Title: "t", Description: "d", CreatedBy: "nobody"})
	suite.ErrorIs(err, ErrAuthRequired)
}

func (suite *LifecycleServiceTestSuite) TestDeadlines() {
	fixed := time.Date(2030, 6, 15, 15, 0, 0, 0, time.Local)
	suite.svc.now = func() time.Time { return fixed }

	today, dateOnly, err := ParseDeadline("2030-06-15", time.Local)
	suite.Require().NoError(err)
	suite.True(dateOnly)

	res, err := suite.svc.CreateTask(suite.ctx, CreateTaskInput{
		Title: "t", Description: "d", Deadline: today, DeadlineDateOnly: true, CreatedBy: suite.admin.ID,
	})
	suite.Require().NoError(err)
	suite.True(res.Task.DeadlineDateOnly)

	earlier := time.Date(2030, 6, 15, 14, 0, 0, 0, time.Local)
	_, err = suite.svc.CreateTask(suite.ctx, CreateTaskInput{
		Title: "t", Description: "d", Deadline: &earlier, CreatedBy: suite.admin.ID,
	})
	suite.ErrorIs(err, ErrValidation)

	yesterday, _, err := ParseDeadline("2030-06-14", time.Local)
	suite.Require().NoError(err)
	_, err = suite.svc.EditFields(suite.ctx, res.Task.ID, EditTaskInput{Deadline: yesterday, DeadlineDateOnly: true})
	suite.ErrorIs(err, ErrValidation)

	// terminal tasks may carry a past deadline
	_, err = suite.svc.OverrideReject(suite.ctx, res.Task.ID, "cancelled")
	suite.Require().NoError(err)
	edited, err := suite.svc.EditFields(suite.ctx, res.Task.ID, EditTaskInput{Deadline: yesterday, DeadlineDateOnly: true})
	suite.Require().NoError(err)
	suite.Require().NotNil(edited.Task.Deadline)

	_, _, err = ParseDeadline("next tuesday", time.Local)
	suite.ErrorIs(err, ErrValidation)
}

// Scenario B
func (suite *LifecycleServiceTestSuite) TestAssign_Invites() {
	x := suite.env.createWorker(suite.T(), "x", 2)
	task := suite.createTask("Review")

	res, err := suite.svc.Assign(suite.ctx, task.ID, x.UserID)
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusInvited, res.Task.Status)
	suite.True(res.Task.IsAssignedTo(x.UserID))
	suite.Equal(3, suite.env.workload(suite.T(), x.UserID))
}

// Scenario C
func (suite *LifecycleServiceTestSuite) TestRespond_Reject() {
	x := suite.env.createWorker(suite.T(), "x", 0)
	task := suite.createTask("Review")
	_, err := suite.svc.Assign(suite.ctx, task.ID, x.UserID)
	suite.Require().NoError(err)

	res, err := suite.svc.Respond(suite.ctx, RespondInput{
		TaskID: task.ID, WorkerID: x.UserID, Decision: DecisionReject, Reason: "overloaded",
	})
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusRejected, res.Task.Status)
	suite.Require().NotNil(res.Task.RejectionReason)
	suite.Equal("overloaded", *res.Task.RejectionReason)
	suite.Equal(0, suite.env.workload(suite.T(), x.UserID))
	suite.assertNoDrift()
}

func (suite *LifecycleServiceTestSuite) TestRespond_Accept() {
	x := suite.env.createWorker(suite.T(), "x", 0)
	other := suite.env.createWorker(suite.T(), "other", 0)
	task := suite.createTask("Review")
	_, err := suite.svc.Assign(suite.ctx, task.ID, x.UserID)
	suite.Require().NoError(err)

	_, err = suite.svc.Respond(suite.ctx, RespondInput{TaskID: task.ID, WorkerID: other.UserID, Decision: DecisionAccept})
	suite.ErrorIs(err, ErrInvalidTransition)

	_, err = suite.svc.Respond(suite.ctx, RespondInput{TaskID: task.ID, WorkerID: x.UserID, Decision: "maybe"})
	suite.ErrorIs(err, ErrValidation)

	res, err := suite.svc.Respond(suite.ctx, RespondInput{TaskID: task.ID, WorkerID: x.UserID, Decision: "Accept"})
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusAccepted, res.Task.Status)
	suite.NotNil(res.Task.AcceptedAt)
	suite.Equal(1, suite.env.workload(suite.T(), x.UserID))
	suite.assertNoDrift()
}

// Scenario D and completion idempotence
func (suite *LifecycleServiceTestSuite) TestUpdateProgress_CompletesOnce() {
	y := suite.env.createWorker(suite.T(), "y", 0)
	suite.Require().NoError(suite.env.db.Model(&models.WorkerProfile{}).
		Where("user_id = ?", y.UserID).Update("tasks_completed", 4).Error)

	task := suite.createTask("Ship")
	_, err := suite.svc.Assign(suite.ctx, task.ID, y.UserID)
	suite.Require().NoError(err)
	_, err = suite.svc.Respond(suite.ctx, RespondInput{TaskID: task.ID, WorkerID: y.UserID, Decision: DecisionAccept})
	suite.Require().NoError(err)
	suite.Equal(1, suite.env.workload(suite.T(), y.UserID))

	res, err := suite.svc.UpdateProgress(suite.ctx, ProgressInput{TaskID: task.ID, WorkerID: y.UserID, Progress: 100, Note: "done"})
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusCompleted, res.Task.Status)
	suite.Equal(100, res.Task.Progress)
	suite.NotNil(res.Task.CompletedAt)
	suite.Equal(5, suite.env.completed(suite.T(), y.UserID))
	suite.Equal(0, suite.env.workload(suite.T(), y.UserID))

	_, err = suite.svc.UpdateProgress(suite.ctx, ProgressInput{TaskID: task.ID, WorkerID: y.UserID, Progress: 100})
	suite.ErrorIs(err, ErrInvalidTransition)

	got, err := suite.svc.GetTask(suite.ctx, task.ID)
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusCompleted, got.Status)
	suite.Equal(100, got.Progress)
	suite.Equal(5, suite.env.completed(suite.T(), y.UserID))
	suite.Equal(0, suite.env.workload(suite.T(), y.UserID))
	suite.Len(got.Updates, 1)
}

func (suite *LifecycleServiceTestSuite) TestUpdateProgress_HistoryAndValidation() {
	y := suite.env.createWorker(suite.T(), "y", 0)
	task := suite.createTask("Ship")
	_, err := suite.svc.Assign(suite.ctx, task.ID, y.UserID)
	suite.Require().NoError(err)
	_, err = suite.svc.Respond(suite.ctx, RespondInput{TaskID: task.ID, WorkerID: y.UserID, Decision: DecisionAccept})
	suite.Require().NoError(err)

	_, err = suite.svc.UpdateProgress(suite.ctx, ProgressInput{TaskID: task.ID, Progress: 101})
	suite.ErrorIs(err, ErrValidation)
	negative := -1.0
	_, err = suite.svc.UpdateProgress(suite.ctx, ProgressInput{TaskID: task.ID, Progress: 10, HoursLogged: &negative})
	suite.ErrorIs(err, ErrValidation)

	hours := 1.5
	res, err := suite.svc.UpdateProgress(suite.ctx, ProgressInput{TaskID: task.ID, WorkerID: y.UserID, Progress: 30, HoursLogged: &hours})
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusOngoing, res.Task.Status)

	_, err = suite.svc.UpdateProgress(suite.ctx, ProgressInput{TaskID: task.ID, Progress: 60})
	suite.Require().NoError(err)

	updates, err := suite.svc.ListUpdates(suite.ctx, task.ID)
	suite.Require().NoError(err)
	suite.Require().Len(updates, 2)
	suite.Equal(models.TaskStatusAccepted, updates[0].StatusBefore)
	suite.Equal(models.TaskStatusOngoing, updates[0].StatusAfter)
	suite.Equal(models.TaskStatusOngoing, updates[1].StatusBefore)
	suite.Equal(60, updates[1].Progress)
	suite.Equal(1, suite.env.workload(suite.T(), y.UserID))
}

// Reassignment moves exactly one unit of workload
func (suite *LifecycleServiceTestSuite) TestAssign_ReassignOngoing() {
	a := suite.env.createWorker(suite.T(), "a", 0)
	b := suite.env.createWorker(suite.T(), "b", 0)
	task := suite.createTask("Migrate")

	_, err := suite.svc.Assign(suite.ctx, task.ID, a.UserID)
	suite.Require().NoError(err)
	accepted, err := suite.svc.Respond(suite.ctx, RespondInput{TaskID: task.ID, WorkerID: a.UserID, Decision: DecisionAccept})
	suite.Require().NoError(err)
	suite.Require().NotNil(accepted.Task.AcceptedAt)
	firstAccepted := *accepted.Task.AcceptedAt
	_, err = suite.svc.UpdateProgress(suite.ctx, ProgressInput{TaskID: task.ID, Progress: 40})
	suite.Require().NoError(err)
	suite.Equal(1, suite.env.workload(suite.T(), a.UserID))

	res, err := suite.svc.Assign(suite.ctx, task.ID, b.UserID)
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusInvited, res.Task.Status)
	suite.Equal(40, res.Task.Progress)
	suite.Require().NotNil(res.Task.AcceptedAt)
	suite.True(firstAccepted.Equal(*res.Task.AcceptedAt))
	suite.Equal(0, suite.env.workload(suite.T(), a.UserID))
	suite.Equal(1, suite.env.workload(suite.T(), b.UserID))

	// the new assignee's acceptance keeps the first timestamp
	res, err = suite.svc.Respond(suite.ctx, RespondInput{TaskID: task.ID, WorkerID: b.UserID, Decision: DecisionAccept})
	suite.Require().NoError(err)
	suite.Require().NotNil(res.Task.AcceptedAt)
	suite.True(firstAccepted.Equal(*res.Task.AcceptedAt))
	suite.Equal(1, suite.env.workload(suite.T(), b.UserID))

	// same assignee again is a no-op
	_, err = suite.svc.Assign(suite.ctx, task.ID, b.UserID)
	suite.Require().NoError(err)
	suite.Equal(1, suite.env.workload(suite.T(), b.UserID))
	suite.assertNoDrift()
}

func (suite *LifecycleServiceTestSuite) TestAssign_NotFound() {
	w := suite.env.createWorker(suite.T(), "w", 0)
	task := suite.createTask("t")

	_, err := suite.svc.Assign(suite.ctx, "missing", w.UserID)
	suite.ErrorIs(err, ErrNotFound)
	_, err = suite.svc.Assign(suite.ctx, task.ID, "missing")
	suite.ErrorIs(err, ErrNotFound)
	_, err = suite.svc.Assign(suite.ctx, task.ID, "")
	suite.ErrorIs(err, ErrValidation)
}

// Scenario E
func (suite *LifecycleServiceTestSuite) TestDelete_RequiresConfirmation() {
	w := suite.env.createWorker(suite.T(), "w", 0)
	task := suite.createTask("t")
	_, err := suite.svc.Assign(suite.ctx, task.ID, w.UserID)
	suite.Require().NoError(err)

	err = suite.svc.DeleteTask(suite.ctx, task.ID, false)
	suite.ErrorIs(err, ErrConfirmationRequired)

	got, err := suite.svc.GetTask(suite.ctx, task.ID)
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusInvited, got.Status)
	suite.Equal(1, suite.env.workload(suite.T(), w.UserID))
}

func (suite *LifecycleServiceTestSuite) TestDelete_ReleasesActiveWorkload() {
	w := suite.env.createWorker(suite.T(), "w", 0)
	active := suite.createTask("active")
	done := suite.createTask("done")

	for _, id := range []string{active.ID, done.ID} {
		_, err := suite.svc.Assign(suite.ctx, id, w.UserID)
		suite.Require().NoError(err)
	}
	_, err := suite.svc.Respond(suite.ctx, RespondInput{TaskID: done.ID, WorkerID: w.UserID, Decision: DecisionReject})
	suite.Require().NoError(err)
	suite.Equal(1, suite.env.workload(suite.T(), w.UserID))

	suite.Require().NoError(suite.svc.DeleteTask(suite.ctx, done.ID, true))
	suite.Equal(1, suite.env.workload(suite.T(), w.UserID))

	suite.Require().NoError(suite.svc.DeleteTask(suite.ctx, active.ID, true))
	suite.Equal(0, suite.env.workload(suite.T(), w.UserID))

	_, err = suite.svc.GetTask(suite.ctx, active.ID)
	suite.ErrorIs(err, ErrNotFound)
	suite.ErrorIs(suite.svc.DeleteTask(suite.ctx, active.ID, true), ErrNotFound)
	suite.assertNoDrift()
}

func (suite *LifecycleServiceTestSuite) TestEditFields() {
	task := suite.createTask("Old", "go")

	title := "New title"
	priority := models.PriorityLow
	hours := 3.0
	skills := []string{"Python", "go"}
	res, err := suite.svc.EditFields(suite.ctx, task.ID, EditTaskInput{
		Title:          &title,
		Priority:       &priority,
		EstimatedHours: &hours,
		RequiredSkills: &skills,
	})
	suite.Require().NoError(err)
	suite.Equal("New title", res.Task.Title)
	suite.Equal(models.PriorityLow, res.Task.Priority)
	suite.Require().NotNil(res.Task.EstimatedHours)
	suite.Equal(3.0, *res.Task.EstimatedHours)
	suite.Equal([]string{"go", "python"}, res.Task.SkillNames())
	suite.Equal(models.TaskStatusPending, res.Task.Status)

	res, err = suite.svc.EditFields(suite.ctx, task.ID, EditTaskInput{ClearEstimatedHours: true})
	suite.Require().NoError(err)
	suite.Nil(res.Task.EstimatedHours)

	bad := models.TaskPriority("critical")
	_, err = suite.svc.EditFields(suite.ctx, task.ID, EditTaskInput{Priority: &bad})
	suite.ErrorIs(err, ErrValidation)
}

func (suite *LifecycleServiceTestSuite) TestOverrideReject() {
	w := suite.env.createWorker(suite.T(), "w", 0)
	pending := suite.createTask("pending")
	invited := suite.createTask("invited")
	_, err := suite.svc.Assign(suite.ctx, invited.ID, w.UserID)
	suite.Require().NoError(err)

	_, err = suite.svc.OverrideReject(suite.ctx, pending.ID, "")
	suite.Require().NoError(err)
	res, err := suite.svc.OverrideReject(suite.ctx, invited.ID, "no longer needed")
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusRejected, res.Task.Status)
	suite.Equal(0, suite.env.workload(suite.T(), w.UserID))

	_, err = suite.svc.OverrideReject(suite.ctx, invited.ID, "again")
	suite.ErrorIs(err, ErrInvalidTransition)
	suite.assertNoDrift()
}

func (suite *LifecycleServiceTestSuite) TestSkillWriteFailureIsWarning() {
	suite.svc.tasks = failingSkills{suite.env.tasks}

	res, err := suite.svc.CreateTask(suite.ctx, CreateTaskInput{
		Title: "t", Description: "d", RequiredSkills: []string{"go"}, CreatedBy: suite.admin.ID,
	})
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusPending, res.Task.Status)
	suite.Len(res.Warnings, 1)
}

func (suite *LifecycleServiceTestSuite) TestLedgerFailureDoesNotFailTransition() {
	suite.svc.ledger = NewLedger(suite.env.tasks, &flakyWorkers{WorkerRepository: suite.env.workers, rate: 1}, nil)
	w := suite.env.createWorker(suite.T(), "w", 0)
	task := suite.createTask("t")

	res, err := suite.svc.Assign(suite.ctx, task.ID, w.UserID)
	suite.Require().NoError(err)
	suite.Equal(models.TaskStatusInvited, res.Task.Status)
	suite.Equal(0, suite.env.workload(suite.T(), w.UserID))
	suite.NotEmpty(suite.env.drift(suite.T()))
}

// Every state accepts exactly the transitions of the lifecycle.
func (suite *LifecycleServiceTestSuite) TestStateMachineCompleteness() {
	ops := []string{"assign", "accept", "reject", "progress", "complete", "override"}
	legal := map[models.TaskStatus][]string{
		models.TaskStatusPending:   {"assign", "override"},
		models.TaskStatusInvited:   {"assign", "accept", "reject", "override"},
		models.TaskStatusAccepted:  {"assign", "progress", "complete", "override"},
		models.TaskStatusOngoing:   {"assign", "progress", "complete", "override"},
		models.TaskStatusCompleted: {},
		models.TaskStatusRejected:  {},
	}

	owner := suite.env.createWorker(suite.T(), "owner", 0)
	other := suite.env.createWorker(suite.T(), "other", 0)

	for _, state := range models.AllTaskStatuses {
		for _, op := range ops {
			name := fmt.Sprintf("%s/%s", state, op)
			task := suite.taskIn(state, owner.UserID)

			var err error
			switch op {
			case "assign":
				_, err = suite.svc.Assign(suite.ctx, task.ID, other.UserID)
			case "accept", "reject":
				_, err = suite.svc.Respond(suite.ctx, RespondInput{TaskID: task.ID, WorkerID: owner.UserID, Decision: op})
			case "progress":
				_, err = suite.svc.UpdateProgress(suite.ctx, ProgressInput{TaskID: task.ID, Progress: 50})
			case "complete":
				_, err = suite.svc.UpdateProgress(suite.ctx, ProgressInput{TaskID: task.ID, Progress: 100})
			case "override":
				_, err = suite.svc.OverrideReject(suite.ctx, task.ID, "")
			}

			if contains(legal[state], op) {
				suite.NoError(err, name)
			} else {
				suite.ErrorIs(err, ErrInvalidTransition, name)
			}
			suite.Empty(suite.env.drift(suite.T()), name)
		}
	}
}

func (suite *LifecycleServiceTestSuite) taskIn(state models.TaskStatus, workerID string) *models.Task {
	task := suite.createTask(string(state))
	if state == models.TaskStatusPending {
		return task
	}

	_, err := suite.svc.Assign(suite.ctx, task.ID, workerID)
	suite.Require().NoError(err)

	switch state {
	case models.TaskStatusRejected:
		_, err = suite.svc.Respond(suite.ctx, RespondInput{TaskID: task.ID, WorkerID: workerID, Decision: DecisionReject})
	case models.TaskStatusAccepted, models.TaskStatusOngoing, models.TaskStatusCompleted:
		_, err = suite.svc.Respond(suite.ctx, RespondInput{TaskID: task.ID, WorkerID: workerID, Decision: DecisionAccept})
	}
	suite.Require().NoError(err)

	switch state {
	case models.TaskStatusOngoing:
		_, err = suite.svc.UpdateProgress(suite.ctx, ProgressInput{TaskID: task.ID, Progress: 10})
	case models.TaskStatusCompleted:
		_, err = suite.svc.UpdateProgress(suite.ctx, ProgressInput{TaskID: task.ID, Progress: 100})
	}
	suite.Require().NoError(err)
	return task
}

func (suite *LifecycleServiceTestSuite) TestConcurrentTransitions() {
	workers := make([]*models.WorkerProfile, 6)
	for i := range workers {
		workers[i] = suite.env.createWorker(suite.T(), fmt.Sprintf("w%d", i), 0)
	}
	task := suite.createTask("contended")

	var wg sync.WaitGroup
	for round := 0; round < 3; round++ {
		for _, w := range workers {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := suite.svc.Assign(suite.ctx, task.ID, id)
				if err != nil && !errors.Is(err, ErrInvalidTransition) {
					suite.Fail("unexpected error", err.Error())
				}
			}(w.UserID)
		}
		wg.Wait()
	}
	suite.assertNoDrift()

	got, err := suite.svc.GetTask(suite.ctx, task.ID)
	suite.Require().NoError(err)
	_, err = suite.svc.Respond(suite.ctx, RespondInput{TaskID: task.ID, WorkerID: *got.AssignedTo, Decision: DecisionAccept})
	suite.Require().NoError(err)

	var completions int
	var mu sync.Mutex
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := suite.svc.UpdateProgress(suite.ctx, ProgressInput{TaskID: task.ID, Progress: 100}); err == nil {
				mu.Lock()
				completions++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	suite.Equal(1, completions)
	suite.Equal(1, suite.env.completed(suite.T(), *got.AssignedTo))
	suite.assertNoDrift()
}

func TestLifecycleServiceTestSuite(t *testing.T) {
	suite.Run(t, new(LifecycleServiceTestSuite))
}

// The workload invariant holds over random operation sequences. With
// injected ledger failures it may drift, and reconciliation restores it.
func TestWorkloadInvariant_RandomSequences(t *testing.T) {
	for _, rate := range []float64{0, 0.3} {
		t.Run(fmt.Sprintf("failure_rate_%.1f", rate), func(t *testing.T) {
			var flaky *flakyWorkers
			env := newTestEnv(t, func(inner repository.WorkerRepository) repository.WorkerRepository {
				flaky = &flakyWorkers{WorkerRepository: inner, rate: rate, rng: rand.New(rand.NewSource(7))}
				return flaky
			})
			ctx := context.Background()
			admin := env.createAdmin(t, "admin")

			workers := make([]string, 4)
			for i := range workers {
				workers[i] = env.createWorker(t, fmt.Sprintf("w%d", i), 0).UserID
			}

			rng := rand.New(rand.NewSource(42))
			var tasks []string
			for step := 0; step < 250; step++ {
				if len(tasks) == 0 || rng.Intn(6) == 0 {
					res, err := env.lifecycle.CreateTask(ctx, CreateTaskInput{Title: "t", Description: "d", CreatedBy: admin.ID})
					require.NoError(t, err)
					tasks = append(tasks, res.Task.ID)
					continue
				}

				taskID := tasks[rng.Intn(len(tasks))]
				worker := workers[rng.Intn(len(workers))]

				var err error
				switch rng.Intn(7) {
				case 0, 1:
					_, err = env.lifecycle.Assign(ctx, taskID, worker)
				case 2:
					_, err = env.lifecycle.Respond(ctx, RespondInput{TaskID: taskID, WorkerID: worker, Decision: DecisionAccept})
				case 3:
					_, err = env.lifecycle.Respond(ctx, RespondInput{TaskID: taskID, WorkerID: worker, Decision: DecisionReject})
				case 4:
					_, err = env.lifecycle.UpdateProgress(ctx, ProgressInput{TaskID: taskID, Progress: []int{20, 60, 100}[rng.Intn(3)]})
				case 5:
					err = env.lifecycle.DeleteTask(ctx, taskID, rng.Intn(2) == 0)
				case 6:
					_, err = env.lifecycle.OverrideReject(ctx, taskID, "")
				}
				if err != nil {
					require.True(t,
						errors.Is(err, ErrInvalidTransition) ||
							errors.Is(err, ErrNotFound) ||
							errors.Is(err, ErrConfirmationRequired),
						"unexpected error: %v", err)
				}
			}

			if rate == 0 {
				assert.Empty(t, env.drift(t))
				return
			}

			require.Positive(t, flaky.Failures())
			flaky.rate = 0
			_, err := env.ledger.Reconcile(ctx)
			require.NoError(t, err)
			assert.Empty(t, env.drift(t))
		})
	}
}

var errInjected = errors.New("injected ledger failure")

// flakyWorkers fails workload adjustments at the given rate.
type flakyWorkers struct {
	repository.WorkerRepository
	rate float64
	rng  *rand.Rand

	mu       sync.Mutex
	failures int
}

func (f *flakyWorkers) AdjustWorkload(ctx context.Context, userID string, delta int) (int, error) {
	f.mu.Lock()
	fail := f.rate >= 1 || (f.rate > 0 && f.rng.Float64() < f.rate)
	if fail {
		f.failures++
	}
	f.mu.Unlock()

	if fail {
		return 0, errInjected
	}
	return f.WorkerRepository.AdjustWorkload(ctx, userID, delta)
}

func (f *flakyWorkers) Failures() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failures
}

type failingSkills struct {
	repository.TaskRepository
}

func (failingSkills) ReplaceSkills(context.Context, string, []string) error {
	return errors.New("skills table unavailable")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
