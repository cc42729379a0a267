package agent

import (
	"fmt"
	"strings"

	"github.com/yukikurage/taskboard/internal/matching"
	"github.com/yukikurage/taskboard/internal/models"
)

func summarizeTask(verb string, t *models.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s task %q (%s): status %s, priority %s, progress %d%%", verb, t.Title, t.ID, t.Status, t.Priority, t.Progress)
	if t.Assignee != nil && t.Assignee.User.Username != "" {
		fmt.Fprintf(&b, ", assigned to %s", t.Assignee.User.Username)
	} else if t.AssignedTo != nil {
		fmt.Fprintf(&b, ", assigned to %s", *t.AssignedTo)
	}
	if t.Deadline != nil {
		if t.DeadlineDateOnly {
			fmt.Fprintf(&b, ", due %s", t.Deadline.Format("2006-01-02"))
		} else {
			fmt.Fprintf(&b, ", due %s", t.Deadline.Format("2006-01-02 15:04 MST"))
		}
	}
	b.WriteString(".")
	return b.String()
}

func summarizeTaskDetail(t *models.Task) string {
	var b strings.Builder
	b.WriteString(summarizeTask("Task", t))
	if skills := t.SkillNames(); len(skills) > 0 {
		fmt.Fprintf(&b, " Skills: %s.", strings.Join(skills, ", "))
	}
	if n := len(t.Updates); n > 0 {
		last := t.Updates[n-1]
		fmt.Fprintf(&b, " %d progress update(s), latest %d%%", n, last.Progress)
		if last.Note != "" {
			fmt.Fprintf(&b, ": %q", last.Note)
		}
		b.WriteString(".")
	}
	return b.String()
}

func summarizeTaskList(tasks []models.Task, total int64) string {
	if len(tasks) == 0 {
		return "No tasks found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Showing %d of %d task(s):", len(tasks), total)
	for _, t := range tasks {
		fmt.Fprintf(&b, "\n- %q [%s, %s] %s", t.Title, t.Status, t.Priority, t.ID)
	}
	return b.String()
}

func summarizeCandidates(candidates []matching.Candidate) string {
	if len(candidates) == 0 {
		return "No available workers."
	}

	var b strings.Builder
	b.WriteString("Recommended workers:")
	for i, c := range candidates {
		name := c.Worker.User.Username
		if name == "" {
			name = c.Worker.UserID
		}
		fmt.Fprintf(&b, "\n%d. %s: %.1f (%s), skills %.0f%%, workload %d",
			i+1, name, c.Score, c.Band, c.SkillMatchPct, c.Worker.CurrentWorkload)
	}
	return b.String()
}
