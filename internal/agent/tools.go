// Package agent exposes the task engine as tools for a chat assistant.
//
// The tools are thin adapters: each one validates its JSON arguments and
// calls the same services the HTTP handlers use, so state machine and
// workload semantics are identical on both surfaces.
package agent

import (
	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"github.com/yukikurage/taskboard/internal/constants"
)

// Tool names
const (
	ToolCreateTask       = "create_task"
	ToolAssignTask       = "assign_task"
	ToolUpdateTask       = "update_task"
	ToolDeleteTask       = "delete_task"
	ToolListTasks        = "list_tasks"
	ToolGetTaskDetails   = "get_task_details"
	ToolRecommendWorkers = "recommend_workers"
)

// Output formats
const (
	FormatStructured = "structured"
	FormatSummary    = "summary"
)

var (
	priorityEnum = []string{"low", "medium", "high"}
	statusEnum   = []string{"pending", "invited", "accepted", "ongoing", "completed", "rejected"}
	formatEnum   = []string{FormatStructured, FormatSummary}
)

func uuidProp(description string) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.String, Description: description + " (UUID)"}
}

func formatProp() jsonschema.Definition {
	return jsonschema.Definition{
		Type:        jsonschema.String,
		Enum:        formatEnum,
		Description: "structured returns the record, summary returns one readable sentence",
	}
}

func skillsProp() jsonschema.Definition {
	return jsonschema.Definition{
		Type:        jsonschema.Array,
		Items:       &jsonschema.Definition{Type: jsonschema.String},
		Description: "Required skills, matched case-insensitively",
	}
}

var definitions = map[string]openai.FunctionDefinition{
	ToolCreateTask: {
		Name:        ToolCreateTask,
		Description: "Create a pending task.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"title":           {Type: jsonschema.String, Description: "Short task title"},
				"description":     {Type: jsonschema.String, Description: "What needs to be done"},
				"priority":        {Type: jsonschema.String, Enum: priorityEnum},
				"deadline":        {Type: jsonschema.String, Description: "YYYY-MM-DD or RFC 3339 timestamp, in the future"},
				"estimated_hours": {Type: jsonschema.Number, Description: "Positive number of hours"},
				"required_skills": skillsProp(),
				"format":          formatProp(),
			},
			Required: []string{"title", "description"},
		},
	},
	ToolAssignTask: {
		Name:        ToolAssignTask,
		Description: "Invite a worker to a task. Reassigns the task if it is already assigned.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"task_id":   uuidProp("Task id"),
				"worker_id": uuidProp("Worker user id"),
				"format":    formatProp(),
			},
			Required: []string{"task_id", "worker_id"},
		},
	},
	ToolUpdateTask: {
		Name:        ToolUpdateTask,
		Description: "Edit task fields, report progress (100 completes the task) or reject the task.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"task_id":         uuidProp("Task id"),
				"title":           {Type: jsonschema.String},
				"description":     {Type: jsonschema.String},
				"priority":        {Type: jsonschema.String, Enum: priorityEnum},
				"deadline":        {Type: jsonschema.String, Description: "YYYY-MM-DD or RFC 3339 timestamp"},
				"clear_deadline":  {Type: jsonschema.Boolean},
				"estimated_hours": {Type: jsonschema.Number},
				"required_skills": skillsProp(),
				"progress":        {Type: jsonschema.Integer, Description: "0 to 100"},
				"note":            {Type: jsonschema.String, Description: "Progress note"},
				"hours_logged":    {Type: jsonschema.Number},
				"reject":          {Type: jsonschema.Boolean, Description: "Reject the task as an administrator"},
				"reason":          {Type: jsonschema.String, Description: "Rejection reason"},
				"format":          formatProp(),
			},
			Required: []string{"task_id"},
		},
	},
	ToolDeleteTask: {
		Name:        ToolDeleteTask,
		Description: "Delete a task. Requires confirm=true; ask the user before setting it.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"task_id": uuidProp("Task id"),
				"confirm": {Type: jsonschema.Boolean},
				"format":  formatProp(),
			},
			Required: []string{"task_id"},
		},
	},
	ToolListTasks: {
		Name:        ToolListTasks,
		Description: "List tasks, newest first.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"status":      {Type: jsonschema.String, Enum: statusEnum},
				"priority":    {Type: jsonschema.String, Enum: priorityEnum},
				"assigned_to": uuidProp("Worker user id"),
				"page":        {Type: jsonschema.Integer},
				"limit":       {Type: jsonschema.Integer, Description: "At most 50"},
				"format":      formatProp(),
			},
		},
	},
	ToolGetTaskDetails: {
		Name:        ToolGetTaskDetails,
		Description: "Get a task with its skills, assignee and progress history.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"task_id": uuidProp("Task id"),
				"format":  formatProp(),
			},
			Required: []string{"task_id"},
		},
	},
	ToolRecommendWorkers: {
		Name:        ToolRecommendWorkers,
		Description: "Rank available workers for a task by skill match, capacity and performance.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"task_id": uuidProp("Task id"),
				"limit":   {Type: jsonschema.Integer},
				"format":  formatProp(),
			},
			Required: []string{"task_id"},
		},
	},
}

// toolOrder fixes the order tools are advertised in.
var toolOrder = []string{
	ToolCreateTask,
	ToolAssignTask,
	ToolUpdateTask,
	ToolDeleteTask,
	ToolListTasks,
	ToolGetTaskDetails,
	ToolRecommendWorkers,
}

// Tools returns every tool definition for a chat completion request.
func Tools() []openai.Tool {
	tools := make([]openai.Tool, 0, len(toolOrder))
	for _, name := range toolOrder {
		def := definitions[name]
		tools = append(tools, openai.Tool{Type: openai.ToolTypeFunction, Function: &def})
	}
	return tools
}

// maxListLimit caps list_tasks pages.
const maxListLimit = constants.MaxAgentListLimit
