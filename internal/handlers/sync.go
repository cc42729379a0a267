package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/taskboard/internal/errors"
	"github.com/yukikurage/taskboard/internal/middleware"
	"github.com/yukikurage/taskboard/internal/realtime"
)

// SyncHandler streams change notifications and exposes the hub's state.
type SyncHandler struct {
	hub   *realtime.Hub
	tasks middleware.TaskLoader
}

func NewSyncHandler(hub *realtime.Hub, tasks middleware.TaskLoader) *SyncHandler {
	return &SyncHandler{hub: hub, tasks: tasks}
}

// Events streams notifications as server-sent events until the client
// disconnects. Query parameters table, kind and record_id narrow the stream.
// Workers only hear about their own profile and the tasks assigned to them,
// and receive notifications without payloads.
func (h *SyncHandler) Events(c *gin.Context) {
	scope, ok := parseSubscription(c)
	if !ok {
		return
	}
	withPayload := middleware.IsAdmin(c)
	if !withPayload {
		userID, _ := middleware.GetUserID(c)
		scope.Filter = both(scope.Filter, h.visibleTo(c.Request.Context(), userID))
	}

	sub := h.hub.Subscribe(scope)
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	state, _ := h.hub.State()
	c.SSEvent("ready", gin.H{"state": state})
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case n, ok := <-sub.C:
			if !ok {
				return false
			}
			if !withPayload {
				n.Latest.Payload = nil
			}
			c.SSEvent("change", n)
			return true
		}
	})
}

// Status reports the hub's connection state
func (h *SyncHandler) Status(c *gin.Context) {
	state, err := h.hub.State()
	resp := gin.H{
		"state":         state,
		"subscriptions": h.hub.SubscriptionCount(),
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// Reconnect tears down and re-establishes the feed subscription
func (h *SyncHandler) Reconnect(c *gin.Context) {
	if err := h.hub.Reconnect(); err != nil {
		apierrors.ServiceUnavailable(c, "Failed to reconnect to change feed: "+err.Error())
		return
	}
	h.Status(c)
}

func parseSubscription(c *gin.Context) (realtime.SubscriptionSpec, bool) {
	var scope realtime.SubscriptionSpec

	switch table := realtime.Table(c.Query("table")); table {
	case "", realtime.TableTasks, realtime.TableWorkerProfiles, realtime.TableTaskUpdates:
		scope.Table = table
	default:
		apierrors.BadRequest(c, "Invalid table")
		return scope, false
	}

	switch kind := realtime.Kind(c.Query("kind")); kind {
	case "", realtime.KindInsert, realtime.KindUpdate, realtime.KindDelete:
		scope.Kind = kind
	default:
		apierrors.BadRequest(c, "Invalid kind")
		return scope, false
	}

	if id := c.Query("record_id"); id != "" {
		scope.Filter = func(ev realtime.ChangeEvent) bool {
			return ev.RecordID == id
		}
	}
	return scope, true
}

// assignment is the part of a task event payload that names assignees.
type assignment struct {
	AssignedTo         *string `json:"assigned_to"`
	PreviousAssignedTo *string `json:"previous_assigned_to"`
}

// visibleTo admits events about userID's profile and about tasks that are,
// or just were, assigned to userID.
func (h *SyncHandler) visibleTo(ctx context.Context, userID string) realtime.Filter {
	return func(ev realtime.ChangeEvent) bool {
		switch ev.Table {
		case realtime.TableWorkerProfiles:
			return ev.RecordID == userID
		case realtime.TableTasks, realtime.TableTaskUpdates:
		default:
			return false
		}

		if ev.Table == realtime.TableTasks {
			var a assignment
			if json.Unmarshal(ev.Payload, &a) == nil &&
				(isUser(a.AssignedTo, userID) || isUser(a.PreviousAssignedTo, userID)) {
				return true
			}
			if ev.Kind == realtime.KindDelete {
				return false
			}
		}

		// task_updates events carry the task id as their record id
		task, err := h.tasks.GetTask(ctx, ev.RecordID)
		if err != nil {
			return false
		}
		return isUser(task.AssignedTo, userID)
	}
}

func isUser(id *string, userID string) bool {
	return id != nil && *id == userID
}

func both(a, b realtime.Filter) realtime.Filter {
	if a == nil {
		return b
	}
	return func(ev realtime.ChangeEvent) bool {
		return a(ev) && b(ev)
	}
}
