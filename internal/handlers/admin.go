package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apierrors "github.com/yukikurage/taskboard/internal/errors"
	"github.com/yukikurage/taskboard/internal/services"
)

// AdminHandler serves maintenance operations.
type AdminHandler struct {
	reconciler *services.Reconciler
}

func NewAdminHandler(reconciler *services.Reconciler) *AdminHandler {
	return &AdminHandler{reconciler: reconciler}
}

// Reconcile recounts workloads now and returns the report
func (h *AdminHandler) Reconcile(c *gin.Context) {
	report, err := h.reconciler.RunOnce(c.Request.Context())
	if err != nil {
		apierrors.InternalError(c, "Failed to reconcile workloads")
		return
	}

	c.JSON(http.StatusOK, report)
}

// LastReconcile returns the most recent report
func (h *AdminHandler) LastReconcile(c *gin.Context) {
	report := h.reconciler.LastReport()
	if report == nil {
		apierrors.NotFound(c, "No reconciliation has run yet")
		return
	}

	c.JSON(http.StatusOK, report)
}
