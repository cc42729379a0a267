package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskboard/internal/constants"
	"github.com/yukikurage/taskboard/internal/dto"
	apierrors "github.com/yukikurage/taskboard/internal/errors"
	"github.com/yukikurage/taskboard/internal/middleware"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/services"
)

// AuthHandler is the identity boundary: signup, session start and end, and
// the signed-in user's view of themselves.
type AuthHandler struct {
	auth    *services.AuthService
	workers *services.WorkerService
}

func NewAuthHandler(auth *services.AuthService, workers *services.WorkerService) *AuthHandler {
	return &AuthHandler{auth: auth, workers: workers}
}

// Signup registers a worker with an empty, available profile.
// Administrators are provisioned from the CLI.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req dto.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.FromBindError(c, err)
		return
	}

	user, err := h.auth.Signup(c.Request.Context(), services.SignupInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	h.respondSession(c, http.StatusCreated, user)
}

// Login checks credentials and stores the user id and role in the session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.FromBindError(c, err)
		return
	}

	user, err := h.auth.Login(c.Request.Context(), services.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	session := sessions.Default(c)
	session.Clear()
	session.Set(constants.ContextKeyUserID, user.ID)
	session.Set(constants.ContextKeyUserRole, string(user.Role))
	if err := session.Save(); err != nil {
		apierrors.InternalError(c, "Failed to save session")
		return
	}

	h.respondSession(c, http.StatusOK, user)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		apierrors.InternalError(c, "Failed to logout")
		return
	}

	c.Status(http.StatusNoContent)
}

// GetCurrentUser returns the session view of the signed-in user.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	user, err := h.auth.GetUser(c.Request.Context(), userID)
	if err != nil {
		apierrors.FromServiceError(c, err)
		return
	}

	h.respondSession(c, http.StatusOK, user)
}

// respondSession attaches the worker profile, with its live workload, for
// workers. A missing profile is reported as an absent worker section.
func (h *AuthHandler) respondSession(c *gin.Context, status int, user *models.User) {
	var profile *models.WorkerProfile
	if user.Role == models.RoleWorker {
		p, err := h.workers.GetWorker(c.Request.Context(), user.ID)
		if err == nil {
			profile = p
		}
	}
	c.JSON(status, dto.ToSessionDTO(*user, profile))
}
