package dto

import "github.com/yukikurage/taskboard/internal/models"

// CredentialsRequest is the body of signup and login
type CredentialsRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required"`
}

// SessionDTO describes who is signed in. Worker is set for workers only.
type SessionDTO struct {
	User   UserDTO    `json:"user"`
	Worker *WorkerDTO `json:"worker,omitempty"`
}

func ToSessionDTO(user models.User, profile *models.WorkerProfile) SessionDTO {
	session := SessionDTO{User: ToUserDTO(user)}
	if profile != nil {
		worker := ToWorkerDTO(*profile)
		session.Worker = &worker
	}
	return session
}
