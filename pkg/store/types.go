package store

import (
	"time"

	"github.com/crewdesk/crewdesk/pkg/authz"
)

// Profile represents a user profile, one per identity
type Profile struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Role      authz.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Project represents a project
type Project struct {
	ID            int64               `json:"id"`
	Name          string              `json:"name"`
	Description   *string             `json:"description,omitempty"`
	Deadline      *time.Time          `json:"deadline,omitempty"`
	Status        authz.ProjectStatus `json:"status"`
	CreatedBy     string              `json:"created_by"`
	ProjectLeadID *string             `json:"project_lead_id,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// Assignment links a user profile to a project. The (project, user) pair is
// unique.
type Assignment struct {
	ID         int64     `json:"id"`
	ProjectID  int64     `json:"project_id"`
	UserID     string    `json:"user_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Document is the metadata row for an uploaded file. FilePath is the key of
// the binary payload in object storage.
type Document struct {
	ID         int64     `json:"id"`
	ProjectID  int64     `json:"project_id"`
	FileName   string    `json:"file_name"`
	FilePath   string    `json:"file_path"`
	FileSize   *int64    `json:"file_size,omitempty"`
	UploadedBy string    `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}
