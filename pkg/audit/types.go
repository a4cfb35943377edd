package audit

import (
	"context"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthSignup            EventType = "auth.signup"
	EventTypeAuthLogin             EventType = "auth.login"
	EventTypeAuthTokenCreate       EventType = "auth.token_create"
	EventTypeAuthTokenRevoke       EventType = "auth.token_revoke"
	EventTypeAuthTokenValidateFail EventType = "auth.token_validate_fail"

	// Authorization events
	EventTypeAuthzAccessDenied EventType = "authz.access_denied"
	EventTypeAuthzRoleChange   EventType = "authz.role_change"

	// Data mutation events
	EventTypeDataProjectCreate    EventType = "data.project_create"
	EventTypeDataProjectUpdate    EventType = "data.project_update"
	EventTypeDataProjectDelete    EventType = "data.project_delete"
	EventTypeDataAssignmentCreate EventType = "data.assignment_create"
	EventTypeDataAssignmentDelete EventType = "data.assignment_delete"
	EventTypeDataDocumentCreate   EventType = "data.document_create"
	EventTypeDataObjectUpload     EventType = "data.object_upload"
	EventTypeDataObjectDownload   EventType = "data.object_download"

	// Admin events
	EventTypeAdminProfileCreate EventType = "admin.profile_create"
	EventTypeAdminProfileDelete EventType = "admin.profile_delete"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceTypeProfile    ResourceType = "profile"
	ResourceTypeProject    ResourceType = "project"
	ResourceTypeAssignment ResourceType = "assignment"
	ResourceTypeDocument   ResourceType = "document"
	ResourceTypeObject     ResourceType = "object"
	ResourceTypeToken      ResourceType = "token"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor
	UserID    string `json:"user_id,omitempty"`
	Role      string `json:"role,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	// Target
	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	Message string `json:"message,omitempty"`
}

// Logger records audit events. The DB implementation is the only one in
// production; the interface exists so handlers can be tested with a fake.
type Logger interface {
	Log(ctx context.Context, event *Event) error
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	UserID     string
	EventTypes []EventType
	Status     *EventStatus

	ResourceType ResourceType
	ResourceID   string

	Limit  int
	Offset int
}

// RetentionPolicy defines how long audit rows are kept
type RetentionPolicy struct {
	RetentionDays int
}

// DefaultRetentionPolicy returns a default retention policy (90 days)
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{RetentionDays: 90}
}
