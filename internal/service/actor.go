package service

import (
	"encoding/json"

	"github.com/noah-isme/sma-attendance-api/internal/models"
)

// Actor identifies the authenticated user performing an operation.
type Actor struct {
	UserID    string
	Role      models.UserRole
	IP        string
	UserAgent string
}

// HasRole reports whether the actor holds one of the roles.
func (a Actor) HasRole(roles ...models.UserRole) bool {
	for _, role := range roles {
		if a.Role == role {
			return true
		}
	}
	return false
}

func (a Actor) auditLog(action, resource, resourceID string, values map[string]interface{}) *models.AuditLog {
	entry := &models.AuditLog{
		Action:    action,
		Resource:  resource,
		IPAddress: a.IP,
		UserAgent: a.UserAgent,
	}
	if a.UserID != "" {
		userID := a.UserID
		entry.UserID = &userID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if values != nil {
		if payload, err := json.Marshal(values); err == nil {
			entry.NewValues = payload
		}
	}
	return entry
}
