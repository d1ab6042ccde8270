package model

import (
	"time"

	"github.com/google/uuid"
)

type AuditLog struct {
	ID         uuid.UUID `json:"id" db:"id"`
	UserID     *int64    `json:"userId" db:"user_id"`
	Action     string    `json:"action" db:"action"`
	EntityType string    `json:"entityType" db:"entity_type"`
	EntityID   string    `json:"entityId" db:"entity_id"`
	Metadata   JSONMap   `json:"metadata" db:"metadata"`
	IPAddress  string    `json:"ipAddress" db:"ip_address"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

const (
	// Action types
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
	AuditActionLogin  = "login"

	// Entity types
	AuditEntityUser     = "user"
	AuditEntityPatient  = "patient"
	AuditEntityReading  = "reading"
	AuditEntityReferral = "referral"
	AuditEntityFollowUp = "followup"
)
