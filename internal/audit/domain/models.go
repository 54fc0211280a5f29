package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditLog records a destructive change together with the actor behind it.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorID    string            `gorm:"type:varchar(100);not null" json:"actor_id"`
	Action     string            `gorm:"type:varchar(100);not null;index:ix_audit_logs_action" json:"action"`
	TargetType string            `gorm:"type:varchar(50);not null;index:ix_audit_logs_target,priority:1" json:"target_type"`
	TargetID   string            `gorm:"type:varchar(50);not null;index:ix_audit_logs_target,priority:2" json:"target_id"`
	RequestID  *string           `gorm:"type:varchar(100)" json:"request_id,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"not null" json:"metadata"`
	CreatedAt  time.Time         `gorm:"not null;index:ix_audit_logs_created_at" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
