package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ActivityKind string

const (
	ActivityStatus   ActivityKind = "status"
	ActivityPipeline ActivityKind = "pipeline"
	ActivityNote     ActivityKind = "note"
	ActivityEmail    ActivityKind = "email"
	ActivityFile     ActivityKind = "file"
	ActivityMessage  ActivityKind = "message"
)

var ActivityKinds = []ActivityKind{
	ActivityStatus, ActivityPipeline, ActivityNote, ActivityEmail, ActivityFile, ActivityMessage,
}

func (k ActivityKind) Valid() bool {
	for _, v := range ActivityKinds {
		if k == v {
			return true
		}
	}
	return false
}

// Activity is one immutable entry of the pipeline ledger. Status/Pipeline
// columns are only populated for the matching kinds; everything
// kind-specific lives in Metadata.
type Activity struct {
	ID       uint  `gorm:"primaryKey" json:"id"`
	TenantID uint  `gorm:"not null;index" json:"tenantId"`
	LeadID   uint  `gorm:"not null;index" json:"leadId"`
	Lead     *Lead `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	Kind   ActivityKind `gorm:"column:activity_type;type:varchar(20);not null;index" json:"activityType"`
	UserID uint         `gorm:"not null" json:"userId"`
	User   *User        `json:"user,omitempty"`
	Notes  string       `gorm:"type:text" json:"notes"`

	InteractionID *uint `gorm:"index" json:"interactionId"`

	Status           LeadStatus `gorm:"type:varchar(32)" json:"status,omitempty"`
	PreviousStatus   LeadStatus `gorm:"type:varchar(32)" json:"previousStatus,omitempty"`
	Pipeline         Pipeline   `gorm:"type:varchar(32)" json:"pipeline,omitempty"`
	PreviousPipeline Pipeline   `gorm:"type:varchar(32)" json:"previousPipeline,omitempty"`

	Metadata datatypes.JSON `json:"metadata"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (a *Activity) BeforeUpdate(*gorm.DB) error { return ErrAppendOnly }
func (a *Activity) BeforeDelete(*gorm.DB) error { return ErrAppendOnly }

// AssignmentRecord is one immutable ownership transfer.
type AssignmentRecord struct {
	ID       uint  `gorm:"primaryKey" json:"id"`
	TenantID uint  `gorm:"not null;index" json:"tenantId"`
	LeadID   uint  `gorm:"not null;index" json:"leadId"`
	Lead     *Lead `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	PreviousOwnerID *uint `json:"previousOwnerId"`
	PreviousOwner   *User `gorm:"foreignKey:PreviousOwnerID" json:"previousOwner,omitempty"`
	NewOwnerID      uint  `gorm:"not null" json:"newOwnerId"`
	NewOwner        *User `gorm:"foreignKey:NewOwnerID" json:"newOwner,omitempty"`
	ActorID         uint  `gorm:"not null" json:"actorId"`
	Actor           *User `gorm:"foreignKey:ActorID" json:"actor,omitempty"`

	Reason    string    `gorm:"type:text" json:"reason"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

func (r *AssignmentRecord) BeforeUpdate(*gorm.DB) error { return ErrAppendOnly }
func (r *AssignmentRecord) BeforeDelete(*gorm.DB) error { return ErrAppendOnly }

type Follower struct {
	ID     uint  `gorm:"primaryKey" json:"id"`
	LeadID uint  `gorm:"not null;uniqueIndex:ux_followers_lead_user,priority:1" json:"leadId"`
	Lead   *Lead `gorm:"constraint:OnDelete:CASCADE" json:"lead,omitempty"`
	UserID uint  `gorm:"not null;uniqueIndex:ux_followers_lead_user,priority:2;index" json:"userId"`
	User   *User `json:"user,omitempty"`

	NotificationsEnabled bool `gorm:"not null;default:true" json:"notificationsEnabled"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
