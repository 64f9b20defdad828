package models

import (
	"time"

	"gorm.io/datatypes"
)

type InteractionType string
type Priority string
type Direction string

const (
	InteractionEmail   InteractionType = "email"
	InteractionCall    InteractionType = "call"
	InteractionMeeting InteractionType = "meeting"
	InteractionNote    InteractionType = "note"
	InteractionMessage InteractionType = "message"
	InteractionFile    InteractionType = "file"

	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"

	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

func (t InteractionType) Valid() bool {
	switch t {
	case InteractionEmail, InteractionCall, InteractionMeeting,
		InteractionNote, InteractionMessage, InteractionFile:
		return true
	}
	return false
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

func (d Direction) Valid() bool {
	return d == DirectionIn || d == DirectionOut
}

type Attachment struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Size     int64  `json:"size,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// Interaction is a customer facing or internal touch on a lead.
type Interaction struct {
	ID       uint  `gorm:"primaryKey" json:"id"`
	TenantID uint  `gorm:"not null;index" json:"tenantId"`
	LeadID   uint  `gorm:"not null;index" json:"leadId"`
	Lead     *Lead `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserID   uint  `gorm:"not null" json:"userId"`
	User     *User `json:"user,omitempty"`

	Type     InteractionType `gorm:"type:varchar(20);not null;index" json:"type"`
	Category string          `gorm:"size:50;index" json:"category"`
	Priority Priority        `gorm:"type:varchar(10);not null;default:medium;index" json:"priority"`
	Notes    string          `gorm:"type:text" json:"notes"`

	Tags        datatypes.JSONSlice[string]     `json:"tags"`
	Attachments datatypes.JSONSlice[Attachment] `json:"attachments"`
	IsPrivate   bool                            `gorm:"not null;default:false" json:"isPrivate"`

	NextFollowUp *time.Time     `gorm:"index" json:"nextFollowUp"`
	Metadata     datatypes.JSON `json:"metadata"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
