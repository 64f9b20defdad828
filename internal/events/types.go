package events

import (
	"time"

	"crm-pipeline/internal/models"

	"github.com/google/uuid"
)

// Action is what happened to the entity. Clients switch on it.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionActivity Action = "activity_update"
)

// Topic names the kind of entity carried by an event.
type Topic string

const (
	TopicLead   Topic = "lead"
	TopicColumn Topic = "lead-column"
)

// Event is an immutable notification about one committed mutation.
type Event struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uint      `json:"-"`
	Topic     Topic     `json:"topic"`
	Action    Action    `json:"action"`
	Entity    any       `json:"entity"`
	Timestamp time.Time `json:"timestamp"`
}

func New(tenantID uint, topic Topic, action Action, entity any) Event {
	return Event{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Topic:     topic,
		Action:    action,
		Entity:    entity,
		Timestamp: time.Now().UTC(),
	}
}

// LeadChange is the entity of a lead event that also appended a ledger entry.
type LeadChange struct {
	*models.Lead
	LastActivity    *models.Activity    `json:"lastActivity,omitempty"`
	LastInteraction *models.Interaction `json:"lastInteraction,omitempty"`
}
