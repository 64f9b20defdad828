package handlers

import (
	"crm-pipeline/internal/events"
	"crm-pipeline/internal/services/activity"
	"crm-pipeline/internal/services/assignment"
	"crm-pipeline/internal/services/column"
	"crm-pipeline/internal/services/interaction"
	"crm-pipeline/internal/services/lead"
	"crm-pipeline/internal/services/timeline"

	"gorm.io/gorm"
)

// Deps are the services the HTTP layer talks to.
type Deps struct {
	DB           *gorm.DB
	Columns      column.Service
	Leads        lead.Service
	Activities   activity.Service
	Assignments  assignment.Service
	Interactions interaction.Service
	Timeline     timeline.Service
	Hub          *events.Hub
}

type Handler struct {
	db           *gorm.DB
	columns      column.Service
	leads        lead.Service
	activities   activity.Service
	assignments  assignment.Service
	interactions interaction.Service
	timeline     timeline.Service
	hub          *events.Hub
}

func New(d Deps) *Handler {
	return &Handler{
		db:           d.DB,
		columns:      d.Columns,
		leads:        d.Leads,
		activities:   d.Activities,
		assignments:  d.Assignments,
		interactions: d.Interactions,
		timeline:     d.Timeline,
		hub:          d.Hub,
	}
}
