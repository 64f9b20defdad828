package models

import (
	"time"

	"gorm.io/datatypes"
)

type LeadStatus string
type Pipeline string
type Temperature string

const (
	StatusNew         LeadStatus = "new"
	StatusContacted   LeadStatus = "contacted"
	StatusFollowUp    LeadStatus = "follow_up"
	StatusProposal    LeadStatus = "proposal"
	StatusNegotiation LeadStatus = "negotiation"
	StatusQualified   LeadStatus = "qualified"
	StatusUnqualified LeadStatus = "unqualified"
	StatusConverted   LeadStatus = "converted"
	StatusLost        LeadStatus = "lost"

	PipelineDefault    Pipeline = "default"
	PipelineSales      Pipeline = "sales"
	PipelineSupport    Pipeline = "support"
	PipelineOnboarding Pipeline = "onboarding"

	TemperatureHot  Temperature = "hot"
	TemperatureWarm Temperature = "warm"
	TemperatureCold Temperature = "cold"
)

var LeadStatuses = []LeadStatus{
	StatusNew, StatusContacted, StatusFollowUp, StatusProposal, StatusNegotiation,
	StatusQualified, StatusUnqualified, StatusConverted, StatusLost,
}

var Pipelines = []Pipeline{PipelineDefault, PipelineSales, PipelineSupport, PipelineOnboarding}

func (s LeadStatus) Valid() bool {
	for _, v := range LeadStatuses {
		if s == v {
			return true
		}
	}
	return false
}

func (p Pipeline) Valid() bool {
	for _, v := range Pipelines {
		if p == v {
			return true
		}
	}
	return false
}

func (t Temperature) Valid() bool {
	switch t {
	case TemperatureHot, TemperatureWarm, TemperatureCold:
		return true
	}
	return false
}

// CanTransition is the single status transition policy. Moves are operator
// driven, so any known status may follow any other; an allow-list belongs here.
func CanTransition(from, to LeadStatus) error {
	if !to.Valid() {
		return Invalid("status", "unknown status %q", to)
	}
	return nil
}

type Lead struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	TenantID uint `gorm:"not null;index" json:"tenantId"`

	ContactID uint     `gorm:"not null;index" json:"contactId"`
	Contact   *Contact `json:"contact,omitempty"`

	AssignedToID *uint `gorm:"index" json:"assignedToId"`
	AssignedTo   *User `gorm:"foreignKey:AssignedToID" json:"assignedTo,omitempty"`
	CreatedByID  uint  `json:"createdById"`

	ColumnID *uint   `gorm:"index" json:"columnId"`
	Column   *Column `json:"column,omitempty"`

	Status      LeadStatus  `gorm:"type:varchar(32);not null;default:new;index" json:"status"`
	Pipeline    Pipeline    `gorm:"type:varchar(32);not null;default:default" json:"pipeline"`
	Temperature Temperature `gorm:"type:varchar(16);not null;default:warm" json:"temperature"`
	Source      string      `gorm:"size:100" json:"source"`
	Title       string      `gorm:"size:255" json:"title"`
	Description string      `gorm:"type:text" json:"description"`

	ExpectedValue       float64    `json:"expectedValue"`
	Currency            string     `gorm:"size:3;not null;default:USD" json:"currency"`
	Probability         int        `gorm:"not null;default:0" json:"probability"`
	ExpectedClosingDate *time.Time `json:"expectedClosingDate"`

	Tags         datatypes.JSONSlice[string] `json:"tags"`
	CustomFields datatypes.JSONMap           `json:"customFields"`
	Metadata     datatypes.JSONMap           `json:"metadata"`

	LastContactedAt *time.Time `json:"lastContactedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
