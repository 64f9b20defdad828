package lead

import (
	"strings"
	"time"

	"crm-pipeline/internal/models"
)

const maxTitleLength = 255

type CreateLeadRequest struct {
	ContactID    uint  `json:"contactId"`
	AssignedToID *uint `json:"assignedToId"`
	// ColumnID places the lead in a lane; its pipeline and status follow.
	ColumnID *uint `json:"columnId"`

	Temperature models.Temperature `json:"temperature"`
	Source      string             `json:"source"`
	Title       string             `json:"title"`
	Description string             `json:"description"`

	ExpectedValue       float64    `json:"expectedValue"`
	Currency            string     `json:"currency"`
	Probability         int        `json:"probability"`
	ExpectedClosingDate *time.Time `json:"expectedClosingDate"`

	Tags         []string       `json:"tags"`
	CustomFields map[string]any `json:"customFields"`
	Metadata     map[string]any `json:"metadata"`
}

// UpdateLeadRequest carries the fields to change; nil means unchanged. Stage
// changes go through MoveLead, so status, pipeline and lane are not here.
type UpdateLeadRequest struct {
	AssignedToID *uint  `json:"assignedToId"`
	Reason       string `json:"reason"`

	Temperature *models.Temperature `json:"temperature"`
	Source      *string             `json:"source"`
	Title       *string             `json:"title"`
	Description *string             `json:"description"`

	ExpectedValue       *float64   `json:"expectedValue"`
	Currency            *string    `json:"currency"`
	Probability         *int       `json:"probability"`
	ExpectedClosingDate *time.Time `json:"expectedClosingDate"`

	Tags         *[]string      `json:"tags"`
	CustomFields map[string]any `json:"customFields"`
	Metadata     map[string]any `json:"metadata"`
}

type ListLeadsRequest struct {
	SearchParam string
	PageNumber  int
}

func (r *CreateLeadRequest) normalize() error {
	if r.ContactID == 0 {
		return ErrMissingContact
	}
	if r.AssignedToID != nil && *r.AssignedToID == 0 {
		return ErrInvalidAssignee
	}
	if r.Temperature == "" {
		r.Temperature = models.TemperatureWarm
	}
	if r.Currency == "" {
		r.Currency = "USD"
	}

	r.Title = strings.TrimSpace(r.Title)
	r.Source = strings.TrimSpace(r.Source)
	currency, err := checkFields(r.Temperature, r.Title, r.Currency, r.Probability, r.ExpectedValue)
	if err != nil {
		return err
	}
	r.Currency = currency
	return nil
}

// apply copies the set fields onto lead. Ownership is handled by the caller.
func (r *UpdateLeadRequest) apply(lead *models.Lead) error {
	if r.AssignedToID != nil && *r.AssignedToID == 0 {
		return ErrInvalidAssignee
	}
	if r.Temperature != nil {
		lead.Temperature = *r.Temperature
	}
	if r.Source != nil {
		lead.Source = strings.TrimSpace(*r.Source)
	}
	if r.Title != nil {
		lead.Title = strings.TrimSpace(*r.Title)
	}
	if r.Description != nil {
		lead.Description = *r.Description
	}
	if r.ExpectedValue != nil {
		lead.ExpectedValue = *r.ExpectedValue
	}
	if r.Currency != nil {
		lead.Currency = *r.Currency
	}
	if r.Probability != nil {
		lead.Probability = *r.Probability
	}
	if r.ExpectedClosingDate != nil {
		lead.ExpectedClosingDate = r.ExpectedClosingDate
	}
	if r.Tags != nil {
		lead.Tags = *r.Tags
	}
	if r.CustomFields != nil {
		lead.CustomFields = r.CustomFields
	}
	if r.Metadata != nil {
		lead.Metadata = r.Metadata
	}

	currency, err := checkFields(lead.Temperature, lead.Title, lead.Currency, lead.Probability, lead.ExpectedValue)
	if err != nil {
		return err
	}
	lead.Currency = currency
	return nil
}

func checkFields(temp models.Temperature, title, currency string, probability int, value float64) (string, error) {
	if !temp.Valid() {
		return "", ErrInvalidTemperature
	}
	if len([]rune(title)) > maxTitleLength {
		return "", ErrTitleTooLong
	}
	if probability < 0 || probability > 100 {
		return "", ErrInvalidProbability
	}
	if value < 0 {
		return "", ErrInvalidValue
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return "", ErrInvalidCurrency
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return "", ErrInvalidCurrency
		}
	}
	return currency, nil
}
