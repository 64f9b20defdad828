package lead

import (
	"fmt"

	"crm-pipeline/internal/models"
)

// Lead-related errors
var (
	// Validation errors
	ErrInvalidProbability = fmt.Errorf("%w: probability must be between 0 and 100", models.ErrValidation)
	ErrInvalidTemperature = fmt.Errorf("%w: temperature must be hot, warm or cold", models.ErrValidation)
	ErrInvalidCurrency    = fmt.Errorf("%w: currency must be a 3 letter code", models.ErrValidation)
	ErrInvalidValue       = fmt.Errorf("%w: expected value cannot be negative", models.ErrValidation)
	ErrTitleTooLong       = fmt.Errorf("%w: title cannot exceed 255 characters", models.ErrValidation)
	ErrMissingContact     = fmt.Errorf("%w: contactId is required", models.ErrValidation)
	ErrInvalidAssignee    = fmt.Errorf("%w: assignedToId must reference a user", models.ErrValidation)

	// Not found errors
	ErrLeadNotFound    = fmt.Errorf("%w: lead not found", models.ErrNotFound)
	ErrContactNotFound = fmt.Errorf("%w: contact not found", models.ErrNotFound)
	ErrColumnNotFound  = fmt.Errorf("%w: column not found", models.ErrNotFound)
)
