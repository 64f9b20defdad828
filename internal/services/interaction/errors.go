package interaction

import (
	"fmt"

	"crm-pipeline/internal/models"
)

var (
	ErrUnknownType     = fmt.Errorf("%w: unknown interaction type", models.ErrValidation)
	ErrInvalidPriority = fmt.Errorf("%w: priority must be low, medium, high or urgent", models.ErrValidation)
	ErrMissingMessage  = fmt.Errorf("%w: message interactions need messageData with platform and direction", models.ErrValidation)
	ErrMissingContent  = fmt.Errorf("%w: message interactions need notes", models.ErrValidation)
	ErrCategoryTooLong = fmt.Errorf("%w: category cannot exceed 50 characters", models.ErrValidation)
)
