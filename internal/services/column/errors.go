package column

import (
	"fmt"

	"crm-pipeline/internal/models"
)

// Column-related errors
var (
	// Validation errors
	ErrEmptyName       = fmt.Errorf("%w: name cannot be empty", models.ErrValidation)
	ErrNameTooLong     = fmt.Errorf("%w: name cannot exceed 100 characters", models.ErrValidation)
	ErrUnknownTemplate = fmt.Errorf("%w: unknown column template", models.ErrValidation)
	ErrInvalidPair     = fmt.Errorf("%w: invalid pipeline or status", models.ErrValidation)
	ErrDuplicateEntry  = fmt.Errorf("%w: column listed more than once", models.ErrValidation)

	// Business logic errors
	ErrColumnNotFound = fmt.Errorf("%w: column not found", models.ErrNotFound)
	ErrDuplicateName  = fmt.Errorf("%w: a column with this name already exists", models.ErrConflict)
	ErrDuplicateCode  = fmt.Errorf("%w: a column with this code already exists", models.ErrConflict)
	ErrColumnInUse    = fmt.Errorf("%w: column still has leads", models.ErrConflict)
	ErrSystemColumn   = fmt.Errorf("%w: system columns cannot be changed or deleted", models.ErrIntegrity)
)
