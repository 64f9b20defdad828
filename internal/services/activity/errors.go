package activity

import (
	"fmt"

	"crm-pipeline/internal/models"
)

var (
	ErrUnknownKind        = fmt.Errorf("%w: unknown activity type", models.ErrValidation)
	ErrMissingPayload     = fmt.Errorf("%w: activity payload is missing", models.ErrValidation)
	ErrForeignInteraction = fmt.Errorf("%w: interaction does not belong to this lead", models.ErrValidation)
)
