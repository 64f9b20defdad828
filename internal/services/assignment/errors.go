package assignment

import (
	"fmt"

	"crm-pipeline/internal/models"
)

var (
	ErrAlreadyAssigned  = fmt.Errorf("%w: lead is already assigned to this user", models.ErrConflict)
	ErrAlreadyFollowing = fmt.Errorf("%w: user already follows this lead", models.ErrConflict)
	ErrNotFollowing     = fmt.Errorf("%w: user does not follow this lead", models.ErrNotFound)
)
