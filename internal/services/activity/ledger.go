package activity

import (
	"encoding/json"
	"fmt"
	"time"

	"crm-pipeline/internal/database"
	"crm-pipeline/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Build turns entry into the ledger row for lead and applies its state change
// to lead in memory. Previous values are read from lead, so lead has to be
// loaded and locked by the transaction that appends the row.
func Build(lead *models.Lead, actorID uint, entry Entry) (*models.Activity, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	a := &models.Activity{
		TenantID:      lead.TenantID,
		LeadID:        lead.ID,
		Kind:          entry.Payload.Kind(),
		UserID:        actorID,
		Notes:         entry.Notes,
		InteractionID: entry.InteractionID,
	}

	switch p := entry.Payload.(type) {
	case StatusChange:
		if err := models.CanTransition(lead.Status, p.Status); err != nil {
			return nil, err
		}
		a.PreviousStatus = lead.Status
		a.Status = p.Status
		lead.Status = p.Status
	case PipelineChange:
		a.PreviousPipeline = lead.Pipeline
		a.Pipeline = p.Pipeline
		lead.Pipeline = p.Pipeline
	}

	meta, err := json.Marshal(entry.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode activity metadata: %w", err)
	}
	a.Metadata = datatypes.JSON(meta)
	return a, nil
}

// Append writes a built row. It is the only way rows enter the ledger.
func Append(tx *gorm.DB, a *models.Activity) error {
	if err := tx.Omit(clause.Associations).Create(a).Error; err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// AppendNote appends a private note about lead, for flows that log next to
// their own ledger.
func AppendNote(tx *gorm.DB, lead *models.Lead, actorID uint, text string) (*models.Activity, error) {
	a, err := Build(lead, actorID, PrivateNote(text))
	if err != nil {
		return nil, err
	}
	if err := Append(tx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// SaveState writes the lead's status, pipeline and lane.
func SaveState(tx *gorm.DB, lead *models.Lead) error {
	lead.UpdatedAt = time.Now()
	err := tx.Model(&models.Lead{}).
		Where("id = ? AND tenant_id = ?", lead.ID, lead.TenantID).
		Updates(map[string]any{
			"status":     lead.Status,
			"pipeline":   lead.Pipeline,
			"column_id":  lead.ColumnID,
			"updated_at": lead.UpdatedAt,
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update lead state: %w", err)
	}
	return nil
}

// realign points lead at a lane matching its pipeline and status. The current
// lane is kept when it still matches; with no matching lane the lead has none.
func realign(tx *gorm.DB, lead *models.Lead) error {
	if lead.ColumnID != nil {
		var current models.Column
		err := tx.Where("id = ? AND tenant_id = ?", *lead.ColumnID, lead.TenantID).Limit(1).Find(&current).Error
		if err != nil {
			return fmt.Errorf("failed to load lead lane: %w", err)
		}
		if current.ID != 0 && current.Pipeline == lead.Pipeline && current.Status == lead.Status {
			return nil
		}
	}

	lane, err := database.LaneFor(tx, lead.TenantID, lead.Pipeline, lead.Status)
	if err != nil {
		return err
	}
	if lane == nil {
		lead.ColumnID = nil
	} else {
		lead.ColumnID = &lane.ID
	}
	return nil
}
