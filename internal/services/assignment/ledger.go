package assignment

import (
	"errors"
	"fmt"
	"time"

	"crm-pipeline/internal/models"
	"crm-pipeline/internal/services/activity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssignTx hands lead to newOwner inside tx: the lead row, the assignment
// record and the private timeline note are written together. lead must have
// been locked by tx.
func AssignTx(tx *gorm.DB, lead *models.Lead, newOwner *models.User, actorID uint, reason string) (*models.AssignmentRecord, *models.Activity, error) {
	if lead.AssignedToID != nil && *lead.AssignedToID == newOwner.ID {
		return nil, nil, ErrAlreadyAssigned
	}

	previousID := lead.AssignedToID
	previousName, err := ownerName(tx, lead.TenantID, previousID)
	if err != nil {
		return nil, nil, err
	}

	lead.AssignedToID = &newOwner.ID
	lead.UpdatedAt = time.Now()
	if err := tx.Model(&models.Lead{}).
		Where("id = ? AND tenant_id = ?", lead.ID, lead.TenantID).
		Updates(map[string]any{
			"assigned_to_id": newOwner.ID,
			"updated_at":     lead.UpdatedAt,
		}).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to reassign lead: %w", err)
	}

	record := &models.AssignmentRecord{
		TenantID:        lead.TenantID,
		LeadID:          lead.ID,
		PreviousOwnerID: previousID,
		NewOwnerID:      newOwner.ID,
		ActorID:         actorID,
		Reason:          reason,
	}
	if err := tx.Omit(clause.Associations).Create(record).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to append assignment: %w", err)
	}

	note, err := activity.AppendNote(tx, lead, actorID, describe(previousName, displayName(newOwner), reason))
	if err != nil {
		return nil, nil, err
	}
	return record, note, nil
}

func describe(previous, next, reason string) string {
	text := "Lead assigned to " + next
	if previous != "" {
		text = fmt.Sprintf("Lead reassigned from %s to %s", previous, next)
	}
	if reason != "" {
		text += ": " + reason
	}
	return text
}

func ownerName(tx *gorm.DB, tenantID uint, id *uint) (string, error) {
	if id == nil {
		return "", nil
	}
	var user models.User
	err := tx.Where("id = ? AND tenant_id = ?", *id, tenantID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Sprintf("user #%d", *id), nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load previous owner: %w", err)
	}
	return displayName(&user), nil
}

func displayName(u *models.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}
