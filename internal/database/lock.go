package database

import (
	"errors"
	"fmt"
	"log/slog"

	"crm-pipeline/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ForUpdate takes a row lock on whatever the query selects. SQLite serialises
// writers on its own, so there the query is left untouched.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if IsPostgres(tx) {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// LockLead loads a tenant's lead inside tx and locks its row until commit.
func LockLead(tx *gorm.DB, tenantID, leadID uint) (*models.Lead, error) {
	var lead models.Lead
	err := ForUpdate(tx).
		Where("id = ? AND tenant_id = ?", leadID, tenantID).
		First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: lead %d", models.ErrNotFound, leadID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}
	return &lead, nil
}

// TenantUser loads a user and checks that it belongs to the tenant.
func TenantUser(tx *gorm.DB, tenantID, userID uint) (*models.User, error) {
	var user models.User
	err := tx.Where("id = ? AND tenant_id = ?", userID, tenantID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", models.ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// LaneFor returns the tenant's lane for a (pipeline, status) pair, preferring
// system lanes. A nil column without error means the tenant has no such lane.
func LaneFor(tx *gorm.DB, tenantID uint, pipeline models.Pipeline, status models.LeadStatus) (*models.Column, error) {
	var columns []models.Column
	err := tx.Where("tenant_id = ? AND pipeline = ? AND status = ?", tenantID, pipeline, status).
		Order("is_system desc, position asc, id asc").
		Limit(1).
		Find(&columns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to look up lane: %w", err)
	}
	if len(columns) == 0 {
		return nil, nil
	}
	return &columns[0], nil
}

// LeadView loads a lead with its contact, assignee and lane joined, the shape
// every lead response and event carries.
func LeadView(db *gorm.DB, tenantID, leadID uint) (*models.Lead, error) {
	var lead models.Lead
	err := db.Preload("Contact").
		Preload("AssignedTo").
		Preload("Column").
		Where("id = ? AND tenant_id = ?", leadID, tenantID).
		First(&lead).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: lead %d", models.ErrNotFound, leadID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}
	return &lead, nil
}

// Snapshot reloads the joined view of a lead for an event sent after commit.
// If that fails the row already in hand is used, so the event still goes out.
func Snapshot(db *gorm.DB, lead *models.Lead) *models.Lead {
	view, err := LeadView(db, lead.TenantID, lead.ID)
	if err != nil {
		slog.Warn("failed to load lead view for event", "lead_id", lead.ID, "error", err)
		return lead
	}
	return view
}
