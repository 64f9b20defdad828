package activity

import (
	"context"
	"fmt"

	"crm-pipeline/internal/database"
	"crm-pipeline/internal/events"
	"crm-pipeline/internal/models"

	"gorm.io/gorm"
)

// Service defines the pipeline activity ledger operations
type Service interface {
	Record(ctx context.Context, tenantID, leadID, actorID uint, entry Entry) (*models.Activity, error)
	List(ctx context.Context, tenantID uint, req ListRequest) (*database.Result[*models.Activity], error)
}

// ListRequest filters the ledger. Zero values mean no filter.
type ListRequest struct {
	LeadID     uint
	Kind       models.ActivityKind
	PageNumber int
}

type service struct {
	db        *gorm.DB
	publisher events.Publisher
	pageSize  int
}

func NewService(db *gorm.DB, publisher events.Publisher, pageSize int) Service {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &service{
		db:        db,
		publisher: publisher,
		pageSize:  pageSize,
	}
}

// Record appends one activity. Status and pipeline changes are applied to the
// lead in the same transaction, with the previous values read under lock.
func (s *service) Record(ctx context.Context, tenantID, leadID, actorID uint, entry Entry) (*models.Activity, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	var (
		lead *models.Lead
		act  *models.Activity
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lead, err = database.LockLead(tx, tenantID, leadID)
		if err != nil {
			return err
		}
		if _, err := database.TenantUser(tx, tenantID, actorID); err != nil {
			return err
		}
		if entry.InteractionID != nil {
			if err := checkInteraction(tx, lead, *entry.InteractionID); err != nil {
				return err
			}
		}

		status, pipeline := lead.Status, lead.Pipeline
		act, err = Build(lead, actorID, entry)
		if err != nil {
			return err
		}
		if lead.Status != status || lead.Pipeline != pipeline {
			if err := realign(tx, lead); err != nil {
				return err
			}
			if err := SaveState(tx, lead); err != nil {
				return err
			}
		}
		return Append(tx, act)
	})
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.publisher, events.New(tenantID, events.TopicLead, events.ActionActivity, events.LeadChange{
		Lead:         database.Snapshot(s.db.WithContext(ctx), lead),
		LastActivity: act,
	}))
	return act, nil
}

// List returns activities newest first.
func (s *service) List(ctx context.Context, tenantID uint, req ListRequest) (*database.Result[*models.Activity], error) {
	q := s.db.WithContext(ctx).Model(&models.Activity{}).Where("tenant_id = ?", tenantID)
	if req.LeadID != 0 {
		q = q.Where("lead_id = ?", req.LeadID)
	}
	if req.Kind != "" {
		if !req.Kind.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownKind, req.Kind)
		}
		q = q.Where("activity_type = ?", req.Kind)
	}
	return database.Paginate[*models.Activity](q, req.PageNumber, s.pageSize, "created_at desc, id desc", "User")
}

func checkInteraction(tx *gorm.DB, lead *models.Lead, interactionID uint) error {
	var count int64
	if err := tx.Model(&models.Interaction{}).
		Where("id = ? AND lead_id = ? AND tenant_id = ?", interactionID, lead.ID, lead.TenantID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check interaction: %w", err)
	}
	if count == 0 {
		return ErrForeignInteraction
	}
	return nil
}
