package interaction

import (
	"context"
	"fmt"
	"time"

	"crm-pipeline/internal/database"
	"crm-pipeline/internal/events"
	"crm-pipeline/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service defines the interaction ledger operations
type Service interface {
	Record(ctx context.Context, tenantID, leadID, actorID uint, req RecordRequest) (*models.Interaction, error)
	List(ctx context.Context, tenantID uint, req ListRequest) (*database.Result[*models.Interaction], error)
	UpcomingFollowUps(ctx context.Context, tenantID uint, req FollowUpRequest) (*database.Result[*models.Interaction], error)
}

// ListRequest filters interactions. Zero values mean no filter.
type ListRequest struct {
	LeadID     uint
	Category   string
	Priority   models.Priority
	Type       models.InteractionType
	PageNumber int
}

type FollowUpRequest struct {
	Priority   models.Priority
	Category   string
	PageNumber int
}

type service struct {
	db        *gorm.DB
	publisher events.Publisher
	pageSize  int
	now       func() time.Time
}

func NewService(db *gorm.DB, publisher events.Publisher, pageSize int) Service {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &service{
		db:        db,
		publisher: publisher,
		pageSize:  pageSize,
		now:       time.Now,
	}
}

// Record stores an interaction. An inbound message also marks the lead as
// contacted now.
func (s *service) Record(ctx context.Context, tenantID, leadID, actorID uint, req RecordRequest) (*models.Interaction, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}
	meta, err := req.metadata()
	if err != nil {
		return nil, fmt.Errorf("failed to encode interaction metadata: %w", err)
	}

	interaction := &models.Interaction{
		TenantID:     tenantID,
		LeadID:       leadID,
		UserID:       actorID,
		Type:         req.Type,
		Category:     req.Category,
		Priority:     req.Priority,
		Notes:        req.Notes,
		Tags:         req.Tags,
		Attachments:  req.Attachments,
		IsPrivate:    req.IsPrivate,
		NextFollowUp: req.NextFollowUp,
		Metadata:     datatypes.JSON(meta),
	}

	var lead *models.Lead
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lead, err = database.LockLead(tx, tenantID, leadID)
		if err != nil {
			return err
		}
		if _, err := database.TenantUser(tx, tenantID, actorID); err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Create(interaction).Error; err != nil {
			return fmt.Errorf("failed to record interaction: %w", err)
		}

		if req.Inbound() {
			now := s.now()
			lead.LastContactedAt = &now
			if err := tx.Model(&models.Lead{}).
				Where("id = ?", lead.ID).
				Update("last_contacted_at", now).Error; err != nil {
				return fmt.Errorf("failed to update last contact: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.publisher, events.New(tenantID, events.TopicLead, events.ActionActivity, events.LeadChange{
		Lead:            database.Snapshot(s.db.WithContext(ctx), lead),
		LastInteraction: interaction,
	}))
	return interaction, nil
}

// List returns interactions newest first.
func (s *service) List(ctx context.Context, tenantID uint, req ListRequest) (*database.Result[*models.Interaction], error) {
	q := s.db.WithContext(ctx).Model(&models.Interaction{}).Where("tenant_id = ?", tenantID)
	if req.LeadID != 0 {
		q = q.Where("lead_id = ?", req.LeadID)
	}
	if req.Type != "" {
		if !req.Type.Valid() {
			return nil, ErrUnknownType
		}
		q = q.Where("type = ?", req.Type)
	}
	q, err := filter(q, req.Priority, req.Category)
	if err != nil {
		return nil, err
	}
	return database.Paginate[*models.Interaction](q, req.PageNumber, s.pageSize, "created_at desc, id desc", "User")
}

// UpcomingFollowUps returns interactions with a follow-up still ahead,
// soonest first.
func (s *service) UpcomingFollowUps(ctx context.Context, tenantID uint, req FollowUpRequest) (*database.Result[*models.Interaction], error) {
	q := s.db.WithContext(ctx).Model(&models.Interaction{}).
		Where("tenant_id = ? AND next_follow_up IS NOT NULL AND next_follow_up >= ?", tenantID, s.now())
	q, err := filter(q, req.Priority, req.Category)
	if err != nil {
		return nil, err
	}
	return database.Paginate[*models.Interaction](q, req.PageNumber, s.pageSize, "next_follow_up asc, id asc", "User")
}

func filter(q *gorm.DB, priority models.Priority, category string) (*gorm.DB, error) {
	if priority != "" {
		if !priority.Valid() {
			return nil, ErrInvalidPriority
		}
		q = q.Where("priority = ?", priority)
	}
	if category != "" {
		q = q.Where("category = ?", category)
	}
	return q, nil
}
