package lead

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crm-pipeline/internal/database"
	"crm-pipeline/internal/events"
	"crm-pipeline/internal/models"
	"crm-pipeline/internal/services/activity"
	"crm-pipeline/internal/services/assignment"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service defines all lead aggregate operations
type Service interface {
	// Read operations
	ListLeads(ctx context.Context, tenantID uint, req ListLeadsRequest) (*database.Result[*models.Lead], error)
	GetLead(ctx context.Context, tenantID, id uint) (*models.Lead, error)

	// Write operations
	CreateLead(ctx context.Context, tenantID, actorID uint, req CreateLeadRequest) (*models.Lead, error)
	UpdateLead(ctx context.Context, tenantID, id, actorID uint, req UpdateLeadRequest) (*models.Lead, error)
	DeleteLead(ctx context.Context, tenantID, id uint) error
	MoveLead(ctx context.Context, tenantID, id, columnID, actorID uint) (*models.Lead, error)
}

type service struct {
	db        *gorm.DB
	publisher events.Publisher
	pageSize  int
}

// NewService creates a new lead service
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

// likeEscaper makes the search term match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// ListLeads matches the search term against the contact's name, number and
// email, case-insensitively.
func (s *service) ListLeads(ctx context.Context, tenantID uint, req ListLeadsRequest) (*database.Result[*models.Lead], error) {
	db := s.db.WithContext(ctx)
	q := db.Model(&models.Lead{}).Where("tenant_id = ?", tenantID)

	if term := strings.ToLower(strings.TrimSpace(req.SearchParam)); term != "" {
		like := "%" + likeEscaper.Replace(term) + "%"
		contacts := db.Model(&models.Contact{}).
			Select("id").
			Where("tenant_id = ?", tenantID).
			Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(number) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\'`, like, like, like)
		q = q.Where("contact_id IN (?)", contacts)
	}

	return database.Paginate[*models.Lead](q, req.PageNumber, s.pageSize,
		"updated_at desc, id desc", "Contact", "AssignedTo", "Column")
}

func (s *service) GetLead(ctx context.Context, tenantID, id uint) (*models.Lead, error) {
	lead, err := database.LeadView(s.db.WithContext(ctx), tenantID, id)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrLeadNotFound
	}
	return lead, err
}

// CreateLead opens a lead for a contact. Without a lane the lead lands in the
// tenant's (default, new) lane when there is one.
func (s *service) CreateLead(ctx context.Context, tenantID, actorID uint, req CreateLeadRequest) (*models.Lead, error) {
	if err := req.normalize(); err != nil {
		return nil, err
	}

	lead := &models.Lead{
		TenantID:            tenantID,
		ContactID:           req.ContactID,
		AssignedToID:        req.AssignedToID,
		CreatedByID:         actorID,
		Status:              models.StatusNew,
		Pipeline:            models.PipelineDefault,
		Temperature:         req.Temperature,
		Source:              req.Source,
		Title:               req.Title,
		Description:         req.Description,
		ExpectedValue:       req.ExpectedValue,
		Currency:            req.Currency,
		Probability:         req.Probability,
		ExpectedClosingDate: req.ExpectedClosingDate,
		Tags:                req.Tags,
		CustomFields:        req.CustomFields,
		Metadata:            req.Metadata,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkContact(tx, tenantID, req.ContactID); err != nil {
			return err
		}
		if req.AssignedToID != nil {
			if _, err := database.TenantUser(tx, tenantID, *req.AssignedToID); err != nil {
				return err
			}
		}

		var lane *models.Column
		if req.ColumnID != nil {
			var err error
			if lane, err = findColumn(tx, tenantID, *req.ColumnID); err != nil {
				return err
			}
		} else {
			var err error
			if lane, err = database.LaneFor(tx, tenantID, models.PipelineDefault, models.StatusNew); err != nil {
				return err
			}
		}
		if lane != nil {
			lead.ColumnID = &lane.ID
			lead.Status = lane.Status
			lead.Pipeline = lane.Pipeline
		}

		if err := tx.Omit(clause.Associations).Create(lead).Error; err != nil {
			return fmt.Errorf("failed to create lead: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := database.Snapshot(s.db.WithContext(ctx), lead)
	events.Emit(ctx, s.publisher, events.New(tenantID, events.TopicLead, events.ActionCreate, view))
	return view, nil
}

// UpdateLead edits lead fields. A different assignee is handed over through
// the assignment ledger in the same transaction.
func (s *service) UpdateLead(ctx context.Context, tenantID, id, actorID uint, req UpdateLeadRequest) (*models.Lead, error) {
	var (
		lead *models.Lead
		note *models.Activity
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lead, err = database.LockLead(tx, tenantID, id)
		if err != nil {
			return err
		}
		if err := req.apply(lead); err != nil {
			return err
		}

		if req.AssignedToID != nil && (lead.AssignedToID == nil || *lead.AssignedToID != *req.AssignedToID) {
			owner, err := database.TenantUser(tx, tenantID, *req.AssignedToID)
			if err != nil {
				return err
			}
			if _, note, err = assignment.AssignTx(tx, lead, owner, actorID, strings.TrimSpace(req.Reason)); err != nil {
				return err
			}
		}

		if err := tx.Omit(clause.Associations).Save(lead).Error; err != nil {
			return fmt.Errorf("failed to update lead: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := database.Snapshot(s.db.WithContext(ctx), lead)
	events.Emit(ctx, s.publisher, events.New(tenantID, events.TopicLead, events.ActionUpdate, events.LeadChange{
		Lead:         view,
		LastActivity: note,
	}))
	return view, nil
}

// DeleteLead hard-deletes the lead; its ledger rows go with it by cascade.
func (s *service) DeleteLead(ctx context.Context, tenantID, id uint) error {
	var view *models.Lead
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := database.LockLead(tx, tenantID, id); err != nil {
			return err
		}
		var err error
		if view, err = database.LeadView(tx, tenantID, id); err != nil {
			return err
		}
		if err := tx.Delete(&models.Lead{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete lead: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	events.Emit(ctx, s.publisher, events.New(tenantID, events.TopicLead, events.ActionDelete, view))
	return nil
}

// MoveLead puts the lead in another lane and takes on the lane's pipeline and
// status. The lead row is written first, then the status and/or pipeline
// activities, all in one transaction. Moving to the current lane is a no-op.
func (s *service) MoveLead(ctx context.Context, tenantID, id, columnID, actorID uint) (*models.Lead, error) {
	var (
		lead  *models.Lead
		last  *models.Activity
		moved bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lead, err = database.LockLead(tx, tenantID, id)
		if err != nil {
			return err
		}
		if lead.ColumnID != nil && *lead.ColumnID == columnID {
			return nil
		}

		target, err := findColumn(tx, tenantID, columnID)
		if err != nil {
			return err
		}
		if _, err := database.TenantUser(tx, tenantID, actorID); err != nil {
			return err
		}

		from := lead.ColumnID
		var entries []activity.Entry
		// a lane move always leaves a status entry, even between two lanes of the same pair
		if lead.Status != target.Status || lead.Pipeline == target.Pipeline {
			entries = append(entries, activity.Entry{Payload: activity.StatusChange{
				Status:           target.Status,
				ColumnID:         &target.ID,
				PreviousColumnID: from,
			}})
		}
		if lead.Pipeline != target.Pipeline {
			entries = append(entries, activity.Entry{Payload: activity.PipelineChange{
				Pipeline:         target.Pipeline,
				ColumnID:         &target.ID,
				PreviousColumnID: from,
			}})
		}

		rows := make([]*models.Activity, 0, len(entries))
		for _, entry := range entries {
			a, err := activity.Build(lead, actorID, entry)
			if err != nil {
				return err
			}
			rows = append(rows, a)
		}

		lead.ColumnID = &target.ID
		if err := activity.SaveState(tx, lead); err != nil {
			return err
		}
		for _, a := range rows {
			if err := activity.Append(tx, a); err != nil {
				return err
			}
		}

		last = rows[len(rows)-1]
		moved = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := database.Snapshot(s.db.WithContext(ctx), lead)
	if moved {
		events.Emit(ctx, s.publisher, events.New(tenantID, events.TopicLead, events.ActionUpdate, events.LeadChange{
			Lead:         view,
			LastActivity: last,
		}))
	}
	return view, nil
}

func checkContact(tx *gorm.DB, tenantID, contactID uint) error {
	var count int64
	if err := tx.Model(&models.Contact{}).
		Where("id = ? AND tenant_id = ?", contactID, tenantID).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check contact: %w", err)
	}
	if count == 0 {
		return ErrContactNotFound
	}
	return nil
}

func findColumn(tx *gorm.DB, tenantID, id uint) (*models.Column, error) {
	var column models.Column
	err := tx.Where("id = ? AND tenant_id = ?", id, tenantID).First(&column).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrColumnNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get column: %w", err)
	}
	return &column, nil
}
