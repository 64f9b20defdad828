package assignment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crm-pipeline/internal/database"
	"crm-pipeline/internal/events"
	"crm-pipeline/internal/models"
	"crm-pipeline/internal/services/activity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service defines ownership and follower operations
type Service interface {
	AssignLead(ctx context.Context, tenantID, leadID, newOwnerID, actorID uint, reason string) (*models.AssignmentRecord, error)
	History(ctx context.Context, tenantID, leadID uint) ([]*models.AssignmentRecord, error)

	Follow(ctx context.Context, tenantID, leadID, userID uint) (*models.Follower, error)
	Unfollow(ctx context.Context, tenantID, leadID, userID uint) error
	ListFollowers(ctx context.Context, tenantID, leadID uint) ([]*models.Follower, error)
	ListFollowedLeads(ctx context.Context, tenantID, userID uint) ([]*models.Lead, error)
}

type service struct {
	db        *gorm.DB
	publisher events.Publisher
}

func NewService(db *gorm.DB, publisher events.Publisher) Service {
	return &service{
		db:        db,
		publisher: publisher,
	}
}

func (s *service) AssignLead(ctx context.Context, tenantID, leadID, newOwnerID, actorID uint, reason string) (*models.AssignmentRecord, error) {
	reason = strings.TrimSpace(reason)

	var (
		lead   *models.Lead
		record *models.AssignmentRecord
		note   *models.Activity
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lead, err = database.LockLead(tx, tenantID, leadID)
		if err != nil {
			return err
		}
		owner, err := database.TenantUser(tx, tenantID, newOwnerID)
		if err != nil {
			return err
		}
		record, note, err = AssignTx(tx, lead, owner, actorID, reason)
		return err
	})
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.publisher, events.New(tenantID, events.TopicLead, events.ActionUpdate, events.LeadChange{
		Lead:         database.Snapshot(s.db.WithContext(ctx), lead),
		LastActivity: note,
	}))
	return record, nil
}

// History returns the ownership changes of a lead, oldest first.
func (s *service) History(ctx context.Context, tenantID, leadID uint) ([]*models.AssignmentRecord, error) {
	db := s.db.WithContext(ctx)
	if err := leadExists(db, tenantID, leadID); err != nil {
		return nil, err
	}

	var records []*models.AssignmentRecord
	err := db.Preload("PreviousOwner").
		Preload("NewOwner").
		Preload("Actor").
		Where("tenant_id = ? AND lead_id = ?", tenantID, leadID).
		Order("created_at asc, id asc").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load assignment history: %w", err)
	}
	return records, nil
}

// Follow subscribes user to lead. Following again toggles notifications on the
// existing subscription.
func (s *service) Follow(ctx context.Context, tenantID, leadID, userID uint) (*models.Follower, error) {
	var (
		lead     *models.Lead
		follower models.Follower
		note     *models.Activity
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lead, err = database.LockLead(tx, tenantID, leadID)
		if err != nil {
			return err
		}
		user, err := database.TenantUser(tx, tenantID, userID)
		if err != nil {
			return err
		}

		err = tx.Where("lead_id = ? AND user_id = ?", leadID, userID).First(&follower).Error
		var text string
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			follower = models.Follower{LeadID: leadID, UserID: userID, NotificationsEnabled: true}
			if err := tx.Omit(clause.Associations).Create(&follower).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return ErrAlreadyFollowing
				}
				return fmt.Errorf("failed to follow lead: %w", err)
			}
			text = displayName(user) + " started following this lead"
		case err != nil:
			return fmt.Errorf("failed to load follower: %w", err)
		default:
			follower.NotificationsEnabled = !follower.NotificationsEnabled
			if err := tx.Omit(clause.Associations).Save(&follower).Error; err != nil {
				return fmt.Errorf("failed to update follower: %w", err)
			}
			state := "off"
			if follower.NotificationsEnabled {
				state = "on"
			}
			text = fmt.Sprintf("%s turned notifications %s for this lead", displayName(user), state)
		}

		note, err = activity.AppendNote(tx, lead, userID, text)
		return err
	})
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.publisher, events.New(tenantID, events.TopicLead, events.ActionActivity, events.LeadChange{
		Lead:         database.Snapshot(s.db.WithContext(ctx), lead),
		LastActivity: note,
	}))
	return &follower, nil
}

func (s *service) Unfollow(ctx context.Context, tenantID, leadID, userID uint) error {
	var (
		lead *models.Lead
		note *models.Activity
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lead, err = database.LockLead(tx, tenantID, leadID)
		if err != nil {
			return err
		}
		user, err := database.TenantUser(tx, tenantID, userID)
		if err != nil {
			return err
		}

		res := tx.Where("lead_id = ? AND user_id = ?", leadID, userID).Delete(&models.Follower{})
		if res.Error != nil {
			return fmt.Errorf("failed to unfollow lead: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFollowing
		}

		note, err = activity.AppendNote(tx, lead, userID, displayName(user)+" stopped following this lead")
		return err
	})
	if err != nil {
		return err
	}

	events.Emit(ctx, s.publisher, events.New(tenantID, events.TopicLead, events.ActionActivity, events.LeadChange{
		Lead:         database.Snapshot(s.db.WithContext(ctx), lead),
		LastActivity: note,
	}))
	return nil
}

func (s *service) ListFollowers(ctx context.Context, tenantID, leadID uint) ([]*models.Follower, error) {
	db := s.db.WithContext(ctx)
	if err := leadExists(db, tenantID, leadID); err != nil {
		return nil, err
	}

	var followers []*models.Follower
	if err := db.Preload("User").
		Where("lead_id = ?", leadID).
		Order("created_at asc, id asc").
		Find(&followers).Error; err != nil {
		return nil, fmt.Errorf("failed to list followers: %w", err)
	}
	return followers, nil
}

func (s *service) ListFollowedLeads(ctx context.Context, tenantID, userID uint) ([]*models.Lead, error) {
	db := s.db.WithContext(ctx)
	if _, err := database.TenantUser(db, tenantID, userID); err != nil {
		return nil, err
	}

	var leads []*models.Lead
	err := db.Preload("Contact").
		Preload("AssignedTo").
		Preload("Column").
		Where("tenant_id = ? AND id IN (?)", tenantID,
			db.Model(&models.Follower{}).Select("lead_id").Where("user_id = ?", userID)).
		Order("updated_at desc, id desc").
		Find(&leads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list followed leads: %w", err)
	}
	return leads, nil
}

func leadExists(db *gorm.DB, tenantID, leadID uint) error {
	var count int64
	if err := db.Model(&models.Lead{}).Where("id = ? AND tenant_id = ?", leadID, tenantID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to load lead: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: lead %d", models.ErrNotFound, leadID)
	}
	return nil
}
