// Package timeline merges the activity and interaction ledgers of a lead into
// one read-only feed.
package timeline

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"crm-pipeline/internal/models"

	"gorm.io/gorm"
)

const (
	SourceActivity    = "activity"
	SourceInteraction = "interaction"
)

type Actor struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type Item struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Actor       *Actor    `json:"actor,omitempty"`
	Private     bool      `json:"private"`
	CreatedAt   time.Time `json:"createdAt"`

	seq uint
}

type Service interface {
	Timeline(ctx context.Context, tenantID, leadID uint) ([]Item, error)
}

type service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) Service {
	return &service{db: db}
}

// Timeline returns every ledger entry of the lead, newest first.
func (s *service) Timeline(ctx context.Context, tenantID, leadID uint) ([]Item, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&models.Lead{}).Where("id = ? AND tenant_id = ?", leadID, tenantID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to load lead: %w", err)
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: lead %d", models.ErrNotFound, leadID)
	}

	var activities []*models.Activity
	if err := db.Preload("User").
		Where("tenant_id = ? AND lead_id = ?", tenantID, leadID).
		Find(&activities).Error; err != nil {
		return nil, fmt.Errorf("failed to load activities: %w", err)
	}

	var interactions []*models.Interaction
	if err := db.Preload("User").
		Where("tenant_id = ? AND lead_id = ?", tenantID, leadID).
		Find(&interactions).Error; err != nil {
		return nil, fmt.Errorf("failed to load interactions: %w", err)
	}

	items := make([]Item, 0, len(activities)+len(interactions))
	for _, a := range activities {
		desc, icon := describeActivity(a)
		items = append(items, Item{
			ID:          fmt.Sprintf("%s-%d", SourceActivity, a.ID),
			Source:      SourceActivity,
			Kind:        string(a.Kind),
			Description: desc,
			Icon:        icon,
			Actor:       actor(a.User),
			Private:     a.Kind == models.ActivityNote && parseMeta(a.Metadata).flag("private"),
			CreatedAt:   a.CreatedAt,
			seq:         a.ID,
		})
	}
	for _, i := range interactions {
		desc, icon := describeInteraction(i)
		items = append(items, Item{
			ID:          fmt.Sprintf("%s-%d", SourceInteraction, i.ID),
			Source:      SourceInteraction,
			Kind:        string(i.Type),
			Description: desc,
			Icon:        icon,
			Actor:       actor(i.User),
			Private:     i.IsPrivate,
			CreatedAt:   i.CreatedAt,
			seq:         i.ID,
		})
	}

	slices.SortStableFunc(items, func(a, b Item) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Source, a.Source); c != 0 {
			return c
		}
		return cmp.Compare(b.seq, a.seq)
	})
	return items, nil
}

func actor(u *models.User) *Actor {
	if u == nil {
		return nil
	}
	name := u.Name
	if name == "" {
		name = u.Username
	}
	return &Actor{ID: u.ID, Name: name}
}
