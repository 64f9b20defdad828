package column

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"crm-pipeline/internal/database"
	"crm-pipeline/internal/events"
	"crm-pipeline/internal/models"

	"gorm.io/gorm"
)

const maxNameLength = 100

// Service defines all lane registry operations
type Service interface {
	// Read operations
	ListColumns(ctx context.Context, tenantID uint) ([]*models.Column, error)
	GetColumn(ctx context.Context, tenantID, id uint) (*models.Column, error)
	Templates() []Template

	// Write operations
	CreateColumn(ctx context.Context, tenantID uint, req CreateColumnRequest) (*models.Column, error)
	CreateFromTemplate(ctx context.Context, tenantID uint, code string) (*models.Column, error)
	UpdateColumn(ctx context.Context, tenantID, id uint, req UpdateColumnRequest) (*models.Column, error)
	DeleteColumn(ctx context.Context, tenantID, id uint) error
	ReorderColumns(ctx context.Context, tenantID uint, positions []Position) ([]*models.Column, error)
	ProvisionDefaults(ctx context.Context, tenantID uint) error
}

// CreateColumnRequest encapsulates data for creating a custom lane. When Code
// is set the lane takes the template's pipeline and status.
type CreateColumnRequest struct {
	Name     string            `json:"name"`
	Color    string            `json:"color"`
	Order    *int              `json:"order"`
	Code     *string           `json:"code"`
	Pipeline models.Pipeline   `json:"pipeline"`
	Status   models.LeadStatus `json:"status"`
}

// UpdateColumnRequest carries the fields to change; nil means unchanged.
type UpdateColumnRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
	Order *int    `json:"order"`
}

type Position struct {
	ID    uint `json:"id"`
	Order int  `json:"order"`
}

type service struct {
	db        *gorm.DB
	publisher events.Publisher
	catalog   *Catalog
}

// NewService creates a new column service. A nil catalog means the built-in templates.
func NewService(db *gorm.DB, publisher events.Publisher, catalog *Catalog) Service {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &service{
		db:        db,
		publisher: publisher,
		catalog:   catalog,
	}
}

func (s *service) ListColumns(ctx context.Context, tenantID uint) ([]*models.Column, error) {
	var columns []*models.Column
	err := s.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("position asc, id asc").
		Find(&columns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list columns: %w", err)
	}
	return columns, nil
}

func (s *service) GetColumn(ctx context.Context, tenantID, id uint) (*models.Column, error) {
	return findColumn(s.db.WithContext(ctx), tenantID, id)
}

func (s *service) Templates() []Template {
	return s.catalog.All()
}

func (s *service) CreateColumn(ctx context.Context, tenantID uint, req CreateColumnRequest) (*models.Column, error) {
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}

	pipeline, status := req.Pipeline, req.Status
	if req.Code != nil {
		tpl, ok := s.catalog.Lookup(*req.Code)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, *req.Code)
		}
		pipeline, status = tpl.Pipeline, tpl.Status
	}
	if pipeline == "" {
		pipeline = models.PipelineDefault
	}
	if status == "" {
		status = models.StatusNew
	}
	if !pipeline.Valid() || !status.Valid() {
		return nil, ErrInvalidPair
	}

	column := &models.Column{
		TenantID: tenantID,
		Name:     name,
		Color:    req.Color,
		Code:     req.Code,
		Pipeline: pipeline,
		Status:   status,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureNameFree(tx, tenantID, name, 0); err != nil {
			return err
		}
		if req.Code != nil {
			if err := ensureCodeFree(tx, tenantID, *req.Code); err != nil {
				return err
			}
		}
		if req.Order != nil {
			column.Order = *req.Order
		} else {
			next, err := nextOrder(tx, tenantID)
			if err != nil {
				return err
			}
			column.Order = next
		}
		return insertColumn(tx, column)
	})
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.publisher, events.New(tenantID, events.TopicColumn, events.ActionCreate, column))
	return column, nil
}

// CreateFromTemplate instantiates a system lane from a known template at the
// end of the board.
func (s *service) CreateFromTemplate(ctx context.Context, tenantID uint, code string) (*models.Column, error) {
	tpl, ok := s.catalog.Lookup(code)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, code)
	}

	var column *models.Column
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCodeFree(tx, tenantID, tpl.Code); err != nil {
			return err
		}
		if err := ensureNameFree(tx, tenantID, tpl.Name, 0); err != nil {
			return err
		}
		next, err := nextOrder(tx, tenantID)
		if err != nil {
			return err
		}
		column = fromTemplate(tenantID, tpl, next)
		return insertColumn(tx, column)
	})
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.publisher, events.New(tenantID, events.TopicColumn, events.ActionCreate, column))
	return column, nil
}

func (s *service) UpdateColumn(ctx context.Context, tenantID, id uint, req UpdateColumnRequest) (*models.Column, error) {
	var column *models.Column
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		column, err = findColumn(database.ForUpdate(tx), tenantID, id)
		if err != nil {
			return err
		}
		if column.IsSystem {
			return ErrSystemColumn
		}

		if req.Name != nil {
			name, err := validateName(*req.Name)
			if err != nil {
				return err
			}
			if err := ensureNameFree(tx, tenantID, name, column.ID); err != nil {
				return err
			}
			column.Name = name
		}
		if req.Color != nil {
			column.Color = *req.Color
		}
		if req.Order != nil {
			column.Order = *req.Order
		}

		if err := tx.Save(column).Error; err != nil {
			return translateWriteError("update column", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.publisher, events.New(tenantID, events.TopicColumn, events.ActionUpdate, column))
	return column, nil
}

// DeleteColumn removes a custom lane. Lanes that still hold leads are kept;
// the leads have to be moved first.
func (s *service) DeleteColumn(ctx context.Context, tenantID, id uint) error {
	var column *models.Column
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		column, err = findColumn(database.ForUpdate(tx), tenantID, id)
		if err != nil {
			return err
		}
		if column.IsSystem {
			return ErrSystemColumn
		}

		var inUse int64
		if err := tx.Model(&models.Lead{}).Where("column_id = ?", column.ID).Count(&inUse).Error; err != nil {
			return fmt.Errorf("failed to check column leads: %w", err)
		}
		if inUse > 0 {
			return fmt.Errorf("%w (%d leads)", ErrColumnInUse, inUse)
		}

		if err := tx.Delete(&models.Column{}, column.ID).Error; err != nil {
			return fmt.Errorf("failed to delete column: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	events.Emit(ctx, s.publisher, events.New(tenantID, events.TopicColumn, events.ActionDelete, column))
	return nil
}

// ReorderColumns applies every position in one transaction. System lanes may
// be listed but must keep their current position.
func (s *service) ReorderColumns(ctx context.Context, tenantID uint, positions []Position) ([]*models.Column, error) {
	if len(positions) == 0 {
		return s.ListColumns(ctx, tenantID)
	}

	ids := make([]uint, 0, len(positions))
	seen := make(map[uint]bool, len(positions))
	for _, p := range positions {
		if seen[p.ID] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateEntry, p.ID)
		}
		seen[p.ID] = true
		ids = append(ids, p.ID)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current []models.Column
		if err := database.ForUpdate(tx).
			Where("tenant_id = ? AND id IN ?", tenantID, ids).
			Find(&current).Error; err != nil {
			return fmt.Errorf("failed to load columns: %w", err)
		}
		if len(current) != len(ids) {
			return ErrColumnNotFound
		}

		byID := make(map[uint]models.Column, len(current))
		for _, c := range current {
			byID[c.ID] = c
		}
		for _, p := range positions {
			c := byID[p.ID]
			if c.Order == p.Order {
				continue
			}
			if c.IsSystem {
				return fmt.Errorf("%w: %q", ErrSystemColumn, c.Name)
			}
			if err := tx.Model(&models.Column{}).
				Where("id = ?", p.ID).
				Update("position", p.Order).Error; err != nil {
				return fmt.Errorf("failed to move column %d: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	columns, err := s.ListColumns(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	events.Emit(ctx, s.publisher, events.New(tenantID, events.TopicColumn, events.ActionUpdate, columns))
	return columns, nil
}

// ProvisionDefaults creates whatever baseline lanes the tenant is missing.
func (s *service) ProvisionDefaults(ctx context.Context, tenantID uint) error {
	var created []*models.Column
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created = created[:0]
		for _, tpl := range s.catalog.Baseline() {
			var count int64
			if err := tx.Model(&models.Column{}).
				Where("tenant_id = ? AND (code = ? OR LOWER(name) = LOWER(?))", tenantID, tpl.Code, tpl.Name).
				Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check template %s: %w", tpl.Code, err)
			}
			if count > 0 {
				continue
			}

			next, err := nextOrder(tx, tenantID)
			if err != nil {
				return err
			}
			column := fromTemplate(tenantID, tpl, next)
			if err := insertColumn(tx, column); err != nil {
				return err
			}
			created = append(created, column)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(created) > 0 {
		slog.Info("provisioned default columns", "tenant_id", tenantID, "count", len(created))
		events.Emit(ctx, s.publisher, events.New(tenantID, events.TopicColumn, events.ActionCreate, created))
	}
	return nil
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", ErrEmptyName
	}
	if len([]rune(name)) > maxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

func fromTemplate(tenantID uint, tpl Template, order int) *models.Column {
	code := tpl.Code
	return &models.Column{
		TenantID: tenantID,
		Name:     tpl.Name,
		Color:    tpl.Color,
		Order:    order,
		Code:     &code,
		IsSystem: true,
		Pipeline: tpl.Pipeline,
		Status:   tpl.Status,
	}
}

func findColumn(db *gorm.DB, tenantID, id uint) (*models.Column, error) {
	var column models.Column
	err := db.Where("id = ? AND tenant_id = ?", id, tenantID).First(&column).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrColumnNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get column: %w", err)
	}
	return &column, nil
}

func ensureNameFree(tx *gorm.DB, tenantID uint, name string, exceptID uint) error {
	var count int64
	q := tx.Model(&models.Column{}).Where("tenant_id = ? AND LOWER(name) = LOWER(?)", tenantID, name)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check column name: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	return nil
}

func ensureCodeFree(tx *gorm.DB, tenantID uint, code string) error {
	var count int64
	if err := tx.Model(&models.Column{}).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check column code: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateCode, code)
	}
	return nil
}

func nextOrder(tx *gorm.DB, tenantID uint) (int, error) {
	var maxOrder int
	if err := tx.Model(&models.Column{}).
		Where("tenant_id = ?", tenantID).
		Select("COALESCE(MAX(position), -1)").
		Scan(&maxOrder).Error; err != nil {
		return 0, fmt.Errorf("failed to compute column order: %w", err)
	}
	return maxOrder + 1, nil
}

const insertSavepoint = "insert_column"

// insertColumn creates the row. A unique violation from a concurrent writer
// is reported as the conflict on the index that was actually hit: lanes with
// a code are inserted under a savepoint so the code can be re-checked after
// the failed insert.
func insertColumn(tx *gorm.DB, column *models.Column) error {
	if column.Code == nil {
		if err := tx.Create(column).Error; err != nil {
			return translateWriteError("create column", err)
		}
		return nil
	}

	if err := tx.SavePoint(insertSavepoint).Error; err != nil {
		return fmt.Errorf("failed to create savepoint: %w", err)
	}
	err := tx.Create(column).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		if err != nil {
			return fmt.Errorf("failed to create column: %w", err)
		}
		return nil
	}
	if err := tx.RollbackTo(insertSavepoint).Error; err != nil {
		return fmt.Errorf("failed to roll back to savepoint: %w", err)
	}
	if err := ensureCodeFree(tx, column.TenantID, *column.Code); err != nil {
		return err
	}
	return ErrDuplicateName
}

// translateWriteError maps a unique index race on a lane without a code to
// the same conflict the name pre-check reports.
func translateWriteError(op string, err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateName
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
