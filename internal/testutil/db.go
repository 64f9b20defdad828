package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"crm-pipeline/internal/database"
	"crm-pipeline/internal/models"

	"gorm.io/gorm"
)

var dbCounter atomic.Int64

// SetupTestDB opens a private in-memory SQLite database with the full schema.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_foreign_keys=1", name, dbCounter.Add(1))

	db, err := database.Open(context.Background(), database.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func CreateTenant(t *testing.T, db *gorm.DB, name string) *models.Tenant {
	t.Helper()
	tenant := &models.Tenant{Name: name}
	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("Failed to create tenant: %v", err)
	}
	return tenant
}

func CreateUser(t *testing.T, db *gorm.DB, tenantID uint, username string, role models.UserRole) *models.User {
	t.Helper()
	user := &models.User{
		TenantID:     tenantID,
		Username:     username,
		Name:         username,
		PasswordHash: "x",
		Role:         role,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

func CreateContact(t *testing.T, db *gorm.DB, tenantID uint, name, number, email string) *models.Contact {
	t.Helper()
	contact := &models.Contact{TenantID: tenantID, Name: name, Number: number, Email: email}
	if err := db.Create(contact).Error; err != nil {
		t.Fatalf("Failed to create contact: %v", err)
	}
	return contact
}

// CreateColumn inserts a lane directly, bypassing the registry rules.
func CreateColumn(t *testing.T, db *gorm.DB, tenantID uint, name string, order int, pipeline models.Pipeline, status models.LeadStatus, system bool) *models.Column {
	t.Helper()
	column := &models.Column{
		TenantID: tenantID,
		Name:     name,
		Color:    "#000000",
		Order:    order,
		Pipeline: pipeline,
		Status:   status,
		IsSystem: system,
	}
	if err := db.Create(column).Error; err != nil {
		t.Fatalf("Failed to create column: %v", err)
	}
	return column
}

// CreateLead inserts a lead directly in the given lane.
func CreateLead(t *testing.T, db *gorm.DB, tenantID, contactID, creatorID uint, column *models.Column) *models.Lead {
	t.Helper()
	lead := &models.Lead{
		TenantID:    tenantID,
		ContactID:   contactID,
		CreatedByID: creatorID,
		Status:      models.StatusNew,
		Pipeline:    models.PipelineDefault,
		Temperature: models.TemperatureWarm,
		Currency:    "USD",
	}
	if column != nil {
		lead.ColumnID = &column.ID
		lead.Status = column.Status
		lead.Pipeline = column.Pipeline
	}
	if err := db.Create(lead).Error; err != nil {
		t.Fatalf("Failed to create lead: %v", err)
	}
	return lead
}

// Fixture is a tenant with an admin, two sales users and a contact.
type Fixture struct {
	Tenant  *models.Tenant
	Admin   *models.User
	UserA   *models.User
	UserB   *models.User
	Contact *models.Contact
}

func NewFixture(t *testing.T, db *gorm.DB, tenantName string) *Fixture {
	t.Helper()
	tenant := CreateTenant(t, db, tenantName)
	return &Fixture{
		Tenant:  tenant,
		Admin:   CreateUser(t, db, tenant.ID, tenantName+"-admin", models.RoleAdmin),
		UserA:   CreateUser(t, db, tenant.ID, tenantName+"-a", models.RoleSales),
		UserB:   CreateUser(t, db, tenant.ID, tenantName+"-b", models.RoleSales),
		Contact: CreateContact(t, db, tenant.ID, "Maria Silva", "+5511999990000", "maria@example.com"),
	}
}
