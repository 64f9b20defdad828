package database

import (
	"context"
	"fmt"
	"log/slog"

	"crm-pipeline/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const DefaultTenantName = "default"

type SeedOptions struct {
	AdminUsername string
	AdminPassword string
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	// Provision creates the baseline lanes for a tenant. It must be idempotent.
	Provision func(ctx context.Context, tenantID uint) error
}

// Seed makes sure there is a default tenant with an admin and a sales user,
// and that every tenant has its system lanes.
func Seed(ctx context.Context, db *gorm.DB, opts SeedOptions) error {
	if opts.AdminUsername == "" {
		opts.AdminUsername = "admin@crm.local"
	}
	if opts.AdminPassword == "" {
		opts.AdminPassword = "Admin123!"
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}

	tenant := models.Tenant{Name: DefaultTenantName}
	if err := db.WithContext(ctx).Where(models.Tenant{Name: DefaultTenantName}).FirstOrCreate(&tenant).Error; err != nil {
		return fmt.Errorf("failed to create default tenant: %w", err)
	}

	users := []struct {
		username string
		password string
		role     models.UserRole
	}{
		{opts.AdminUsername, opts.AdminPassword, models.RoleAdmin},
		{"sales@crm.local", "Sales123!", models.RoleSales},
	}
	for _, u := range users {
		if err := seedUser(ctx, db, tenant.ID, u.username, u.password, u.role, opts.BcryptCost); err != nil {
			return err
		}
	}

	if opts.Provision == nil {
		return nil
	}
	var tenantIDs []uint
	if err := db.WithContext(ctx).Model(&models.Tenant{}).Pluck("id", &tenantIDs).Error; err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}
	for _, id := range tenantIDs {
		if err := opts.Provision(ctx, id); err != nil {
			return fmt.Errorf("failed to provision tenant %d: %w", id, err)
		}
	}
	return nil
}

func seedUser(ctx context.Context, db *gorm.DB, tenantID uint, username, password string, role models.UserRole, cost int) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).
		Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check seed user %s: %w", username, err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return fmt.Errorf("failed to hash password for %s: %w", username, err)
	}

	user := models.User{
		TenantID:     tenantID,
		Username:     username,
		Name:         username,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return fmt.Errorf("failed to create seed user %s: %w", username, err)
	}

	slog.Info("created seed user", "username", username, "role", role)
	return nil
}
