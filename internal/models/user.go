package models

import "time"

type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleSales  UserRole = "sales"
	RoleViewer UserRole = "viewer"
)

type Tenant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type User struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	TenantID uint    `gorm:"not null;index" json:"tenantId"`
	Tenant   *Tenant `json:"-"`

	Username     string   `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Name         string   `gorm:"size:255" json:"name"`
	PasswordHash string   `gorm:"not null" json:"-"`
	Role         UserRole `gorm:"type:varchar(20);not null" json:"role"`

	CreatedAt time.Time `json:"createdAt"`
}

// Contact is the person a lead is opened for. Contact CRUD lives elsewhere;
// the pipeline only reads it for joins and search.
type Contact struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	TenantID uint   `gorm:"not null;index" json:"tenantId"`
	Name     string `gorm:"size:255;not null" json:"name"`
	Number   string `gorm:"size:50" json:"number"`
	Email    string `gorm:"size:255" json:"email"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
