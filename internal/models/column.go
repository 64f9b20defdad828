package models

import "time"

// Column is one kanban lane. The (Pipeline, Status) pair is what a lead takes
// on when it is moved into the lane.
type Column struct {
	ID       uint `gorm:"primaryKey" json:"id"`
	TenantID uint `gorm:"not null;uniqueIndex:ux_columns_tenant_name,priority:1;uniqueIndex:ux_columns_tenant_code,priority:1" json:"tenantId"`

	Name  string  `gorm:"size:100;not null;uniqueIndex:ux_columns_tenant_name,priority:2" json:"name"`
	Color string  `gorm:"size:16" json:"color"`
	Order int     `gorm:"column:position;not null;default:0" json:"order"`
	Code  *string `gorm:"size:50;uniqueIndex:ux_columns_tenant_code,priority:2" json:"code"`

	IsSystem bool       `gorm:"not null;default:false" json:"isSystem"`
	Pipeline Pipeline   `gorm:"type:varchar(32);not null" json:"pipeline"`
	Status   LeadStatus `gorm:"type:varchar(32);not null" json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
