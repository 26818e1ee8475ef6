package entities

import "time"

// ActivityEntry is an ingested activity awaiting or holding a calculation.
// Entry IDs are chosen by clients and are only unique within a tenant.
type ActivityEntry struct {
	RowID        uint       `gorm:"primaryKey"`
	TenantID     string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_activity_tenant_entry,priority:1;index:idx_activity_tenant_status"`
	EntryID      string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_activity_tenant_entry,priority:2"`
	Description  string     `gorm:"type:text;not null"`
	Quantity     float64    `gorm:"not null"`
	Unit         string     `gorm:"type:varchar(32);not null"`
	Scope        *int       `gorm:"type:smallint"`
	Category     string     `gorm:"type:varchar(64)"`
	ActivityDate *time.Time `gorm:"index"`
	Status       string     `gorm:"type:varchar(16);not null;default:unprocessed;index:idx_activity_tenant_status"`
	CreatedAt    time.Time  `gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (ActivityEntry) TableName() string {
	return "activity_entries"
}
