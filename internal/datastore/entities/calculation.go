package entities

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Calculation is one persisted calculation result. Rows are never updated.
type Calculation struct {
	ID       string `gorm:"primaryKey;type:varchar(36)"`
	EntryID  string `gorm:"type:varchar(64);not null;index"`
	TenantID string `gorm:"type:varchar(64);not null;index:idx_calc_tenant_created;uniqueIndex:idx_calc_settled_entry,priority:1"`

	// SettledEntryID equals EntryID on successful rows and is NULL on failed
	// ones. Unique per tenant, which makes the success insert idempotent.
	SettledEntryID *string `gorm:"type:varchar(64);uniqueIndex:idx_calc_settled_entry,priority:2"`

	TotalEmissions decimal.Decimal `gorm:"type:decimal(24,6);not null;default:0"`
	EmissionsUnit  string          `gorm:"type:varchar(16);not null"`
	Method         string          `gorm:"type:varchar(16);not null;index"`
	Confidence     float64         `gorm:"not null;default:0"`
	Source         string          `gorm:"type:varchar(255)"`
	FactorID       *uint
	FactorValue    decimal.Decimal `gorm:"type:decimal(24,10);not null;default:0"`
	FactorUnit     string          `gorm:"type:varchar(32)"`
	Scope          *int            `gorm:"type:smallint"`
	DurationMs     int64
	FallbackReason string `gorm:"type:varchar(32)"`
	ErrorKind      string `gorm:"type:varchar(32)"`
	ErrorMessage   string `gorm:"type:text"`
	Warnings       datatypes.JSON
	RequiresReview bool      `gorm:"not null;default:false"`
	Alternates     datatypes.JSON
	CreatedAt      time.Time `gorm:"autoCreateTime;index:idx_calc_tenant_created"`
}

// TableName returns the table name for GORM.
func (Calculation) TableName() string {
	return "calculations"
}
