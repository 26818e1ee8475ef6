package entities

import (
	"time"

	"gorm.io/datatypes"
)

// EmissionFactor is one reference corpus record with its embedding.
type EmissionFactor struct {
	ID          uint           `gorm:"primaryKey;autoIncrement"`
	Description string         `gorm:"type:text;not null"`
	Source      string         `gorm:"type:varchar(255);not null"`
	Value       float64        `gorm:"not null"`
	Unit        string         `gorm:"type:varchar(32);not null"`
	Region      string         `gorm:"type:varchar(64);index"`
	Year        int            `gorm:"index"`
	Category    string         `gorm:"type:varchar(64)"`
	Embedding   datatypes.JSON // []float32
	Dimensions  int            `gorm:"not null;default:0"`
	CreatedAt   time.Time      `gorm:"autoCreateTime"`
}

// TableName returns the table name for GORM.
func (EmissionFactor) TableName() string {
	return "emission_factors"
}
