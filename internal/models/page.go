package models

import "time"

// Page types as produced by the upstream PDF splitter.
const (
	PageTypeElevation = "elevation"
	PageTypePlan      = "plan"
	PageTypeDetail    = "detail"
)

// Page is one drawing sheet extracted from an uploaded plan set.
// Immutable once created; ScaleRatio and DPI may be corrected by
// re-processing the source PDF.
type Page struct {
	ID            uint   `gorm:"primaryKey"`
	JobID         uint   `gorm:"not null;index"`
	PageType      string `gorm:"not null;index"`
	ElevationName string // front, rear, left, right (elevation pages only)
	ScaleRatio    float64
	DPI           float64
	ImageURL      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
