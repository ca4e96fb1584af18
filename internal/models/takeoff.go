package models

import (
	"time"

	"gorm.io/gorm"
)

// Line item types. Paint is priced as a combined material+labor unit,
// so its labor extension folds into material cost downstream.
const (
	ItemTypeMaterial = "material"
	ItemTypeLabor    = "labor"
	ItemTypeOverhead = "overhead"
	ItemTypePaint    = "paint"
)

// Pricing methodologies.
const (
	MethodologyLegacy = "legacy"
	MethodologyV2     = "v2"
)

// Takeoff is the priced estimate for a job. Created when the job
// reaches StageExtracted; recomputed on every save; never deleted,
// only superseded (soft delete keeps the history).
type Takeoff struct {
	ID       uint      `gorm:"primaryKey"`
	JobID    uint      `gorm:"not null;index"`
	Sections []Section `gorm:"foreignKey:TakeoffID"`

	MaterialCost    float64
	LaborCost       float64
	OverheadCost    float64
	Subtotal        float64
	MarkupPercent   float64
	MarkupAmount    float64
	InsuranceAmount float64
	GrandTotal      float64
	Methodology     string `gorm:"not null;default:'legacy'"`

	// Version backs the optimistic concurrency check on save: two
	// concurrent save-and-recompute calls must not silently merge.
	Version int `gorm:"not null;default:1"`

	DeletedAt gorm.DeletedAt `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Section groups line items within a takeoff (siding, openings, trim).
type Section struct {
	ID        uint       `gorm:"primaryKey"`
	TakeoffID uint       `gorm:"not null;index"`
	Name      string     `gorm:"not null"`
	SortOrder int
	Items     []LineItem `gorm:"foreignKey:SectionID"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LineItem is one priced row of a takeoff section. Extended fields are
// always recomputable as quantity × unit cost; stored values are a
// cache invalidated by any edit.
type LineItem struct {
	ID        uint   `gorm:"primaryKey"`
	SectionID uint   `gorm:"not null;index"`
	ItemType  string `gorm:"not null"`

	Description       string
	Quantity          float64
	Unit              string // SF, LF, SQ, EA, HR
	MaterialUnitCost  float64
	LaborUnitCost     float64
	EquipmentUnitCost float64

	MaterialExtended float64
	LaborExtended    float64

	// PresentationGroup is a display category (trim, flashing, ...);
	// orthogonal to ItemType.
	PresentationGroup string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PresentationGroup is a named display bucket for line items, seeded at
// startup.
type PresentationGroup struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null;unique"`
	SortOrder int
	CreatedAt time.Time
	UpdatedAt time.Time
}
