package models

import (
	"encoding/json"
	"time"
)

// Detection classes recognized by the facade model.
const (
	ClassWindow       = "window"
	ClassDoor         = "door"
	ClassGarage       = "garage"
	ClassSiding       = "siding"
	ClassRoof         = "roof"
	ClassGable        = "gable"
	ClassExteriorWall = "exterior_wall"
	ClassUnclassified = "unclassified"
)

// Detection statuses. Deleted rows stay in place as an audit trail and
// are excluded from resolution and aggregation.
const (
	StatusAuto     = "auto"
	StatusVerified = "verified"
	StatusEdited   = "edited"
	StatusDeleted  = "deleted"
)

// Detection table names. The same schema backs all three tiers; stores
// select the table at query time.
const (
	TableDraftDetections     = "draft_detections"
	TableValidatedDetections = "validated_detections"
	TableAIDetections        = "ai_detections"
)

// Vertex is one polygon point in absolute pixel coordinates.
type Vertex struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Detection is one machine- or user-drawn facade annotation on a Page.
// Pixel geometry is authoritative; the *Ft/*SF/*LF fields are derived
// and nullable (null when scale metadata is missing or the geometry is
// malformed).
type Detection struct {
	ID          uint   `gorm:"primaryKey"`
	PageID      uint   `gorm:"not null;index"`
	Class       string `gorm:"not null;index"`
	Status      string `gorm:"not null;default:'auto';index"`
	X           float64
	Y           float64
	WidthPx     float64
	HeightPx    float64
	PolygonJSON string `gorm:"type:text"` // ordered vertex list, empty for plain boxes
	IsTriangle  bool
	Confidence  *float64 // [0,1]; nil on legacy rows (treated as 1.0)

	WidthFt     *float64
	HeightFt    *float64
	WidthIn     *float64
	HeightIn    *float64
	AreaSF      *float64
	PerimeterLF *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Polygon decodes PolygonJSON; returns nil when the detection is a
// plain bounding box or the stored JSON is unreadable.
func (d *Detection) Polygon() []Vertex {
	if d.PolygonJSON == "" {
		return nil
	}
	var vs []Vertex
	if err := json.Unmarshal([]byte(d.PolygonJSON), &vs); err != nil {
		return nil
	}
	return vs
}

// SetPolygon stores the vertex list; nil clears it.
func (d *Detection) SetPolygon(vs []Vertex) error {
	if len(vs) == 0 {
		d.PolygonJSON = ""
		return nil
	}
	b, err := json.Marshal(vs)
	if err != nil {
		return err
	}
	d.PolygonJSON = string(b)
	return nil
}
