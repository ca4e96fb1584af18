package models

import (
	"encoding/json"
	"time"
)

// ElevationCalc is the per-page measurement rollup. One row per
// elevation Page, fully recomputed from the live non-deleted
// detections on every pass; never patched incrementally.
type ElevationCalc struct {
	ID            uint `gorm:"primaryKey"`
	PageID        uint `gorm:"not null;uniqueIndex"`
	JobID         uint `gorm:"not null;index"`
	ElevationName string

	WindowCount int
	DoorCount   int
	GarageCount int
	SidingCount int
	RoofCount   int
	GableCount  int
	WallCount   int
	OtherCount  int

	GrossFacadeSF float64
	WindowAreaSF  float64
	DoorAreaSF    float64
	GarageAreaSF  float64
	NetSidingSF   float64 // gross minus openings, floored at 0

	WindowHeadLF float64
	WindowJambLF float64
	WindowSillLF float64
	DoorHeadLF   float64
	DoorJambLF   float64
	DoorSillLF   float64

	ConfidenceAvg *float64 // nil when the page has no detections

	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobTotals is the per-job rollup of ElevationCalc rows. Derived data:
// any detection mutation invalidates it and forces a full recompute.
type JobTotals struct {
	ID    uint `gorm:"primaryKey"`
	JobID uint `gorm:"not null;uniqueIndex"`

	WindowCount int
	DoorCount   int
	GarageCount int

	GrossFacadeSF float64
	WindowAreaSF  float64
	DoorAreaSF    float64
	GarageAreaSF  float64
	NetSidingSF   float64
	SidingSquares float64 // NetSidingSF / 100

	WindowHeadLF float64
	WindowJambLF float64
	WindowSillLF float64
	DoorHeadLF   float64
	DoorJambLF   float64
	DoorSillLF   float64

	ConfidenceAvg *float64

	// ElevationsProcessedJSON is the set of page ids already folded in,
	// guarding against double counting when an elevation is reprocessed.
	ElevationsProcessedJSON string `gorm:"type:text"`
	CalculationVersion      int    `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ElevationsProcessed decodes the processed-page set.
func (t *JobTotals) ElevationsProcessed() map[uint]bool {
	set := map[uint]bool{}
	if t.ElevationsProcessedJSON == "" {
		return set
	}
	var ids []uint
	if err := json.Unmarshal([]byte(t.ElevationsProcessedJSON), &ids); err != nil {
		return set
	}
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// SetElevationsProcessed stores the processed-page set in ascending
// order so identical sets serialize identically.
func (t *JobTotals) SetElevationsProcessed(set map[uint]bool) {
	ids := make([]uint, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	b, _ := json.Marshal(ids)
	t.ElevationsProcessedJSON = string(b)
}
