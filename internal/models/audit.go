package models

import "time"

// Audit logging. Re-detection soft-delete/insert batches and takeoff
// recomputations write one row each so provenance stays reconstructable.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey"`
	EntityType string    // ex: "Page", "Takeoff", "Detection"
	EntityID   uint      // id of the affected entity
	Action     string    // ex: "redetect", "recompute", "supersede"
	BatchID    string    `gorm:"size:36;index"` // uuid grouping related rows
	Detail     string    // free-form summary (counts, source, version)
	CreatedAt  time.Time // when
}
