package models

import "time"

// Job lifecycle stages. A Takeoff is created once the job reaches
// StageExtracted.
const (
	StageUploaded   = "uploaded"
	StageProcessing = "processing"
	StageExtracted  = "extracted"
	StagePriced     = "priced"
)

type Job struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Stage     string `gorm:"not null;default:'uploaded'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
