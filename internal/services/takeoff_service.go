package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/facadeworks/takeoff/internal/models"
)

// ErrStaleTakeoff signals the optimistic concurrency check failed: the
// takeoff changed since the caller loaded it. The caller must reload
// and retry; totals are never merged blindly.
var ErrStaleTakeoff = errors.New("takeoff_version_stale")

var ErrJobNotExtracted = errors.New("job_not_extracted")

// TakeoffService owns the takeoff write path: creation at extraction,
// line-item save with full recompute, supersede-not-delete.
type TakeoffService struct {
	DB      *gorm.DB
	Pricing *PricingService
}

func NewTakeoffService(db *gorm.DB, pricing *PricingService) *TakeoffService {
	return &TakeoffService{DB: db, Pricing: pricing}
}

// CreateForJob opens a takeoff for a job that has reached the
// extracted stage, seeded with the default markup percent.
func (s *TakeoffService) CreateForJob(jobID uint) (*models.Takeoff, error) {
	var job models.Job
	if err := s.DB.First(&job, jobID).Error; err != nil {
		return nil, err
	}
	if job.Stage != models.StageExtracted && job.Stage != models.StagePriced {
		return nil, ErrJobNotExtracted
	}
	tk := models.Takeoff{
		JobID:         jobID,
		MarkupPercent: s.Pricing.Settings.Markup.DefaultPercent,
		Methodology:   models.MethodologyLegacy,
		Version:       1,
	}
	if err := s.DB.Create(&tk).Error; err != nil {
		return nil, err
	}
	return &tk, nil
}

// SaveInput is one save-and-recompute request. Version must match the
// stored row or the save is rejected with ErrStaleTakeoff.
type SaveInput struct {
	TakeoffID     uint
	Version       int
	MarkupPercent *float64
	Methodology   string
	Sections      []SectionInput
}

type SectionInput struct {
	Name  string
	Items []models.LineItem
}

// SaveAndRecompute replaces the takeoff's sections and line items,
// reruns the pricing pipeline over the new list, and stores the
// recomputed totals. Stored totals are a cache: they are always
// derived fresh here, never patched.
func (s *TakeoffService) SaveAndRecompute(in SaveInput, opts PricingOptions) (*models.Takeoff, PricingTotals, error) {
	var tk models.Takeoff
	var totals PricingTotals

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&tk, in.TakeoffID).Error; err != nil {
			return err
		}
		if tk.Version != in.Version {
			return ErrStaleTakeoff
		}

		// Replace sections and items wholesale; partial edits would
		// break the recompute-from-source guarantee.
		var sectionIDs []uint
		if err := tx.Model(&models.Section{}).Where("takeoff_id = ?", tk.ID).Pluck("id", &sectionIDs).Error; err != nil {
			return err
		}
		if len(sectionIDs) > 0 {
			if err := tx.Where("section_id IN ?", sectionIDs).Delete(&models.LineItem{}).Error; err != nil {
				return err
			}
			if err := tx.Where("takeoff_id = ?", tk.ID).Delete(&models.Section{}).Error; err != nil {
				return err
			}
		}

		var allItems []models.LineItem
		for si, sec := range in.Sections {
			row := models.Section{TakeoffID: tk.ID, Name: sec.Name, SortOrder: si}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			for i := range sec.Items {
				it := sec.Items[i]
				it.ID = 0
				it.SectionID = row.ID
				Extend(&it)
				if err := tx.Create(&it).Error; err != nil {
					return err
				}
				allItems = append(allItems, it)
			}
		}

		if in.Methodology != "" {
			tk.Methodology = in.Methodology
		}
		if in.MarkupPercent != nil {
			tk.MarkupPercent = *in.MarkupPercent
		}
		effOpts := opts
		effOpts.Methodology = tk.Methodology
		if effOpts.MarkupPercent == nil {
			mp := tk.MarkupPercent
			effOpts.MarkupPercent = &mp
		}

		totals = s.Pricing.ComputeEstimateTotals(allItems, effOpts)

		var jt models.JobTotals
		jtErr := tx.Where("job_id = ?", tk.JobID).First(&jt).Error
		switch {
		case jtErr == nil:
			totals.SidingSquares = jt.SidingSquares
		case errors.Is(jtErr, gorm.ErrRecordNotFound):
			// No measurement rollup yet; squares stays zero.
		default:
			return jtErr
		}

		tk.MaterialCost = totals.MaterialCost
		tk.LaborCost = totals.LaborCost
		tk.OverheadCost = totals.OverheadCost
		tk.Subtotal = totals.Subtotal
		tk.MarkupAmount = totals.MarkupAmount
		tk.InsuranceAmount = totals.InsuranceAmount
		tk.GrandTotal = totals.GrandTotal
		tk.Version++

		if err := tx.Save(&tk).Error; err != nil {
			return err
		}

		audit := models.AuditLog{
			EntityType: "Takeoff",
			EntityID:   tk.ID,
			Action:     "recompute",
			BatchID:    uuid.NewString(),
			Detail:     fmt.Sprintf("items=%d grand_total=%.2f version=%d", len(allItems), tk.GrandTotal, tk.Version),
		}
		return tx.Create(&audit).Error
	})
	if err != nil {
		return nil, PricingTotals{}, err
	}
	return &tk, totals, nil
}

// Supersede soft-deletes a takeoff and opens a fresh one for the same
// job. Takeoffs are never hard-deleted; the priced history stays.
func (s *TakeoffService) Supersede(takeoffID uint) (*models.Takeoff, error) {
	var old models.Takeoff
	if err := s.DB.First(&old, takeoffID).Error; err != nil {
		return nil, err
	}
	var fresh *models.Takeoff
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&old).Error; err != nil {
			return err
		}
		nt := models.Takeoff{
			JobID:         old.JobID,
			MarkupPercent: old.MarkupPercent,
			Methodology:   old.Methodology,
			Version:       1,
		}
		if err := tx.Create(&nt).Error; err != nil {
			return err
		}
		fresh = &nt
		audit := models.AuditLog{
			EntityType: "Takeoff",
			EntityID:   old.ID,
			Action:     "supersede",
			BatchID:    uuid.NewString(),
			Detail:     fmt.Sprintf("replaced_by=%d", nt.ID),
		}
		return tx.Create(&audit).Error
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}
