package services

import (
	"fmt"

	"github.com/facadeworks/takeoff/internal/config"
	"github.com/facadeworks/takeoff/internal/models"
)

// PricingOptions drives one estimate computation. Nil rate fields fall
// back to the documented defaults from Settings; every substitution is
// reported in Totals.DefaultsApplied so a missing rate can never
// silently change a grand total.
type PricingOptions struct {
	MarkupPercent        *float64
	LIRatePercent        *float64
	UnemploymentPercent  *float64
	InsuranceRatePer1000 *float64
	Methodology          string // models.MethodologyLegacy or models.MethodologyV2
}

// PricingTotals is the full output of the pipeline. Stored takeoff
// totals are a cache of these numbers; the exporter must be handed
// them verbatim.
type PricingTotals struct {
	MaterialCost    float64
	LaborCost       float64
	OverheadCost    float64
	Subtotal        float64
	MarkupPercent   float64
	MarkupAmount    float64
	MaterialMarkup  float64 // v2 only
	LaborMarkup     float64 // v2 only
	InsuranceAmount float64 // v2 only
	GrandTotal      float64

	// SidingSquares is the measured quantity from the job rollup,
	// joined in by the caller so the estimate contract is one value.
	// The pricing pipeline itself never computes it.
	SidingSquares float64

	DefaultsApplied []string
	Warnings        []string
}

// PricingService runs the line-item cost pipeline: extend, subtotal by
// category, markup, grand total. Pure over its inputs; recomputing
// from the same line items always yields the same totals.
type PricingService struct {
	Settings config.Settings
}

func NewPricingService(settings config.Settings) *PricingService {
	return &PricingService{Settings: settings}
}

// ComputeEstimateTotals prices a takeoff's line items.
//
// Extension rules by item type:
//   - material, paint: materialExtended = qty × materialUnitCost,
//     laborExtended = qty × laborUnitCost
//   - labor: loadedLabor = qty × laborUnitCost × (1 + li + unemployment);
//     burden is applied here and only here, never compounded
//   - overhead: the raw equipmentUnitCost, already a flat dollar figure
//
// Category rules: paint is priced as a combined material+labor unit, so
// its labor extension folds into material cost and stays out of labor
// cost. Zero quantities contribute zero; negative quantities are
// accepted (historical behavior) but flagged as warnings.
func (s *PricingService) ComputeEstimateTotals(items []models.LineItem, opts PricingOptions) PricingTotals {
	var totals PricingTotals

	markup := s.Settings.Markup.LegacyPercent
	if opts.MarkupPercent != nil {
		markup = *opts.MarkupPercent
	} else {
		totals.DefaultsApplied = append(totals.DefaultsApplied,
			fmt.Sprintf("markup_percent=%.2f", markup))
	}
	li := s.Settings.Burden.LIRatePercent
	if opts.LIRatePercent != nil {
		li = *opts.LIRatePercent
	} else {
		totals.DefaultsApplied = append(totals.DefaultsApplied,
			fmt.Sprintf("li_rate_percent=%.2f", li))
	}
	unemployment := s.Settings.Burden.UnemploymentPercent
	if opts.UnemploymentPercent != nil {
		unemployment = *opts.UnemploymentPercent
	} else {
		totals.DefaultsApplied = append(totals.DefaultsApplied,
			fmt.Sprintf("unemployment_percent=%.2f", unemployment))
	}
	insuranceRate := s.Settings.Insurance.RatePer1000
	if opts.InsuranceRatePer1000 != nil {
		insuranceRate = *opts.InsuranceRatePer1000
	}
	totals.MarkupPercent = markup

	burdenFactor := 1 + li/100 + unemployment/100

	for i := range items {
		it := &items[i]
		if it.Quantity < 0 {
			totals.Warnings = append(totals.Warnings,
				fmt.Sprintf("line %d (%s): negative quantity %.2f", it.ID, it.Description, it.Quantity))
		}
		switch it.ItemType {
		case models.ItemTypeMaterial:
			totals.MaterialCost += it.Quantity * it.MaterialUnitCost
			totals.LaborCost += it.Quantity * it.LaborUnitCost
		case models.ItemTypePaint:
			// Combined material+labor unit pricing.
			totals.MaterialCost += it.Quantity*it.MaterialUnitCost + it.Quantity*it.LaborUnitCost
		case models.ItemTypeLabor:
			totals.LaborCost += it.Quantity * it.LaborUnitCost * burdenFactor
		case models.ItemTypeOverhead:
			totals.OverheadCost += it.EquipmentUnitCost
		default:
			totals.Warnings = append(totals.Warnings,
				fmt.Sprintf("line %d (%s): unknown item type %q ignored", it.ID, it.Description, it.ItemType))
		}
	}

	totals.Subtotal = totals.MaterialCost + totals.LaborCost + totals.OverheadCost

	switch opts.Methodology {
	case models.MethodologyV2:
		// Markup applied separately to material and labor, plus a flat
		// project-insurance line on the subtotal.
		totals.MaterialMarkup = totals.MaterialCost * markup / 100
		totals.LaborMarkup = totals.LaborCost * markup / 100
		totals.MarkupAmount = totals.MaterialMarkup + totals.LaborMarkup
		totals.InsuranceAmount = totals.Subtotal / 1000 * insuranceRate
	default:
		// Legacy: one blended markup on the combined subtotal.
		totals.MarkupAmount = totals.Subtotal * markup / 100
	}

	totals.GrandTotal = totals.Subtotal + totals.MarkupAmount + totals.InsuranceAmount
	return totals
}

// Extend recomputes a line item's cached extension fields in place.
func Extend(it *models.LineItem) {
	it.MaterialExtended = it.Quantity * it.MaterialUnitCost
	it.LaborExtended = it.Quantity * it.LaborUnitCost
}
