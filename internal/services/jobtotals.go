package services

import "github.com/facadeworks/takeoff/internal/models"

// CalculationVersion tags JobTotals rows so a future formula change
// can be detected and migrated instead of silently mixing totals
// computed under different rules.
const CalculationVersion = 2

// JobTotalsService folds ElevationCalc rows into one JobTotals row.
type JobTotalsService struct{}

func NewJobTotalsService() *JobTotalsService { return &JobTotalsService{} }

// ComputeJobTotals folds calcs into existing totals. Only calcs whose
// page id is not already in the processed set are added; their ids are
// then recorded. This is the replace-then-add discipline: reprocessing
// an elevation must replace its calc and rebuild totals from scratch,
// never add on top. Calling this twice with the same calc set is a
// no-op the second time.
func (s *JobTotalsService) ComputeJobTotals(existing models.JobTotals, calcs []models.ElevationCalc) models.JobTotals {
	totals := existing
	processed := totals.ElevationsProcessed()

	var confSum float64
	var confCount int
	if totals.ConfidenceAvg != nil && len(processed) > 0 {
		// Carry the prior average weighted by prior elevation count.
		confSum = *totals.ConfidenceAvg * float64(len(processed))
		confCount = len(processed)
	}

	for i := range calcs {
		c := &calcs[i]
		if processed[c.PageID] {
			continue
		}
		processed[c.PageID] = true

		totals.WindowCount += c.WindowCount
		totals.DoorCount += c.DoorCount
		totals.GarageCount += c.GarageCount

		totals.GrossFacadeSF += c.GrossFacadeSF
		totals.WindowAreaSF += c.WindowAreaSF
		totals.DoorAreaSF += c.DoorAreaSF
		totals.GarageAreaSF += c.GarageAreaSF
		totals.NetSidingSF += c.NetSidingSF

		totals.WindowHeadLF += c.WindowHeadLF
		totals.WindowJambLF += c.WindowJambLF
		totals.WindowSillLF += c.WindowSillLF
		totals.DoorHeadLF += c.DoorHeadLF
		totals.DoorJambLF += c.DoorJambLF
		totals.DoorSillLF += c.DoorSillLF

		if c.ConfidenceAvg != nil {
			confSum += *c.ConfidenceAvg
			confCount++
		}
	}

	totals.SetElevationsProcessed(processed)
	// 1 square = 100 SF (siding/roofing trade unit).
	totals.SidingSquares = totals.NetSidingSF / 100
	totals.CalculationVersion = CalculationVersion
	if confCount > 0 {
		avg := confSum / float64(confCount)
		totals.ConfidenceAvg = &avg
	}
	return totals
}
