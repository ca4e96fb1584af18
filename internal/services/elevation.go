package services

import (
	"github.com/facadeworks/takeoff/internal/geometry"
	"github.com/facadeworks/takeoff/internal/models"
)

// ElevationService rolls the live detections of one elevation page
// into an ElevationCalc row. The computation is pure: the row is a
// function of the non-deleted detections plus the page's scale
// metadata, recomputed in full every time. No incremental patching —
// recomputation is cheap and the idempotence guarantee is not.
type ElevationService struct{}

func NewElevationService() *ElevationService { return &ElevationService{} }

// ComputeElevationCalc builds the rollup for one page. Detections with
// status deleted are skipped; detections whose geometry cannot be
// converted (missing scale, malformed polygon) contribute to counts
// but not to areas or perimeters.
func (s *ElevationService) ComputeElevationCalc(page models.Page, detections []models.Detection) models.ElevationCalc {
	calc := models.ElevationCalc{
		PageID:        page.ID,
		JobID:         page.JobID,
		ElevationName: page.ElevationName,
	}

	var confSum float64
	var confCount int

	for i := range detections {
		d := &detections[i]
		if d.Status == models.StatusDeleted {
			continue
		}

		conf := 1.0
		if d.Confidence != nil {
			conf = *d.Confidence
		}
		confSum += conf
		confCount++

		r := geometry.Convert(geometry.Input{
			WidthPx:    d.WidthPx,
			HeightPx:   d.HeightPx,
			Polygon:    d.Polygon(),
			IsTriangle: d.IsTriangle,
			ScaleRatio: page.ScaleRatio,
			DPI:        page.DPI,
		})

		var area, widthFt, heightFt float64
		if r.AreaSF != nil {
			area = *r.AreaSF
		}
		if r.WidthFt != nil {
			widthFt = *r.WidthFt
		}
		if r.HeightFt != nil {
			heightFt = *r.HeightFt
		}

		switch d.Class {
		case models.ClassWindow:
			calc.WindowCount++
			calc.WindowAreaSF += area
			// Bounding box decomposed into head (top), two jambs, sill.
			calc.WindowHeadLF += widthFt
			calc.WindowJambLF += 2 * heightFt
			calc.WindowSillLF += widthFt
		case models.ClassDoor:
			calc.DoorCount++
			calc.DoorAreaSF += area
			calc.DoorHeadLF += widthFt
			calc.DoorJambLF += 2 * heightFt
			calc.DoorSillLF += widthFt
		case models.ClassGarage:
			calc.GarageCount++
			calc.GarageAreaSF += area
		case models.ClassSiding:
			calc.SidingCount++
			calc.GrossFacadeSF += area
		case models.ClassExteriorWall:
			calc.WallCount++
			calc.GrossFacadeSF += area
		case models.ClassRoof:
			calc.RoofCount++
		case models.ClassGable:
			calc.GableCount++
		default:
			calc.OtherCount++
		}
	}

	// Openings can exceed the detected facade on partial drawings;
	// net siding is floored at zero rather than going negative.
	net := calc.GrossFacadeSF - (calc.WindowAreaSF + calc.DoorAreaSF + calc.GarageAreaSF)
	if net < 0 {
		net = 0
	}
	calc.NetSidingSF = net

	if confCount > 0 {
		avg := confSum / float64(confCount)
		calc.ConfidenceAvg = &avg
	}
	return calc
}
