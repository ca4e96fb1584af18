// Package geometry converts pixel-space annotations into real-world
// measurements. Everything here is pure: identical inputs always yield
// identical outputs, and bad inputs yield nil fields, never errors.
package geometry

import (
	"math"

	"github.com/facadeworks/takeoff/internal/models"
)

// Input carries the pixel geometry of one detection plus the owning
// page's scale metadata. ScaleRatio is real-world feet per pixel.
type Input struct {
	WidthPx    float64
	HeightPx   float64
	Polygon    []models.Vertex
	IsTriangle bool
	ScaleRatio float64
	DPI        float64
}

// Result holds the derived measurements. Fields are nil when the
// required inputs are zero, missing, or non-finite; they are never
// negative.
type Result struct {
	WidthFt     *float64
	HeightFt    *float64
	WidthIn     *float64
	HeightIn    *float64
	AreaSF      *float64
	PerimeterLF *float64
}

// Convert derives real-world measurements from pixel geometry.
//
// Rectangle mode: area = w·h·scale², perimeter = 2(w+h)·scale.
// Polygon mode (≥3 vertices): shoelace area scaled by scale²,
// perimeter as the sum of Euclidean edge lengths scaled linearly.
// Triangle flag: area is half the bounding-box area (bounding triangle
// heuristic); perimeter stays the bounding-box perimeter.
//
// A supplied polygon with fewer than 3 vertices or non-finite
// coordinates is malformed geometry: every derived field comes back
// nil. The bounding box does not stand in for it.
func Convert(in Input) Result {
	if !validScale(in.ScaleRatio) || !finiteNonNegative(in.DPI) {
		return Result{}
	}
	if !positiveFinite(in.WidthPx) || !positiveFinite(in.HeightPx) {
		return Result{}
	}
	if len(in.Polygon) > 0 && !validPolygon(in.Polygon) {
		return Result{}
	}

	scale := in.ScaleRatio
	widthFt := in.WidthPx * scale
	heightFt := in.HeightPx * scale
	widthIn := widthFt * 12
	heightIn := heightFt * 12

	var areaSF, perimeterLF float64
	switch {
	case in.IsTriangle:
		areaSF = in.WidthPx * in.HeightPx * scale * scale / 2
		perimeterLF = 2 * (in.WidthPx + in.HeightPx) * scale
	case len(in.Polygon) > 0:
		areaSF = shoelace(in.Polygon) * scale * scale
		perimeterLF = edgeLength(in.Polygon) * scale
	default:
		areaSF = in.WidthPx * in.HeightPx * scale * scale
		perimeterLF = 2 * (in.WidthPx + in.HeightPx) * scale
	}

	return Result{
		WidthFt:     &widthFt,
		HeightFt:    &heightFt,
		WidthIn:     &widthIn,
		HeightIn:    &heightIn,
		AreaSF:      &areaSF,
		PerimeterLF: &perimeterLF,
	}
}

// Apply fills a detection's derived fields from its pixel geometry and
// the owning page's scale metadata.
func Apply(d *models.Detection, page models.Page) {
	r := Convert(Input{
		WidthPx:    d.WidthPx,
		HeightPx:   d.HeightPx,
		Polygon:    d.Polygon(),
		IsTriangle: d.IsTriangle,
		ScaleRatio: page.ScaleRatio,
		DPI:        page.DPI,
	})
	d.WidthFt = r.WidthFt
	d.HeightFt = r.HeightFt
	d.WidthIn = r.WidthIn
	d.HeightIn = r.HeightIn
	d.AreaSF = r.AreaSF
	d.PerimeterLF = r.PerimeterLF
}

// validPolygon reports whether the vertex list is usable geometry: at
// least 3 vertices, all finite.
func validPolygon(vs []models.Vertex) bool {
	if len(vs) < 3 {
		return false
	}
	for _, v := range vs {
		if !isFinite(v.X) || !isFinite(v.Y) {
			return false
		}
	}
	return true
}

// shoelace computes the absolute polygon area in pixel² units.
func shoelace(vs []models.Vertex) float64 {
	var sum float64
	n := len(vs)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += vs[i].X*vs[j].Y - vs[j].X*vs[i].Y
	}
	return math.Abs(sum) / 2
}

// edgeLength sums the Euclidean edge lengths of a closed polygon in
// pixel units.
func edgeLength(vs []models.Vertex) float64 {
	var sum float64
	n := len(vs)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		dx := vs[j].X - vs[i].X
		dy := vs[j].Y - vs[i].Y
		sum += math.Hypot(dx, dy)
	}
	return sum
}

func validScale(s float64) bool { return positiveFinite(s) }

func positiveFinite(f float64) bool {
	return f > 0 && isFinite(f)
}
func finiteNonNegative(f float64) bool {
	return f >= 0 && isFinite(f)
}
func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
