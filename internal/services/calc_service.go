package services

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/facadeworks/takeoff/internal/detection"
	"github.com/facadeworks/takeoff/internal/models"
)

// CalcService orchestrates the measurement pipeline for one job:
// resolve the authoritative detection set for the job's elevation
// pages, compute each page's ElevationCalc (fan-out, one task per
// page), then fold the calcs into JobTotals (single reduction after
// the join). All persistence happens before and after the pure
// computation, never interleaved with it.
type CalcService struct {
	DB        *gorm.DB
	Resolver  *detection.Resolver
	Elevation *ElevationService
	Totals    *JobTotalsService
}

func NewCalcService(db *gorm.DB, resolver *detection.Resolver) *CalcService {
	return &CalcService{
		DB:        db,
		Resolver:  resolver,
		Elevation: NewElevationService(),
		Totals:    NewJobTotalsService(),
	}
}

// ResolvedPages is the resolver output shaped for callers: provenance
// plus per-page detection groups.
type ResolvedPages struct {
	Source detection.Source
	Pages  []PageDetections
}

type PageDetections struct {
	Page       models.Page
	Detections []models.Detection
}

// ResolveDetections resolves the authoritative detections for all of a
// job's pages of the given type, one batch-level tier decision.
func (s *CalcService) ResolveDetections(ctx context.Context, jobID uint, pageType string) (ResolvedPages, error) {
	pages, err := s.pagesByJob(ctx, jobID, pageType)
	if err != nil {
		return ResolvedPages{}, err
	}
	pageIDs := make([]uint, len(pages))
	for i, p := range pages {
		pageIDs[i] = p.ID
	}
	res := s.Resolver.Resolve(ctx, pageIDs)
	grouped := res.ByPage(pageIDs)
	out := ResolvedPages{Source: res.Source, Pages: make([]PageDetections, len(pages))}
	for i, p := range pages {
		out.Pages[i] = PageDetections{Page: p, Detections: grouped[p.ID]}
	}
	return out, nil
}

// CalcResult bundles the recomputed rows for one job run.
type CalcResult struct {
	Source detection.Source
	Calcs  []models.ElevationCalc
	Totals models.JobTotals
}

// RunJobCalc recomputes every elevation rollup and the job totals for
// a job, replacing stored derived rows in place. Derived rows are
// caches: the run always rebuilds them from the live detections, never
// patches them.
func (s *CalcService) RunJobCalc(ctx context.Context, jobID uint) (CalcResult, error) {
	resolved, err := s.ResolveDetections(ctx, jobID, models.PageTypeElevation)
	if err != nil {
		return CalcResult{}, err
	}

	// Fan out one task per page; pages are independent so order does
	// not matter, but the reduction below must wait for all of them.
	calcs := make([]models.ElevationCalc, len(resolved.Pages))
	var mu sync.Mutex
	g, _ := errgroup.WithContext(ctx)
	for i := range resolved.Pages {
		i := i
		g.Go(func() error {
			pd := resolved.Pages[i]
			c := s.Elevation.ComputeElevationCalc(pd.Page, pd.Detections)
			mu.Lock()
			calcs[i] = c
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return CalcResult{}, err
	}
	sort.Slice(calcs, func(i, j int) bool { return calcs[i].PageID < calcs[j].PageID })

	// Full rebuild: start from an empty totals row so a reprocessed
	// elevation replaces its contribution instead of stacking on it.
	totals := s.Totals.ComputeJobTotals(models.JobTotals{JobID: jobID}, calcs)

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		for i := range calcs {
			var existing models.ElevationCalc
			findErr := tx.Where("page_id = ?", calcs[i].PageID).First(&existing).Error
			if findErr == nil {
				calcs[i].ID = existing.ID
				calcs[i].CreatedAt = existing.CreatedAt
			} else if findErr != gorm.ErrRecordNotFound {
				return findErr
			}
			if err := tx.Save(&calcs[i]).Error; err != nil {
				return err
			}
		}
		var existingTotals models.JobTotals
		findErr := tx.Where("job_id = ?", jobID).First(&existingTotals).Error
		if findErr == nil {
			totals.ID = existingTotals.ID
			totals.CreatedAt = existingTotals.CreatedAt
		} else if findErr != gorm.ErrRecordNotFound {
			return findErr
		}
		return tx.Save(&totals).Error
	})
	if err != nil {
		return CalcResult{}, err
	}

	return CalcResult{Source: resolved.Source, Calcs: calcs, Totals: totals}, nil
}

// JobTotals returns the stored totals row for a job.
func (s *CalcService) JobTotals(ctx context.Context, jobID uint) (models.JobTotals, error) {
	var totals models.JobTotals
	err := s.DB.WithContext(ctx).Where("job_id = ?", jobID).First(&totals).Error
	return totals, err
}

func (s *CalcService) pagesByJob(ctx context.Context, jobID uint, pageType string) ([]models.Page, error) {
	q := s.DB.WithContext(ctx).Where("job_id = ?", jobID)
	if pageType != "" {
		q = q.Where("page_type = ?", pageType)
	}
	var pages []models.Page
	if err := q.Order("id").Find(&pages).Error; err != nil {
		return nil, err
	}
	return pages, nil
}
