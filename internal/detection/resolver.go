package detection

import (
	"context"
	"log"

	"github.com/facadeworks/takeoff/internal/models"
)

// Source tags which tier a resolution came from. The tagged union
// replaces the original ad-hoc three-query cascade so priority order
// is a single auditable decision.
type Source string

const (
	SourceDraft      Source = "draft"
	SourceValidated  Source = "validated"
	SourceAIOriginal Source = "ai_original"
	SourceNone       Source = "none"
)

// Resolution is the outcome for one page batch: the winning tier and
// its rows. Callers must surface Source for provenance.
type Resolution struct {
	Source     Source
	Detections []models.Detection
}

// Resolver picks the authoritative detection set for a batch of pages
// belonging to one job. Priority is fixed: draft > validated >
// ai_original > none.
type Resolver struct {
	Draft     Store
	Validated Store
	AI        Store
}

func NewResolver(draft, validated, ai Store) *Resolver {
	return &Resolver{Draft: draft, Validated: validated, AI: ai}
}

// Resolve walks the tiers in priority order with all-or-nothing batch
// semantics: the first tier with any row wins for the ENTIRE batch.
// A page with no rows in the winning tier resolves to zero detections
// rather than falling through to its own lower-tier data. This is a
// batch-level decision, kept deliberately (a per-page fallback would
// change what reviewers see for partially edited jobs).
//
// A tier whose store errors is logged and treated as empty; resolution
// proceeds to the next tier instead of failing the batch.
func (r *Resolver) Resolve(ctx context.Context, pageIDs []uint) Resolution {
	tiers := []struct {
		source Source
		store  Store
	}{
		{SourceDraft, r.Draft},
		{SourceValidated, r.Validated},
		{SourceAIOriginal, r.AI},
	}
	for _, tier := range tiers {
		rows, err := tier.store.ListByPageIDs(ctx, pageIDs, true)
		if err != nil {
			log.Printf("detection resolve: tier %s unavailable, treating as empty: %v", tier.source, err)
			continue
		}
		if len(rows) > 0 {
			return Resolution{Source: tier.source, Detections: rows}
		}
	}
	return Resolution{Source: SourceNone}
}

// ByPage groups resolved detections by owning page id. Pages in the
// batch with no rows map to an empty slice so callers can tell "page
// resolved empty" from "page not in batch".
func (res Resolution) ByPage(pageIDs []uint) map[uint][]models.Detection {
	grouped := make(map[uint][]models.Detection, len(pageIDs))
	for _, id := range pageIDs {
		grouped[id] = []models.Detection{}
	}
	for _, d := range res.Detections {
		grouped[d.PageID] = append(grouped[d.PageID], d)
	}
	return grouped
}
