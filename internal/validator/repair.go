package validator

import (
	"context"
	"log/slog"

	"github.com/starford/noteintel/internal/apperr"
	"github.com/starford/noteintel/internal/metrics"
	"github.com/starford/noteintel/internal/models"
)

// RepairReport counts the link rows deleted by a repair pass.
type RepairReport struct {
	BrokenLinksRemoved    int `json:"broken_links_removed"`
	DuplicateLinksRemoved int `json:"duplicate_links_removed"`
}

// RepairBrokenLinks deletes every broken link in result and, for each
// duplicate group, every row but the oldest. Deletes are issued one at a
// time and are idempotent, so an interrupted repair can simply be re-run.
// On cancellation or store failure the partial report is returned with
// the error.
func (v *Validator) RepairBrokenLinks(ctx context.Context, result *LinkValidationResult) (*RepairReport, error) {
	const op = "repair_broken_links"
	report := &RepairReport{}
	if result == nil {
		return report, nil
	}

	deleted := make(map[string]struct{})
	del := func(id string) error {
		if err := ctx.Err(); err != nil {
			return apperr.E(apperr.ErrLinkValidation, op, id, err)
		}
		if err := v.store.DeleteLink(ctx, id); err != nil {
			return apperr.E(apperr.ErrLinkValidation, op, id, err)
		}
		deleted[id] = struct{}{}
		metrics.LinksRepaired.Inc()
		return nil
	}

	for _, b := range result.BrokenLinks {
		if err := del(b.LinkID); err != nil {
			return report, err
		}
		report.BrokenLinksRemoved++
	}
	for _, d := range result.DuplicateLinks {
		links := append([]models.Link(nil), d.Links...)
		sortOldestFirst(links)
		for _, l := range links[min(1, len(links)):] {
			if _, done := deleted[l.ID]; done {
				continue
			}
			if err := del(l.ID); err != nil {
				return report, err
			}
			report.DuplicateLinksRemoved++
		}
	}

	v.logger.Info("validator: links repaired",
		slog.Int("broken_removed", report.BrokenLinksRemoved),
		slog.Int("duplicates_removed", report.DuplicateLinksRemoved))
	return report, nil
}
