// ABOUTME: Data migration from any tracker backend into local storage.
// ABOUTME: Copies trackers, installs, value resources, and ontologies.

package storage

import (
	"context"
	"fmt"

	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/remote"
)

// MigrateSummary holds counts of migrated entities.
type MigrateSummary struct {
	Trackers   int
	Installs   int
	Values     int
	Ontologies int
}

// MigrateData copies everything src exposes into dst. Values are copied for
// both value contexts within interval. Trackers src lists only with public
// trackers included are stored as public.
func MigrateData(ctx context.Context, src remote.Backend, dst Repository, interval models.Interval) (*MigrateSummary, error) {
	summary := &MigrateSummary{}

	private, err := src.FetchTrackers(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list source trackers: %w", err)
	}
	own := make(map[string]bool, len(private))
	for _, t := range private {
		own[t.ID] = true
	}

	trackers, err := src.FetchTrackers(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list source trackers: %w", err)
	}

	codes := map[string]bool{}
	for _, t := range trackers {
		if err := dst.CreateTracker(ctx, t, !own[t.ID]); err != nil {
			return nil, fmt.Errorf("create tracker %s: %w", t.ID, err)
		}
		summary.Trackers++

		if t.IsInstalled() {
			if err := dst.RestoreInstall(ctx, t); err != nil {
				return nil, err
			}
			summary.Installs++
		}
		if t.Code != "" {
			codes[t.Code] = true
		}
	}

	for _, vc := range []models.ValuesContext{models.DefaultValuesContext, models.PillarValuesContext} {
		resources, err := src.FetchTrackerValues(ctx, vc, interval)
		if err != nil {
			return nil, fmt.Errorf("list source values: %w", err)
		}
		for _, r := range resources {
			if _, err := dst.UpsertTrackerResource(ctx, r); err != nil {
				return nil, fmt.Errorf("create resource %s: %w", r.ID, err)
			}
			summary.Values++
		}
	}

	for code := range codes {
		forest, err := src.FetchOntology(ctx, code)
		if err != nil {
			return nil, fmt.Errorf("fetch ontology %s: %w", code, err)
		}
		if len(forest) == 0 {
			continue
		}
		if err := dst.PutOntology(ctx, code, forest); err != nil {
			return nil, err
		}
		summary.Ontologies++
	}

	return summary, nil
}
