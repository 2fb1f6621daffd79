// ABOUTME: Export and import functionality for tracker data.
// ABOUTME: Supports JSON, YAML, and Markdown export formats plus YAML catalogs.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/harperreed/tracker/internal/fhir"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/units"
	"gopkg.in/yaml.v3"
)

// ExportVersion is written into every export.
const ExportVersion = "1.0"

// CatalogTracker is a tracker definition together with its visibility.
type CatalogTracker struct {
	models.Tracker `yaml:",inline"`
	Public         bool `json:"public" yaml:"public"`
}

// ExportData represents the full export format for tracker data.
type ExportData struct {
	Version    string                                `json:"version" yaml:"version"`
	ExportedAt time.Time                             `json:"exported_at" yaml:"exported_at"`
	Tool       string                                `json:"tool" yaml:"tool"`
	Trackers   []CatalogTracker                      `json:"trackers" yaml:"trackers"`
	Resources  []models.Resource                     `json:"resources" yaml:"resources"`
	Ontologies map[string][]models.CodedRelationship `json:"ontologies,omitempty" yaml:"ontologies,omitempty"`
}

// GetAllData retrieves all data for export.
func (d *DB) GetAllData(ctx context.Context) (*ExportData, error) {
	trackers, err := d.FetchTrackers(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list trackers: %w", err)
	}
	public, err := d.publicTrackers(ctx)
	if err != nil {
		return nil, err
	}

	resources, err := d.ListResources(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}

	ontologies, err := d.ontologies(ctx)
	if err != nil {
		return nil, err
	}

	data := &ExportData{
		Version:    ExportVersion,
		ExportedAt: time.Now(),
		Tool:       "tracker",
		Trackers:   make([]CatalogTracker, 0, len(trackers)),
		Resources:  resources,
		Ontologies: ontologies,
	}
	for _, t := range trackers {
		data.Trackers = append(data.Trackers, CatalogTracker{Tracker: t, Public: public[t.ID]})
	}
	return data, nil
}

func (d *DB) publicTrackers(ctx context.Context) (map[string]bool, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id FROM trackers WHERE public = 1`)
	if err != nil {
		return nil, fmt.Errorf("list public trackers: %w", err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tracker id: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

// ImportData imports data from an export file. Existing rows with the
// same ids are replaced.
func (d *DB) ImportData(ctx context.Context, data *ExportData) error {
	for _, ct := range data.Trackers {
		if err := d.CreateTracker(ctx, ct.Tracker, ct.Public); err != nil {
			return fmt.Errorf("import tracker: %w", err)
		}
		if ct.IsInstalled() {
			if err := d.RestoreInstall(ctx, ct.Tracker); err != nil {
				return fmt.Errorf("import tracker: %w", err)
			}
		}
	}

	for _, r := range data.Resources {
		if _, err := d.UpsertTrackerResource(ctx, r); err != nil {
			return fmt.Errorf("import resource: %w", err)
		}
	}

	for code, forest := range data.Ontologies {
		if err := d.PutOntology(ctx, code, forest); err != nil {
			return fmt.Errorf("import ontology: %w", err)
		}
	}

	return nil
}

// ExportJSON exports all data as JSON.
func (d *DB) ExportJSON(ctx context.Context) ([]byte, error) {
	data, err := d.GetAllData(ctx)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(data, "", "  ")
}

// ImportJSON imports data from JSON bytes.
func (d *DB) ImportJSON(ctx context.Context, data []byte) error {
	var exportData ExportData
	if err := json.Unmarshal(data, &exportData); err != nil {
		return fmt.Errorf("unmarshal JSON: %w", err)
	}
	return d.ImportData(ctx, &exportData)
}

type yamlValue struct {
	ID       string  `yaml:"id"`
	Value    float64 `yaml:"value"`
	Unit     string  `yaml:"unit"`
	Recorded string  `yaml:"recorded_at"`
	Category string  `yaml:"category,omitempty"`
}

type yamlTracker struct {
	Name     string      `yaml:"name"`
	MetricID string      `yaml:"metric_id,omitempty"`
	Unit     string      `yaml:"unit,omitempty"`
	Target   *float64    `yaml:"target,omitempty"`
	Values   []yamlValue `yaml:"values,omitempty"`
}

// ExportYAML exports installed trackers with their values in preferred
// units, grouped by tracker name.
func (d *DB) ExportYAML(ctx context.Context) ([]byte, error) {
	data, err := d.GetAllData(ctx)
	if err != nil {
		return nil, err
	}

	yamlData := struct {
		Version    string                 `yaml:"version"`
		ExportedAt string                 `yaml:"exported_at"`
		Tool       string                 `yaml:"tool"`
		Trackers   map[string]yamlTracker `yaml:"trackers"`
	}{
		Version:    data.Version,
		ExportedAt: data.ExportedAt.Format(time.RFC3339),
		Tool:       data.Tool,
		Trackers:   make(map[string]yamlTracker),
	}

	byMetric := groupByMetric(data.Resources)
	for _, ct := range data.Trackers {
		if !ct.IsInstalled() {
			continue
		}
		t := ct.Tracker
		preferred, _ := units.PreferredUnitType(t)
		yt := yamlTracker{Name: t.Name, MetricID: t.MetricID, Unit: preferred.Unit, Target: t.Target}
		for _, r := range byMetric[t.MetricID] {
			v, err := fhir.ExtractValue(r, time.Local)
			if err != nil {
				return nil, err
			}
			yv := yamlValue{
				ID:       shortID(r.ID),
				Value:    units.ToPreferred(v.Value, t),
				Unit:     preferred.Unit,
				Recorded: v.CreatedDate.Format(time.RFC3339),
			}
			if c := category(r); c != nil {
				yv.Category = c.Code
			}
			yt.Values = append(yt.Values, yv)
		}
		yamlData.Trackers[t.MetricID] = yt
	}

	return yaml.Marshal(yamlData)
}

// ExportMarkdown renders one table per installed tracker, limited to one
// tracker when metricID is set and to values recorded at or after since.
func (d *DB) ExportMarkdown(ctx context.Context, metricID string, since *time.Time) (string, error) {
	data, err := d.GetAllData(ctx)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	now := time.Now()

	sb.WriteString(fmt.Sprintf("# Tracker Export - %s\n\n", now.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format(time.RFC3339)))

	trackers := make([]models.Tracker, 0, len(data.Trackers))
	for _, ct := range data.Trackers {
		if ct.IsInstalled() && (metricID == "" || ct.MetricID == metricID) {
			trackers = append(trackers, ct.Tracker)
		}
	}
	sort.SliceStable(trackers, func(i, j int) bool {
		return trackers[i].SortOrder() < trackers[j].SortOrder()
	})

	byMetric := groupByMetric(data.Resources)
	for _, t := range trackers {
		preferred, _ := units.PreferredUnitType(t)
		sb.WriteString(fmt.Sprintf("## %s\n\n", t.Name))
		sb.WriteString("| Date | Value | Category |\n")
		sb.WriteString("|------|-------|----------|\n")
		for _, r := range byMetric[t.MetricID] {
			v, err := fhir.ExtractValue(r, time.Local)
			if err != nil {
				return "", err
			}
			if since != nil && v.CreatedDate.Before(*since) {
				continue
			}
			value := units.ToPreferred(v.Value, t)
			cat := ""
			if c := category(r); c != nil {
				cat = c.Display
				if cat == "" {
					cat = c.Code
				}
			}
			sb.WriteString(fmt.Sprintf("| %s | %g %s | %s |\n",
				v.CreatedDate.Format("2006-01-02 15:04"),
				value, units.Display(value, preferred), cat))
		}
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

func groupByMetric(resources []models.Resource) map[string][]models.Resource {
	out := map[string][]models.Resource{}
	for _, r := range resources {
		if c, ok := fhir.MetricCoding(r.Code.Coding); ok {
			out[c.Code] = append(out[c.Code], r)
		}
	}
	return out
}

// category returns the first coding outside the tracker systems.
func category(r models.Resource) *models.Code {
	for _, c := range r.Code.Coding {
		if c.System != models.TrackerCodeSystem && c.System != models.TrackerPillarCodeSystem {
			return &c
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Catalog is a YAML file of tracker definitions and ontologies.
type Catalog struct {
	Trackers   []CatalogTracker                      `yaml:"trackers"`
	Ontologies map[string][]models.CodedRelationship `yaml:"ontologies"`
}

// ParseCatalog decodes a YAML catalog. Trackers default to public.
func ParseCatalog(data []byte) (*Catalog, error) {
	var raw struct {
		Trackers []struct {
			models.Tracker `yaml:",inline"`
			Public         *bool `yaml:"public"`
		} `yaml:"trackers"`
		Ontologies map[string][]models.CodedRelationship `yaml:"ontologies"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{Ontologies: raw.Ontologies}
	for _, t := range raw.Trackers {
		public := t.Public == nil || *t.Public
		c.Trackers = append(c.Trackers, CatalogTracker{Tracker: t.Tracker, Public: public})
	}
	return c, nil
}

// ImportCatalog stores every tracker and ontology of c. Installs are not
// touched.
func (d *DB) ImportCatalog(ctx context.Context, c *Catalog) error {
	for _, ct := range c.Trackers {
		if err := d.CreateTracker(ctx, ct.Tracker, ct.Public); err != nil {
			return fmt.Errorf("import catalog: %w", err)
		}
	}
	for code, forest := range c.Ontologies {
		if err := d.PutOntology(ctx, code, forest); err != nil {
			return fmt.Errorf("import catalog: %w", err)
		}
	}
	return nil
}
