// ABOUTME: Tracker and UnitType models for trackable metric definitions.
// ABOUTME: A tracker is installed iff it carries a MetricID.
package models

import "math"

// ResourceType discriminates how a tracker's values are persisted.
type ResourceType string

const (
	ResourceObservation ResourceType = "Observation"
	ResourceProcedure   ResourceType = "Procedure"
)

// IsValid reports whether rt is a supported resource type.
func (rt ResourceType) IsValid() bool {
	return rt == ResourceObservation || rt == ResourceProcedure
}

// UnitType is one convertible unit variant of a tracker.
type UnitType struct {
	Code           string   `json:"code" yaml:"code"`
	System         string   `json:"system" yaml:"system"`
	Unit           string   `json:"unit" yaml:"unit"`
	Display        string   `json:"display" yaml:"display"`
	DisplayZero    string   `json:"displayZero,omitempty" yaml:"display_zero,omitempty"`
	DisplayOne     string   `json:"displayOne,omitempty" yaml:"display_one,omitempty"`
	DisplayTwo     string   `json:"displayTwo,omitempty" yaml:"display_two,omitempty"`
	DisplayFew     string   `json:"displayFew,omitempty" yaml:"display_few,omitempty"`
	DisplayMany    string   `json:"displayMany,omitempty" yaml:"display_many,omitempty"`
	DisplayOther   string   `json:"displayOther,omitempty" yaml:"display_other,omitempty"`
	Default        bool     `json:"default" yaml:"default"`
	Target         float64  `json:"target" yaml:"target"`
	Increment      *float64 `json:"increment,omitempty" yaml:"increment,omitempty"`
	StepAmount     *float64 `json:"stepAmount,omitempty" yaml:"step_amount,omitempty"`
	QuickAddAmount *float64 `json:"quickAddAmount,omitempty" yaml:"quick_add_amount,omitempty"`
}

// Tracker is a metric definition, either a catalog entry or an installed instance.
type Tracker struct {
	ID           string       `json:"id" yaml:"id"`
	MetricID     string       `json:"metricId,omitempty" yaml:"metric_id,omitempty"`
	Name         string       `json:"name" yaml:"name"`
	Color        string       `json:"color,omitempty" yaml:"color,omitempty"`
	Icon         string       `json:"icon,omitempty" yaml:"icon,omitempty"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	Account      string       `json:"account,omitempty" yaml:"account,omitempty"`
	LifePoints   int          `json:"lifePoints,omitempty" yaml:"life_points,omitempty"`
	ResourceType ResourceType `json:"resourceType" yaml:"resource_type"`
	System       string       `json:"system" yaml:"system"`
	Code         string       `json:"code" yaml:"code"`
	Units        []UnitType   `json:"units" yaml:"units"`

	// Installed-only settings.
	Target *float64 `json:"target,omitempty" yaml:"target,omitempty"`
	Unit   string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	Order  *int     `json:"order,omitempty" yaml:"order,omitempty"`
}

// NewTracker creates a catalog tracker in the tracker value system.
func NewTracker(id, name string, rt ResourceType, units ...UnitType) *Tracker {
	return &Tracker{
		ID:           id,
		Name:         name,
		ResourceType: rt,
		System:       TrackerCodeSystem,
		Code:         id,
		Units:        units,
	}
}

// WithSystem sets the clinical system and code of the tracker.
func (t *Tracker) WithSystem(system, code string) *Tracker {
	t.System = system
	t.Code = code
	return t
}

// WithInstall marks the tracker installed with the given settings.
func (t *Tracker) WithInstall(metricID string, s InstalledMetricSettings) *Tracker {
	t.MetricID = metricID
	t.Unit = s.Unit
	target := s.Target
	t.Target = &target
	order := s.Order
	t.Order = &order
	return t
}

// IsInstalled reports whether the tracker has been installed.
func (t Tracker) IsInstalled() bool {
	return t.MetricID != ""
}

// MetricKey returns the metric id, falling back to the tracker id.
func (t Tracker) MetricKey() string {
	if t.MetricID != "" {
		return t.MetricID
	}
	return t.ID
}

// DefaultUnit returns the default-marked unit, else the first one.
func (t Tracker) DefaultUnit() (UnitType, bool) {
	for _, u := range t.Units {
		if u.Default {
			return u, true
		}
	}
	if len(t.Units) > 0 {
		return t.Units[0], true
	}
	return UnitType{}, false
}

// SortOrder returns the install order, or +Inf for unordered trackers.
func (t Tracker) SortOrder() float64 {
	if t.Order == nil {
		return math.Inf(1)
	}
	return float64(*t.Order)
}

// Coding returns the coding that identifies values of this tracker.
func (t Tracker) Coding() Code {
	system := t.System
	if system == "" {
		system = TrackerCodeSystem
	}
	return Code{System: system, Code: t.MetricKey(), Display: t.Name}
}

// Demote strips installed-only fields. The prior metric id becomes the id
// so the tracker stays addressable by it.
func (t Tracker) Demote() Tracker {
	if t.MetricID != "" {
		t.ID = t.MetricID
	}
	t.MetricID = ""
	t.Target = nil
	t.Unit = ""
	return t
}

// Clone returns a deep copy of the tracker.
func (t Tracker) Clone() Tracker {
	c := t
	c.Units = append([]UnitType(nil), t.Units...)
	if t.Target != nil {
		v := *t.Target
		c.Target = &v
	}
	if t.Order != nil {
		v := *t.Order
		c.Order = &v
	}
	return c
}

// InstalledMetricSettings are the user-editable settings of an install.
type InstalledMetricSettings struct {
	Unit   string  `json:"unit" yaml:"unit" validate:"required"`
	Target float64 `json:"target" yaml:"target" validate:"gte=0"`
	Order  int     `json:"order" yaml:"order" validate:"gte=0"`
}

// BulkInstalledMetricSettings pairs install settings with their metric.
type BulkInstalledMetricSettings struct {
	MetricID string `json:"metricId" yaml:"metric_id" validate:"required"`
	InstalledMetricSettings
}

// BulkSettings extracts bulk settings from an installed tracker.
func BulkSettings(t Tracker) BulkInstalledMetricSettings {
	s := BulkInstalledMetricSettings{MetricID: t.MetricKey()}
	s.Unit = t.Unit
	if t.Target != nil {
		s.Target = *t.Target
	}
	if t.Order != nil {
		s.Order = *t.Order
	}
	return s
}

// ApplySettings merges bulk settings into a copy of the tracker.
func (t Tracker) ApplySettings(s BulkInstalledMetricSettings) Tracker {
	c := t.Clone()
	c.MetricID = s.MetricID
	c.Unit = s.Unit
	target := s.Target
	c.Target = &target
	order := s.Order
	c.Order = &order
	return c
}
