// ABOUTME: Reads tracker values back out of persisted resources.
// ABOUTME: Groups resources by local day key and metric coding.
package fhir

import (
	"fmt"
	"math"
	"time"

	"github.com/harperreed/tracker/internal/models"
)

// ParseTime accepts the mapper layout and RFC 3339.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// MetricCoding returns the first coding in the tracker or pillar system.
func MetricCoding(coding []models.Code) (models.Code, bool) {
	for _, c := range coding {
		if c.System == models.TrackerCodeSystem || c.System == models.TrackerPillarCodeSystem {
			return c, true
		}
	}
	return models.Code{}, false
}

// PeriodSeconds returns the whole seconds between a period's bounds.
func PeriodSeconds(p models.Period) (float64, error) {
	start, err := ParseTime(p.Start)
	if err != nil {
		return 0, err
	}
	end, err := ParseTime(p.End)
	if err != nil {
		return 0, err
	}
	return math.Abs(math.Trunc(end.Sub(start).Seconds())), nil
}

// ExtractValue converts a resource into a tracker value with its created
// date in loc. Observations date by effective time, Procedures by period end.
func ExtractValue(r models.Resource, loc *time.Location) (models.TrackerValue, error) {
	v := models.TrackerValue{ID: r.ID, Code: r.Code}

	switch r.ResourceType {
	case models.ResourceProcedure:
		if r.PerformedPeriod == nil {
			return v, fmt.Errorf("extract procedure %s: missing performed period", r.ID)
		}
		end, err := ParseTime(r.PerformedPeriod.End)
		if err != nil {
			return v, fmt.Errorf("extract procedure %s: %w", r.ID, err)
		}
		seconds, err := PeriodSeconds(*r.PerformedPeriod)
		if err != nil {
			return v, fmt.Errorf("extract procedure %s: %w", r.ID, err)
		}
		v.CreatedDate = end.In(loc)
		v.Value = seconds
	default:
		at, err := ParseTime(r.EffectiveDateTime)
		if err != nil {
			return v, fmt.Errorf("extract observation %s: %w", r.ID, err)
		}
		v.CreatedDate = at.In(loc)
		if r.ValueQuantity != nil {
			v.Value = r.ValueQuantity.Value
		}
	}
	return v, nil
}

// GroupValues buckets resources by day key and metric id. A resource
// without a tracker coding still marks its day as fetched.
func GroupValues(resources []models.Resource, loc *time.Location) (models.TrackerValues, error) {
	out := models.TrackerValues{}
	for _, r := range resources {
		v, err := ExtractValue(r, loc)
		if err != nil {
			return nil, err
		}
		key := models.DayKey(v.CreatedDate)
		if out[key] == nil {
			out[key] = map[string][]models.TrackerValue{}
		}
		coding, ok := MetricCoding(r.Code.Coding)
		if !ok {
			continue
		}
		out[key][coding.Code] = append(out[key][coding.Code], v)
	}
	return out, nil
}
