// ABOUTME: Tracker value records and the date-bucketed containers holding them.
// ABOUTME: Day keys are start-of-day instants rendered in the HTTP date form.
package models

import (
	"time"
)

// DayKeyLayout renders a day bucket key, e.g. "Fri, 23 Jul 2021 05:00:00 GMT".
const DayKeyLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// TrackerValue is one persisted record, with Value in stored units.
type TrackerValue struct {
	ID          string          `json:"id" yaml:"id"`
	CreatedDate time.Time       `json:"createdDate" yaml:"created_date"`
	Value       float64         `json:"value" yaml:"value"`
	Code        CodeableConcept `json:"code" yaml:"code"`
}

// NewTrackerValue creates a value record coded with the given codings.
func NewTrackerValue(id string, value float64, createdDate time.Time, coding ...Code) TrackerValue {
	return TrackerValue{
		ID:          id,
		CreatedDate: createdDate,
		Value:       value,
		Code:        CodeableConcept{Coding: coding},
	}
}

// SumValues totals the stored values of records.
func SumValues(values []TrackerValue) float64 {
	var total float64
	for _, v := range values {
		total += v.Value
	}
	return total
}

// TrackerValues maps day key to metric id to that day's records.
type TrackerValues map[string]map[string][]TrackerValue

// Clone returns a copy whose maps and slices are independent of tv.
func (tv TrackerValues) Clone() TrackerValues {
	out := make(TrackerValues, len(tv))
	for day, metrics := range tv {
		m := make(map[string][]TrackerValue, len(metrics))
		for id, values := range metrics {
			m[id] = append([]TrackerValue(nil), values...)
		}
		out[day] = m
	}
	return out
}

// ValuesContext partitions cached values by query scope.
type ValuesContext struct {
	System    string `json:"system" yaml:"system"`
	CodeBelow string `json:"codeBelow" yaml:"code_below"`
}

// DefaultValuesContext is the context of ordinary tracker values.
var DefaultValuesContext = ValuesContext{System: TrackerCodeSystem, CodeBelow: TrackerCode}

// PillarValuesContext is the context of pillar tracker values.
var PillarValuesContext = ValuesContext{System: TrackerPillarCodeSystem, CodeBelow: TrackerPillarCode}

// Key returns the cache key of the context.
func (vc ValuesContext) Key() string {
	return vc.System + "|" + vc.CodeBelow
}

// ContextTrackerValues maps a context key to its bucketed values.
type ContextTrackerValues map[string]TrackerValues

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last millisecond of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}

// DayKey returns the bucket key of the day containing t.
func DayKey(t time.Time) string {
	return StartOfDay(t).UTC().Format(DayKeyLayout)
}

// ParseDayKey converts a day key back to the start of day in loc.
func ParseDayKey(key string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(DayKeyLayout, key)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

// Interval is a closed time range.
type Interval struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// DayInterval spans the whole calendar day containing t.
func DayInterval(t time.Time) Interval {
	return Interval{Start: StartOfDay(t), End: EndOfDay(t)}
}

// Days returns the start of each calendar day in the interval, inclusive.
func (i Interval) Days() []time.Time {
	if i.End.Before(i.Start) {
		return nil
	}
	var days []time.Time
	last := StartOfDay(i.End)
	for d := StartOfDay(i.Start); !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Contains reports whether t lies within the interval.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && !t.After(i.End)
}
