// ABOUTME: Recently used coded values per metric, newest first.
// ABOUTME: Lists are deduplicated by coding identity and capped at five.
package recent

import (
	"fmt"

	"github.com/harperreed/tracker/internal/models"
)

// MaxEntries caps each metric's list.
const MaxEntries = 5

// KeyPrefix namespaces the persisted lists.
const KeyPrefix = "recent-values/"

// CodedValue is a category the user logged, with the amount logged.
type CodedValue struct {
	Value float64     `json:"value" yaml:"value"`
	Code  models.Code `json:"code" yaml:"code"`
}

// Key returns the storage key of metricID's list.
func Key(metricID string) string {
	return KeyPrefix + metricID
}

// Store persists one list per metric.
type Store interface {
	Load(metricID string) ([]CodedValue, error)
	Save(metricID string, values []CodedValue) error
	Close() error
}

// Merge puts newest in front of current, keeps the first entry per coding
// and truncates to MaxEntries.
func Merge(current []CodedValue, newest ...CodedValue) []CodedValue {
	all := make([]CodedValue, 0, len(newest)+len(current))
	all = append(all, newest...)
	all = append(all, current...)

	seen := map[string]bool{}
	out := make([]CodedValue, 0, MaxEntries)
	for _, v := range all {
		key := v.Code.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
		if len(out) == MaxEntries {
			break
		}
	}
	return out
}

// Push merges values into metricID's stored list and saves it.
func Push(s Store, metricID string, values ...CodedValue) ([]CodedValue, error) {
	current, err := s.Load(metricID)
	if err != nil {
		return nil, fmt.Errorf("load recent values: %w", err)
	}
	merged := Merge(current, values...)
	if err := s.Save(metricID, merged); err != nil {
		return nil, fmt.Errorf("save recent values: %w", err)
	}
	return merged, nil
}

// Filter keeps the values whose coding is among codings.
func Filter(values []CodedValue, codings []models.Code) []CodedValue {
	var out []CodedValue
	for _, v := range values {
		for _, c := range codings {
			if c.Equal(v.Code) {
				out = append(out, v)
				break
			}
		}
	}
	return out
}
