// ABOUTME: Conversion between a tracker's stored and preferred units.
// ABOUTME: Procedures always store seconds; observations store the default unit.
package units

import (
	"math"

	"github.com/harperreed/tracker/internal/models"
)

// Seconds is the unit every Procedure value is stored in.
var Seconds = models.UnitType{
	Code:    "s",
	Unit:    "s",
	Display: "seconds",
	System:  models.UCUMSystem,
	Default: true,
	Target:  0,
}

type converter func(float64) float64

// converters[from][to]. Downward conversions round to whole units.
var converters = map[string]map[string]converter{
	"s": {
		"min": func(v float64) float64 { return round(v / 60) },
		"h":   func(v float64) float64 { return round(v / 3600) },
	},
	"min": {
		"s": func(v float64) float64 { return v * 60 },
		"h": func(v float64) float64 { return round(v / 60) },
	},
	"h": {
		"s":   func(v float64) float64 { return v * 3600 },
		"min": func(v float64) float64 { return v * 60 },
	},
}

// round rounds half toward positive infinity.
func round(v float64) float64 {
	return math.Floor(v + 0.5)
}

// PreferredUnitType returns the unit the user sees values in: the one
// matching the tracker's selected unit, else the default, else the first.
func PreferredUnitType(t models.Tracker) (models.UnitType, bool) {
	for _, u := range t.Units {
		if t.Unit != "" && u.Unit == t.Unit {
			return u, true
		}
	}
	return t.DefaultUnit()
}

// StoredUnitType returns the unit values are persisted in.
func StoredUnitType(t models.Tracker) (models.UnitType, bool) {
	if t.ResourceType == models.ResourceProcedure {
		return Seconds, true
	}
	return t.DefaultUnit()
}

func convert(v float64, from, to string) float64 {
	if c, ok := converters[from][to]; ok {
		return c(v)
	}
	return v
}

// ToPreferred converts a stored value into the tracker's preferred unit.
func ToPreferred(v float64, t models.Tracker) float64 {
	stored, _ := StoredUnitType(t)
	preferred, _ := PreferredUnitType(t)
	return convert(v, stored.Code, preferred.Code)
}

// ToStored converts a preferred-unit value into the stored unit.
func ToStored(v float64, t models.Tracker) float64 {
	stored, _ := StoredUnitType(t)
	preferred, _ := PreferredUnitType(t)
	return convert(v, preferred.Code, stored.Code)
}
