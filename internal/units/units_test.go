// ABOUTME: Tests for unit conversion, localized number parsing and labels.
// ABOUTME: Conversion cases mirror the s/min/h table and its fallbacks.
package units

import (
	"testing"

	"github.com/harperreed/tracker/internal/models"
)

func sleepTracker() models.Tracker {
	return models.Tracker{
		ResourceType: models.ResourceProcedure,
		Unit:         "min",
		Units: []models.UnitType{
			{Code: "min", Unit: "min", Display: "min", System: "system", Default: true, Target: 60},
			{Code: "h", Unit: "hour", Display: "hrs", System: "system", Target: 1},
		},
	}
}

func TestPreferredUnitType(t *testing.T) {
	tr := sleepTracker()
	if u, _ := PreferredUnitType(tr); u.Code != "min" {
		t.Errorf("preferred = %s, want min", u.Code)
	}

	tr.Unit = "hour"
	if u, _ := PreferredUnitType(tr); u.Code != "h" {
		t.Errorf("preferred = %s, want h", u.Code)
	}

	tr.Unit = "unknown-unit"
	if u, _ := PreferredUnitType(tr); u.Code != "min" {
		t.Errorf("preferred = %s, want default min", u.Code)
	}
}

func TestStoredUnitType(t *testing.T) {
	tr := sleepTracker()
	if u, _ := StoredUnitType(tr); u.Code != "s" {
		t.Errorf("procedure stored = %s, want s", u.Code)
	}

	tr.ResourceType = models.ResourceObservation
	if u, _ := StoredUnitType(tr); u.Code != "min" {
		t.Errorf("observation stored = %s, want min", u.Code)
	}

	tr.Units[0].Default = false
	tr.Units = []models.UnitType{tr.Units[1], tr.Units[0]}
	if u, _ := StoredUnitType(tr); u.Code != "h" {
		t.Errorf("observation stored = %s, want first unit h", u.Code)
	}
}

func TestConversions(t *testing.T) {
	tests := []struct {
		name      string
		unit      string
		stored    float64
		preferred float64
	}{
		{"seconds to minutes", "min", 3600, 60},
		{"seconds to hours", "hour", 7200, 2},
		{"rounds half up", "min", 90, 2},
		{"rounds down", "min", 89, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := sleepTracker()
			tr.Unit = tt.unit
			if got := ToPreferred(tt.stored, tr); got != tt.preferred {
				t.Errorf("ToPreferred(%v) = %v, want %v", tt.stored, got, tt.preferred)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	tr := sleepTracker()
	for _, unit := range []string{"min", "hour"} {
		tr.Unit = unit
		for _, v := range []float64{0, 1, 7, 42, 1440} {
			if got := ToPreferred(ToStored(v, tr), tr); got != v {
				t.Errorf("%s: round trip of %v = %v", unit, v, got)
			}
		}
	}
}

func TestUnknownPairPassesThrough(t *testing.T) {
	tr := models.Tracker{
		ResourceType: models.ResourceObservation,
		Unit:         "c2",
		Units: []models.UnitType{
			{Code: "c1", Unit: "c1", Default: true},
			{Code: "c2", Unit: "c2"},
		},
	}
	if got := ToPreferred(5, tr); got != 5 {
		t.Errorf("ToPreferred = %v, want 5", got)
	}
	if got := ToStored(5, tr); got != 5 {
		t.Errorf("ToStored = %v, want 5", got)
	}
}

func TestToISONumber(t *testing.T) {
	tests := []struct {
		lang string
		in   string
		want string
	}{
		{"en", "1,234.5", "1234.5"},
		{"en-US", "12", "12"},
		{"es", "1.234,5", "1234.5"},
		{"de", "1 234,5", "1234.5"},
		{"pt-BR", "3,25", "3.25"},
		{"tr", "10,0", "10.0"},
		{"ar", "١٬٢٣٤٫٥", "1234.5"},
		{"ja", "1,000", "1000"},
	}

	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			if got := ToISONumber(tt.in, tt.lang); got != tt.want {
				t.Errorf("ToISONumber(%q, %s) = %q, want %q", tt.in, tt.lang, got, tt.want)
			}
		})
	}
}

func TestCoerceNonNegative(t *testing.T) {
	if got := CoerceNonNegative("8", "en", 3); got != 8 {
		t.Errorf("got %v, want 8", got)
	}
	if got := CoerceNonNegative("-1", "en", 3); got != 3 {
		t.Errorf("negative: got %v, want fallback 3", got)
	}
	if got := CoerceNonNegative("abc", "en", 3); got != 3 {
		t.Errorf("garbage: got %v, want fallback 3", got)
	}
	if got := CoerceNonNegative("2,5", "fr", 0); got != 2.5 {
		t.Errorf("fr: got %v, want 2.5", got)
	}
}

func TestDisplay(t *testing.T) {
	cup := models.UnitType{Unit: "cup", Display: "cups"}
	if got := Display(1, cup); got != "Cup" {
		t.Errorf("Display(1) = %q, want Cup", got)
	}
	if got := Display(3, cup); got != "Cups" {
		t.Errorf("Display(3) = %q, want Cups", got)
	}

	glass := models.UnitType{Unit: "glass", Display: "glasses", DisplayOne: "{{count}} glass", DisplayOther: "{{count}}  glasses of water"}
	if got := Display(1, glass); got != "glass" {
		t.Errorf("Display(1) = %q, want glass", got)
	}
	if got := Display(0, glass); got != "glasses of water" {
		t.Errorf("Display(0) = %q, want glasses of water", got)
	}
}
