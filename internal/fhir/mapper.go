// ABOUTME: Builds Observation and Procedure payloads from tracker edits.
// ABOUTME: Builders are pure; the 24 hour duration limit is checked separately.
package fhir

import (
	"errors"
	"fmt"
	"time"

	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/units"
)

// TimeLayout is the timestamp format written into resources.
const TimeLayout = "2006-01-02T15:04:05.000-07:00"

// OneDay is the exclusive upper bound of a Procedure duration, in seconds.
const OneDay = 24 * 60 * 60

// ErrDurationLimit is returned for Procedures lasting a day or more.
var ErrDurationLimit error = models.NewUserError("Duration cannot be greater than or equal to 24 hours.")

// Settings describe one value to persist.
type Settings struct {
	Tracker    models.Tracker
	Value      float64 // in the tracker's preferred unit
	CreateDate time.Time
	ID         string
	Project    string
	PatientID  string
}

// CheckDuration rejects Procedure durations of 24 hours or longer.
func CheckDuration(seconds float64) error {
	if seconds >= OneDay {
		return fmt.Errorf("check duration %.0fs: %w", seconds, ErrDurationLimit)
	}
	return nil
}

// CheckSettings applies CheckDuration when s describes a Procedure.
func CheckSettings(s Settings) error {
	if s.Tracker.ResourceType != models.ResourceProcedure {
		return nil
	}
	return CheckDuration(units.ToStored(s.Value, s.Tracker))
}

// IsDurationLimit reports whether err came from the duration limit.
func IsDurationLimit(err error) bool {
	return errors.Is(err, ErrDurationLimit)
}

// ToResource dispatches on the resource type.
func ToResource(rt models.ResourceType, s Settings, code *models.Code) models.Resource {
	if rt == models.ResourceProcedure {
		return ToProcedure(s, code)
	}
	return ToObservation(s, code)
}

// ToObservation builds an Observation holding the stored-unit value.
func ToObservation(s Settings, code *models.Code) models.Resource {
	r := base(models.ResourceObservation, s, code)
	stored, _ := units.StoredUnitType(s.Tracker)
	r.Status = models.StatusFinal
	r.EffectiveDateTime = s.CreateDate.Format(TimeLayout)
	r.ValueQuantity = &models.Quantity{
		Value:  units.ToStored(s.Value, s.Tracker),
		Unit:   stored.Unit,
		System: stored.System,
		Code:   stored.Code,
	}
	return r
}

// ToProcedure builds a Procedure whose period starts at the create date's
// start of day and lasts the stored number of seconds.
func ToProcedure(s Settings, code *models.Code) models.Resource {
	r := base(models.ResourceProcedure, s, code)
	start := models.StartOfDay(s.CreateDate)
	seconds := units.ToStored(s.Value, s.Tracker)
	end := start.Add(time.Duration(seconds * float64(time.Second)))
	r.Status = models.StatusCompleted
	r.PerformedPeriod = &models.Period{
		Start: start.Format(TimeLayout),
		End:   end.Format(TimeLayout),
	}
	return r
}

func base(rt models.ResourceType, s Settings, code *models.Code) models.Resource {
	system := s.Tracker.System
	if system == "" {
		system = models.TrackerCodeSystem
	}

	var coding []models.Code
	if code != nil {
		coding = append(coding, *code)
	}
	coding = append(coding, models.Code{
		System:  system,
		Code:    s.Tracker.MetricKey(),
		Display: s.Tracker.Name,
	})

	r := models.Resource{
		ResourceType: rt,
		ID:           s.ID,
		Meta: &models.Meta{Tag: []models.Tag{{
			System: models.DatasetSystem,
			Code:   s.Project,
		}}},
		Code: models.CodeableConcept{Coding: coding},
	}
	if s.PatientID != "" {
		r.Subject = &models.Reference{Reference: "Patient/" + s.PatientID}
	}
	return r
}
