// ABOUTME: FHIR-shaped payload persisted for tracker values.
// ABOUTME: One struct covers Observation and Procedure; unused parts stay nil.
package models

// Resource statuses written by the mapper.
const (
	StatusFinal     = "final"
	StatusCompleted = "completed"
)

// Tag is a meta tag entry.
type Tag struct {
	System string `json:"system"`
	Code   string `json:"code"`
}

// Meta carries resource tags.
type Meta struct {
	Tag []Tag `json:"tag,omitempty"`
}

// Reference points at another resource, e.g. "Patient/123".
type Reference struct {
	Reference string `json:"reference"`
}

// Quantity is an Observation value with its unit coding.
type Quantity struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit,omitempty"`
	System string  `json:"system,omitempty"`
	Code   string  `json:"code,omitempty"`
}

// Period is a Procedure's performed window as formatted timestamps.
type Period struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Resource is an Observation or Procedure payload.
type Resource struct {
	ResourceType      ResourceType    `json:"resourceType"`
	ID                string          `json:"id,omitempty"`
	Status            string          `json:"status"`
	Meta              *Meta           `json:"meta,omitempty"`
	Code              CodeableConcept `json:"code"`
	Subject           *Reference      `json:"subject,omitempty"`
	EffectiveDateTime string          `json:"effectiveDateTime,omitempty"`
	ValueQuantity     *Quantity       `json:"valueQuantity,omitempty"`
	PerformedPeriod   *Period         `json:"performedPeriod,omitempty"`
}

// Project returns the dataset tag code, if any.
func (r Resource) Project() string {
	if r.Meta == nil {
		return ""
	}
	for _, tag := range r.Meta.Tag {
		if tag.System == DatasetSystem {
			return tag.Code
		}
	}
	return ""
}

// PatientID returns the id part of a "Patient/<id>" subject reference.
func (r Resource) PatientID() string {
	const prefix = "Patient/"
	if r.Subject == nil || len(r.Subject.Reference) <= len(prefix) || r.Subject.Reference[:len(prefix)] != prefix {
		return ""
	}
	return r.Subject.Reference[len(prefix):]
}
