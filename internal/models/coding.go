// ABOUTME: Clinical coding types shared by trackers, values and ontologies.
// ABOUTME: Codes compare by (system, code); display and ids are ignored.
package models

// Well-known coding systems used by tracker resources.
const (
	TrackerCodeSystem       = "http://lifeomic.com/fhir/track-tile-value"
	TrackerCode             = "f0ff8f26-eb4d-4322-9683-390c90aab83d"
	TrackerPillarCodeSystem = "http://lifeomic.com/fhir/track-tile-pillar-value"
	TrackerPillarCode       = "b7d1b3f4-89cd-4c11-9f00-024a9a7bd235"
	DatasetSystem           = "http://lifeomic.com/fhir/dataset"
	UCUMSystem              = "http://unitsofmeasure.org"
)

// EducationContent is optional material attached to an ontology code.
type EducationContent struct {
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
	URL         string `json:"url,omitempty" yaml:"url,omitempty"`
}

// Code is a clinical coding triple.
type Code struct {
	System           string            `json:"system" yaml:"system"`
	Code             string            `json:"code" yaml:"code"`
	Display          string            `json:"display,omitempty" yaml:"display,omitempty"`
	ID               string            `json:"id,omitempty" yaml:"id,omitempty"`
	EducationContent *EducationContent `json:"educationContent,omitempty" yaml:"education_content,omitempty"`
}

// Equal reports whether two codes share system and code.
func (c Code) Equal(o Code) bool {
	return c.System == o.System && c.Code == o.Code
}

// Key returns the "system|code" identity of the code.
func (c Code) Key() string {
	return c.System + "|" + c.Code
}

// CodesEqual compares two optional codes. Two missing codes are equal.
func CodesEqual(a, b *Code) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// CodeableConcept is the coding array attached to a resource.
type CodeableConcept struct {
	Coding []Code `json:"coding" yaml:"coding"`
}

// First returns the first coding, if any.
func (c CodeableConcept) First() *Code {
	if len(c.Coding) == 0 {
		return nil
	}
	first := c.Coding[0]
	return &first
}

// Contains reports whether any coding equals code.
func (c CodeableConcept) Contains(code Code) bool {
	for _, coding := range c.Coding {
		if coding.Equal(code) {
			return true
		}
	}
	return false
}

// CodedRelationship is a node of an ontology tree.
type CodedRelationship struct {
	Code          `yaml:",inline"`
	SpecializedBy []CodedRelationship `json:"specializedBy,omitempty" yaml:"specialized_by,omitempty"`
}
