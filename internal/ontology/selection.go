// ABOUTME: Editor selection state over extracted categories.
// ABOUTME: Also prepares ontology forests for quick-add and recent filtering.
package ontology

import "github.com/harperreed/tracker/internal/models"

// Selection is the category and sub-category chosen in an editor.
type Selection struct {
	Category    *Node
	SubCategory *Node
}

// SelectionFrom seeds a selection from an extraction result.
func SelectionFrom(r Result) Selection {
	return Selection{Category: r.SelectedCategory, SubCategory: r.SelectedSubCategory}
}

func nodeCode(n *Node) *models.Code {
	if n == nil {
		return nil
	}
	return &n.Code
}

// ToggleCategory clears the sub-category, then deselects code when it is
// already the sole selection and selects it otherwise.
func (s *Selection) ToggleCategory(code *Node) {
	hadSub := s.SubCategory != nil
	s.SubCategory = nil
	if models.CodesEqual(nodeCode(s.Category), nodeCode(code)) && !hadSub {
		s.Category = nil
		return
	}
	s.Category = code
}

// ToggleSubCategory selects code's parent as the category and toggles code.
func (s *Selection) ToggleSubCategory(code Node) {
	if code.Parent != nil {
		s.Category = &Node{Code: *code.Parent}
	} else {
		s.Category = nil
	}
	if models.CodesEqual(nodeCode(s.SubCategory), &code.Code) {
		s.SubCategory = nil
		return
	}
	c := code
	s.SubCategory = &c
}

// Code returns the most specific selected code, else fallback.
func (s Selection) Code(fallback *models.Code) *models.Code {
	if s.SubCategory != nil {
		return nodeCode(s.SubCategory)
	}
	if s.Category != nil {
		return nodeCode(s.Category)
	}
	return fallback
}

// Relationships strips the grouping level from forest. An empty result
// falls back to a single node for the tracker itself.
func Relationships(forest []models.CodedRelationship, tracker models.Tracker) []models.CodedRelationship {
	rels := stripGroups(forest)
	if len(rels) > 0 {
		return rels
	}
	return []models.CodedRelationship{{
		Code: models.Code{
			System:  tracker.System,
			Code:    tracker.Code,
			Display: tracker.Name,
			ID:      tracker.ID,
		},
	}}
}

// Codings flattens the first three levels of relationships.
func Codings(relationships []models.CodedRelationship) []models.Code {
	var out []models.Code
	for _, r1 := range relationships {
		out = append(out, r1.Code)
		for _, r2 := range r1.SpecializedBy {
			out = append(out, r2.Code)
			for _, r3 := range r2.SpecializedBy {
				out = append(out, r3.Code)
			}
		}
	}
	return out
}

// ContainsCode reports whether codings holds code.
func ContainsCode(codings []models.Code, code models.Code) bool {
	for _, c := range codings {
		if c.Equal(code) {
			return true
		}
	}
	return false
}
