// ABOUTME: Flattens an ontology forest into category and sub-category choices.
// ABOUTME: Nodes live in an arena; parents are index links, never pointers.
package ontology

import (
	"sort"

	"github.com/harperreed/tracker/internal/models"
)

// Node is a selectable ontology entry with its parent's code attached.
type Node struct {
	models.Code
	Parent        *models.Code               `json:"parent,omitempty"`
	SpecializedBy []models.CodedRelationship `json:"specializedBy,omitempty"`
}

// Result is the category view of a value's coding. Nil slices mean the
// ontology has no such level; empty slices mean the level was filtered out.
type Result struct {
	BaseCode            Node   `json:"baseCode"`
	Categories          []Node `json:"categories"`
	SubCategories       []Node `json:"subCategories"`
	SelectedCategory    *Node  `json:"selectedCategory,omitempty"`
	SelectedSubCategory *Node  `json:"selectedSubCategory,omitempty"`
}

type arenaNode struct {
	code     models.Code
	children []models.CodedRelationship
	parent   int
}

type arena struct {
	nodes []arenaNode
}

func (a *arena) add(code models.Code, children []models.CodedRelationship, parent int) int {
	a.nodes = append(a.nodes, arenaNode{code: code, children: children, parent: parent})
	return len(a.nodes) - 1
}

// unpack appends each tree node to the level slice for its depth.
func (a *arena) unpack(children []models.CodedRelationship, parent int, levels [][]int, depth int) [][]int {
	for _, child := range children {
		if len(levels) <= depth {
			levels = append(levels, nil)
		}
		idx := a.add(child.Code, child.SpecializedBy, parent)
		levels[depth] = append(levels[depth], idx)
		levels = a.unpack(child.SpecializedBy, idx, levels, depth+1)
	}
	return levels
}

func (a *arena) parentCode(idx int) *models.Code {
	p := a.nodes[idx].parent
	if p < 0 {
		return nil
	}
	code := a.nodes[p].code
	return &code
}

func (a *arena) node(idx int) Node {
	n := a.nodes[idx]
	return Node{Code: n.code, Parent: a.parentCode(idx), SpecializedBy: n.children}
}

// hasAncestor reports whether idx or any of its ancestors has code.
func (a *arena) hasAncestor(idx int, code *models.Code) bool {
	for ; idx >= 0; idx = a.nodes[idx].parent {
		c := a.nodes[idx].code
		if models.CodesEqual(&c, code) {
			return true
		}
	}
	return false
}

// stripGroups drops the top grouping level; groups are never selectable.
func stripGroups(forest []models.CodedRelationship) []models.CodedRelationship {
	var out []models.CodedRelationship
	for _, group := range forest {
		out = append(out, group.SpecializedBy...)
	}
	return out
}

// Extract derives the selectable categories for value from forest.
// tracker is the tracker's own coding, used when nothing else matches.
func Extract(value models.CodeableConcept, forest []models.CodedRelationship, tracker models.Code) Result {
	coding := value.Coding

	def := tracker
	found := false
	for i := len(coding) - 1; i >= 0; i-- {
		if coding[i].Equal(tracker) {
			def, found = coding[i], true
			break
		}
	}
	if !found && len(coding) > 0 {
		def = coding[len(coding)-1]
	}

	withoutGroups := stripGroups(forest)

	a := &arena{}
	root := a.add(def, withoutGroups, -1)
	levels := a.unpack(withoutGroups, root, nil, 0)
	for i, j := 0, len(levels)-1; i < j; i, j = i+1, j-1 {
		levels[i], levels[j] = levels[j], levels[i]
	}

	selected := -1
search:
	for _, level := range levels {
		for _, idx := range level {
			if value.Contains(a.nodes[idx].code) {
				selected = idx
				break search
			}
		}
	}

	var leafs, subs []int
	if len(levels) > 0 {
		leafs = levels[0]
	}
	if len(levels) > 1 {
		subs = levels[1]
	}

	leaf := selected
	for leaf >= 0 && len(a.nodes[leaf].children) > 0 {
		first := a.nodes[leaf].children[0]
		leaf = a.add(first.Code, first.SpecializedBy, leaf)
	}

	var categories []int
	switch {
	case subs == nil:
	case selected >= 0:
		categories = make([]int, 0, len(subs))
		for _, s := range subs {
			if a.hasAncestor(leaf, a.parentCode(s)) {
				categories = append(categories, s)
			}
		}
	default:
		categories = subs
	}

	var subCategories []int
	if leafs != nil {
		subCategories = make([]int, 0, len(leafs))
		for _, l := range leafs {
			if categories == nil || containsCode(a, categories, a.parentCode(l)) {
				subCategories = append(subCategories, l)
			}
		}
	}

	res := Result{BaseCode: a.node(root)}
	if len(categories) > 0 {
		if p := a.nodes[categories[0]].parent; p >= 0 {
			res.BaseCode = a.node(p)
		}
	}

	var selectedCode, selectedParent *models.Code
	if selected >= 0 {
		c := a.nodes[selected].code
		selectedCode = &c
		selectedParent = a.parentCode(selected)
	}

	res.Categories = toNodes(a, categories)
	res.SubCategories = toNodes(a, subCategories)
	for _, idx := range categories {
		c := a.nodes[idx].code
		if models.CodesEqual(selectedCode, &c) || models.CodesEqual(selectedParent, &c) {
			n := a.node(idx)
			res.SelectedCategory = &n
			break
		}
	}
	for _, idx := range subCategories {
		c := a.nodes[idx].code
		if models.CodesEqual(selectedCode, &c) {
			n := a.node(idx)
			res.SelectedSubCategory = &n
			break
		}
	}
	return res
}

func containsCode(a *arena, idxs []int, code *models.Code) bool {
	for _, idx := range idxs {
		c := a.nodes[idx].code
		if models.CodesEqual(code, &c) {
			return true
		}
	}
	return false
}

func toNodes(a *arena, idxs []int) []Node {
	if idxs == nil {
		return nil
	}
	out := make([]Node, len(idxs))
	for i, idx := range idxs {
		out[i] = a.node(idx)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Display < out[j].Display
	})
	return out
}
