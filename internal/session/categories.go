// ABOUTME: Category lookups over a tracker's ontology and its recently used values.
// ABOUTME: Categories are matched by code or by display name.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/ontology"
	"github.com/harperreed/tracker/internal/recent"
	tsync "github.com/harperreed/tracker/internal/sync"
)

// ErrCategoryNotFound is returned when a category is not in a tracker's ontology.
var ErrCategoryNotFound = errors.New("category not found")

// Categories returns the codings of t's ontology, or t's own coding when
// it has none.
func (s *Session) Categories(ctx context.Context, t models.Tracker) ([]models.Code, error) {
	forest, err := s.service.FetchOntology(ctx, t.Code)
	if err != nil {
		return nil, err
	}
	return ontology.Codings(ontology.Relationships(forest, t)), nil
}

// Category resolves ref as a code or case-insensitive display of t's categories.
func (s *Session) Category(ctx context.Context, t models.Tracker, ref string) (*models.Code, error) {
	codings, err := s.Categories(ctx, t)
	if err != nil {
		return nil, err
	}
	for _, c := range codings {
		if c.Code == ref || strings.EqualFold(c.Display, ref) {
			code := c
			return &code, nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no category %q", ErrCategoryNotFound, t.Name, ref)
}

// Recent returns t's recently used values that are still in its ontology.
func (s *Session) Recent(ctx context.Context, t models.Tracker) ([]recent.CodedValue, error) {
	if s.recents == nil {
		return nil, nil
	}
	codings, err := s.Categories(ctx, t)
	if err != nil {
		return nil, err
	}
	return s.recents.Load(t.MetricKey(), codings)
}

func matchesNode(n ontology.Node, ref string) bool {
	return n.Code.Code == ref || strings.EqualFold(n.Display, ref)
}

// selectCategory points e's selection at ref, leaving it alone when ref is
// already selected.
func selectCategory(e *tsync.Editor, ref string) error {
	result := e.Categories()
	sel := e.Selection()

	for _, n := range result.SubCategories {
		if matchesNode(n, ref) {
			if sel.SubCategory == nil || !sel.SubCategory.Code.Equal(n.Code) {
				sel.ToggleSubCategory(n)
			}
			return nil
		}
	}
	for _, n := range result.Categories {
		if matchesNode(n, ref) {
			if sel.Category == nil || sel.SubCategory != nil || !sel.Category.Code.Equal(n.Code) {
				node := n
				sel.ToggleCategory(&node)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrCategoryNotFound, ref)
}
