// ABOUTME: MCP tool implementations for trackers and their daily values.
// ABOUTME: Every write goes through the session so caches, views and recents stay in step.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/recent"
	"github.com/harperreed/tracker/internal/session"
	"github.com/harperreed/tracker/internal/units"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerTools() {
	// list_trackers
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_trackers",
		Description: "List trackers with their install state, unit and daily target",
	}, s.handleListTrackers)

	// install_tracker
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "install_tracker",
		Description: "Install a tracker or change its unit and daily target",
	}, s.handleInstallTracker)

	// uninstall_tracker
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "uninstall_tracker",
		Description: "Uninstall a tracker; its recorded values are kept",
	}, s.handleUninstallTracker)

	// reorder_trackers
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "reorder_trackers",
		Description: "Move installed trackers to the front of the list in the given order",
	}, s.handleReorderTrackers)

	// get_day
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_day",
		Description: "Get a tracker's values and total for one day",
	}, s.handleGetDay)

	// set_total
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "set_total",
		Description: "Set a tracker's total for a day, adjusting the stored records",
	}, s.handleSetTotal)

	// add_to_total
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "add_to_total",
		Description: "Add to (or subtract from) a tracker's total for a day",
	}, s.handleAddToTotal)

	// quick_add
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "quick_add",
		Description: "Record one new value, optionally in a category",
	}, s.handleQuickAdd)

	// edit_value
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "edit_value",
		Description: "Change the amount or category of a recorded value",
	}, s.handleEditValue)

	// delete_value
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_value",
		Description: "Delete a recorded value by ID or ID prefix",
	}, s.handleDeleteValue)

	// list_categories
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_categories",
		Description: "List the categories a tracker's values can have",
	}, s.handleListCategories)

	// recent_values
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "recent_values",
		Description: "List a tracker's recently used categories and amounts",
	}, s.handleRecentValues)
}

// Tool input/output types

type trackerInput struct {
	Tracker string `json:"tracker" jsonschema:"Tracker ID, metric ID or name"`
}

type listTrackersInput struct {
	InstalledOnly bool `json:"installed_only,omitempty" jsonschema:"Only list installed trackers"`
}

type trackerOutput struct {
	ID        string   `json:"id"`
	MetricID  string   `json:"metric_id,omitempty"`
	Name      string   `json:"name"`
	Installed bool     `json:"installed"`
	Pillar    bool     `json:"pillar,omitempty"`
	Unit      string   `json:"unit"`
	Target    float64  `json:"target"`
	Units     []string `json:"units"`
}

type listTrackersOutput struct {
	Trackers []trackerOutput `json:"trackers"`
}

type installTrackerInput struct {
	Tracker string   `json:"tracker" jsonschema:"Tracker ID, metric ID or name"`
	Unit    string   `json:"unit,omitempty" jsonschema:"Unit to record in, one of the tracker's units"`
	Target  *float64 `json:"target,omitempty" jsonschema:"Daily target in the chosen unit"`
}

type installTrackerOutput struct {
	Tracker trackerOutput `json:"tracker"`
	Changed bool          `json:"changed"`
	Message string        `json:"message"`
}

type reorderInput struct {
	Trackers []string `json:"trackers" jsonschema:"Trackers to put first, in order"`
}

type dayInput struct {
	Tracker string `json:"tracker" jsonschema:"Tracker ID, metric ID or name"`
	Day     string `json:"day,omitempty" jsonschema:"Day as YYYY-MM-DD, today or yesterday; defaults to today"`
}

type valueOutput struct {
	ID         string  `json:"id"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	Category   string  `json:"category,omitempty"`
	RecordedAt string  `json:"recorded_at"`
}

type dayOutput struct {
	Tracker string        `json:"tracker"`
	Day     string        `json:"day"`
	Total   float64       `json:"total"`
	Target  float64       `json:"target"`
	Unit    string        `json:"unit"`
	Values  []valueOutput `json:"values"`
}

type totalInput struct {
	Tracker string  `json:"tracker" jsonschema:"Tracker ID, metric ID or name"`
	Value   float64 `json:"value" jsonschema:"Amount in the tracker's unit"`
	Day     string  `json:"day,omitempty" jsonschema:"Day as YYYY-MM-DD, today or yesterday; defaults to today"`
}

type totalOutput struct {
	Tracker string  `json:"tracker"`
	Day     string  `json:"day"`
	Total   float64 `json:"total"`
	Unit    string  `json:"unit"`
	Message string  `json:"message"`
}

type quickAddInput struct {
	Tracker  string   `json:"tracker" jsonschema:"Tracker ID, metric ID or name"`
	Category string   `json:"category,omitempty" jsonschema:"Category code or name from list_categories"`
	Amount   *float64 `json:"amount,omitempty" jsonschema:"Positive amount in the tracker's unit; defaults to the quick add amount"`
	Day      string   `json:"day,omitempty" jsonschema:"Day as YYYY-MM-DD, today or yesterday; defaults to today"`
}

type editValueInput struct {
	Tracker  string   `json:"tracker" jsonschema:"Tracker ID, metric ID or name"`
	ID       string   `json:"id" jsonschema:"Value ID or prefix"`
	Day      string   `json:"day,omitempty" jsonschema:"Day of the value as YYYY-MM-DD; defaults to today"`
	Value    *float64 `json:"value,omitempty" jsonschema:"New amount in the tracker's unit; zero deletes the value"`
	Category string   `json:"category,omitempty" jsonschema:"New category code or name"`
}

type editValueOutput struct {
	Outcome string       `json:"outcome"`
	Value   *valueOutput `json:"value,omitempty"`
	Message string       `json:"message"`
}

type deleteValueInput struct {
	Tracker string `json:"tracker" jsonschema:"Tracker ID, metric ID or name"`
	ID      string `json:"id" jsonschema:"Value ID or prefix"`
	Day     string `json:"day,omitempty" jsonschema:"Day of the value as YYYY-MM-DD; defaults to today"`
}

type simpleOutput struct {
	Message string `json:"message"`
}

type categoryOutput struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display,omitempty"`
}

type categoriesOutput struct {
	Tracker    string           `json:"tracker"`
	Categories []categoryOutput `json:"categories"`
}

type recentOutput struct {
	Category categoryOutput `json:"category"`
	Value    float64        `json:"value"`
}

type recentValuesOutput struct {
	Tracker string         `json:"tracker"`
	Values  []recentOutput `json:"values"`
}

func toTrackerOutput(t models.Tracker) trackerOutput {
	unit, _ := units.PreferredUnitType(t)
	target := unit.Target
	if t.Target != nil {
		target = *t.Target
	}
	out := trackerOutput{
		ID:        t.ID,
		MetricID:  t.MetricID,
		Name:      t.Name,
		Installed: t.IsInstalled(),
		Pillar:    t.System == models.TrackerPillarCodeSystem,
		Unit:      unit.Unit,
		Target:    target,
		Units:     []string{},
	}
	for _, u := range t.Units {
		out.Units = append(out.Units, u.Unit)
	}
	return out
}

// category returns the display of v's category coding, if it has one.
func category(v models.TrackerValue, t models.Tracker) string {
	first := v.Code.First()
	if first == nil || first.Equal(t.Coding()) {
		return ""
	}
	if first.Display != "" {
		return first.Display
	}
	return first.Code
}

func toValueOutput(v models.TrackerValue, t models.Tracker, loc *time.Location) valueOutput {
	unit, _ := units.PreferredUnitType(t)
	return valueOutput{
		ID:         v.ID,
		Value:      units.ToPreferred(v.Value, t),
		Unit:       unit.Unit,
		Category:   category(v, t),
		RecordedAt: v.CreatedDate.In(loc).Format(time.RFC3339),
	}
}

func toDayOutput(d session.Day, loc *time.Location) dayOutput {
	out := dayOutput{
		Tracker: d.Tracker.Name,
		Day:     d.Day.Format(session.DateLayout),
		Total:   d.Total,
		Target:  d.Target,
		Unit:    d.Unit.Unit,
		Values:  []valueOutput{},
	}
	for _, v := range d.Values {
		out.Values = append(out.Values, toValueOutput(v, d.Tracker, loc))
	}
	return out
}

func toCategoryOutput(c models.Code) categoryOutput {
	return categoryOutput{System: c.System, Code: c.Code, Display: c.Display}
}

// trackerDay resolves a tracker reference and a day string.
func (s *Server) trackerDay(ctx context.Context, ref, day string) (models.Tracker, time.Time, error) {
	t, err := s.session.Find(ctx, ref)
	if err != nil {
		return models.Tracker{}, time.Time{}, err
	}
	d, err := s.session.ParseDay(day)
	if err != nil {
		return models.Tracker{}, time.Time{}, err
	}
	return t, d, nil
}

// Tool handlers

func (s *Server) handleListTrackers(ctx context.Context, req *mcp.CallToolRequest, input listTrackersInput) (*mcp.CallToolResult, listTrackersOutput, error) {
	trackers, err := s.session.Trackers(ctx)
	if err != nil {
		return nil, listTrackersOutput{}, fmt.Errorf("failed to list trackers: %w", err)
	}

	out := listTrackersOutput{Trackers: []trackerOutput{}}
	for _, t := range trackers {
		if input.InstalledOnly && !t.IsInstalled() {
			continue
		}
		out.Trackers = append(out.Trackers, toTrackerOutput(t))
	}
	return nil, out, nil
}

func (s *Server) handleInstallTracker(ctx context.Context, req *mcp.CallToolRequest, input installTrackerInput) (*mcp.CallToolResult, installTrackerOutput, error) {
	t, changed, err := s.session.Install(ctx, input.Tracker, session.InstallOptions{
		Unit:   input.Unit,
		Target: input.Target,
	})
	if err != nil {
		return nil, installTrackerOutput{}, fmt.Errorf("failed to install tracker: %w", err)
	}

	out := toTrackerOutput(t)
	msg := fmt.Sprintf("%s unchanged", t.Name)
	if changed {
		msg = fmt.Sprintf("Installed %s: target %g %s", t.Name, out.Target, out.Unit)
	}
	return nil, installTrackerOutput{Tracker: out, Changed: changed, Message: msg}, nil
}

func (s *Server) handleUninstallTracker(ctx context.Context, req *mcp.CallToolRequest, input trackerInput) (*mcp.CallToolResult, simpleOutput, error) {
	t, err := s.session.Uninstall(ctx, input.Tracker)
	if err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to uninstall tracker: %w", err)
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Uninstalled %s", t.Name)}, nil
}

func (s *Server) handleReorderTrackers(ctx context.Context, req *mcp.CallToolRequest, input reorderInput) (*mcp.CallToolResult, listTrackersOutput, error) {
	installed, err := s.session.Reorder(ctx, input.Trackers)
	if err != nil {
		return nil, listTrackersOutput{}, fmt.Errorf("failed to reorder trackers: %w", err)
	}

	out := listTrackersOutput{Trackers: []trackerOutput{}}
	for _, t := range installed {
		out.Trackers = append(out.Trackers, toTrackerOutput(t))
	}
	return nil, out, nil
}

func (s *Server) handleGetDay(ctx context.Context, req *mcp.CallToolRequest, input dayInput) (*mcp.CallToolResult, dayOutput, error) {
	t, day, err := s.trackerDay(ctx, input.Tracker, input.Day)
	if err != nil {
		return nil, dayOutput{}, err
	}

	d, err := s.session.Day(ctx, t, day)
	if err != nil {
		return nil, dayOutput{}, fmt.Errorf("failed to get day: %w", err)
	}
	return nil, toDayOutput(d, s.session.Location()), nil
}

func (s *Server) totalOutput(t models.Tracker, day time.Time, total float64) totalOutput {
	unit, _ := units.PreferredUnitType(t)
	return totalOutput{
		Tracker: t.Name,
		Day:     day.Format(session.DateLayout),
		Total:   total,
		Unit:    unit.Unit,
		Message: fmt.Sprintf("%s on %s: %g %s", t.Name, day.Format(session.DateLayout), total, units.Display(total, unit)),
	}
}

func (s *Server) handleSetTotal(ctx context.Context, req *mcp.CallToolRequest, input totalInput) (*mcp.CallToolResult, totalOutput, error) {
	t, day, err := s.trackerDay(ctx, input.Tracker, input.Day)
	if err != nil {
		return nil, totalOutput{}, err
	}

	total, err := s.session.SetTotal(ctx, t, day, input.Value)
	if err != nil {
		return nil, totalOutput{}, fmt.Errorf("failed to set total: %w", err)
	}
	return nil, s.totalOutput(t, day, total), nil
}

func (s *Server) handleAddToTotal(ctx context.Context, req *mcp.CallToolRequest, input totalInput) (*mcp.CallToolResult, totalOutput, error) {
	t, day, err := s.trackerDay(ctx, input.Tracker, input.Day)
	if err != nil {
		return nil, totalOutput{}, err
	}

	total, err := s.session.AddToTotal(ctx, t, day, input.Value)
	if err != nil {
		return nil, totalOutput{}, fmt.Errorf("failed to add to total: %w", err)
	}
	return nil, s.totalOutput(t, day, total), nil
}

func (s *Server) handleQuickAdd(ctx context.Context, req *mcp.CallToolRequest, input quickAddInput) (*mcp.CallToolResult, valueOutput, error) {
	t, day, err := s.trackerDay(ctx, input.Tracker, input.Day)
	if err != nil {
		return nil, valueOutput{}, err
	}

	var code *models.Code
	if input.Category != "" {
		code, err = s.session.Category(ctx, t, input.Category)
		if err != nil {
			return nil, valueOutput{}, err
		}
	}

	if input.Amount != nil && *input.Amount <= 0 {
		return nil, valueOutput{}, fmt.Errorf("amount must be greater than zero, got %g", *input.Amount)
	}

	v, err := s.session.QuickAdd(ctx, t, day, code, input.Amount)
	if err != nil {
		return nil, valueOutput{}, fmt.Errorf("failed to add value: %w", err)
	}
	return nil, toValueOutput(v, t, s.session.Location()), nil
}

func (s *Server) handleEditValue(ctx context.Context, req *mcp.CallToolRequest, input editValueInput) (*mcp.CallToolResult, editValueOutput, error) {
	t, day, err := s.trackerDay(ctx, input.Tracker, input.Day)
	if err != nil {
		return nil, editValueOutput{}, err
	}

	res, err := s.session.Edit(ctx, t, day, input.ID, session.EditOptions{
		Value:    input.Value,
		Category: input.Category,
	})
	if err != nil {
		return nil, editValueOutput{}, fmt.Errorf("failed to edit value: %w", err)
	}

	out := editValueOutput{Outcome: res.Outcome.String()}
	if res.Value.ID != "" {
		v := toValueOutput(res.Value, t, s.session.Location())
		out.Value = &v
	}
	out.Message = fmt.Sprintf("Value %s %s", input.ID, out.Outcome)
	return nil, out, nil
}

func (s *Server) handleDeleteValue(ctx context.Context, req *mcp.CallToolRequest, input deleteValueInput) (*mcp.CallToolResult, simpleOutput, error) {
	t, day, err := s.trackerDay(ctx, input.Tracker, input.Day)
	if err != nil {
		return nil, simpleOutput{}, err
	}

	v, err := s.session.Delete(ctx, t, day, input.ID)
	if err != nil {
		return nil, simpleOutput{}, fmt.Errorf("failed to delete value: %w", err)
	}
	return nil, simpleOutput{Message: fmt.Sprintf("Deleted value: %s", v.ID)}, nil
}

func (s *Server) handleListCategories(ctx context.Context, req *mcp.CallToolRequest, input trackerInput) (*mcp.CallToolResult, categoriesOutput, error) {
	t, err := s.session.Find(ctx, input.Tracker)
	if err != nil {
		return nil, categoriesOutput{}, err
	}

	codes, err := s.session.Categories(ctx, t)
	if err != nil {
		return nil, categoriesOutput{}, fmt.Errorf("failed to list categories: %w", err)
	}

	out := categoriesOutput{Tracker: t.Name, Categories: []categoryOutput{}}
	for _, c := range codes {
		out.Categories = append(out.Categories, toCategoryOutput(c))
	}
	return nil, out, nil
}

func (s *Server) handleRecentValues(ctx context.Context, req *mcp.CallToolRequest, input trackerInput) (*mcp.CallToolResult, recentValuesOutput, error) {
	t, err := s.session.Find(ctx, input.Tracker)
	if err != nil {
		return nil, recentValuesOutput{}, err
	}

	values, err := s.session.Recent(ctx, t)
	if err != nil {
		return nil, recentValuesOutput{}, fmt.Errorf("failed to load recent values: %w", err)
	}
	return nil, recentValuesOutput{Tracker: t.Name, Values: toRecentOutputs(values, t)}, nil
}

func toRecentOutputs(values []recent.CodedValue, t models.Tracker) []recentOutput {
	out := []recentOutput{}
	for _, v := range values {
		out = append(out, recentOutput{
			Category: toCategoryOutput(v.Code),
			Value:    units.ToPreferred(v.Value, t),
		})
	}
	return out
}
