// ABOUTME: Tests for MCP server, tools, and resources.
// ABOUTME: Runs a session over a temporary SQLite store with in-memory recents.
package mcp

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/recent"
	"github.com/harperreed/tracker/internal/session"
	"github.com/harperreed/tracker/internal/storage"
	"github.com/harperreed/tracker/internal/sync"
)

var (
	noon = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tea  = models.Code{System: "http://example.com/drinks", Code: "tea", Display: "Tea"}
	oj   = models.Code{System: "http://example.com/drinks", Code: "juice", Display: "Juice"}
)

func ptr[T any](v T) *T { return &v }

// setupTestServer creates a server over a test database in a temp directory.
func setupTestServer(t *testing.T) (*Server, *storage.DB) {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open(filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	serving := models.UnitType{Unit: "serving", Display: "Servings", Default: true, Target: 8}
	for _, tr := range []*models.Tracker{
		models.NewTracker("water", "Water", models.ResourceObservation, serving),
		models.NewTracker("coffee", "Coffee", models.ResourceObservation, serving),
	} {
		if err := db.CreateTracker(ctx, *tr, false); err != nil {
			t.Fatalf("CreateTracker failed: %v", err)
		}
	}
	forest := []models.CodedRelationship{{
		Code:          models.Code{System: "http://example.com/groups", Code: "drinks"},
		SpecializedBy: []models.CodedRelationship{{Code: tea}, {Code: oj}},
	}}
	if err := db.PutOntology(ctx, "water", forest); err != nil {
		t.Fatalf("PutOntology failed: %v", err)
	}

	recents, err := recent.OpenBadger("")
	if err != nil {
		t.Fatalf("OpenBadger failed: %v", err)
	}
	t.Cleanup(func() { _ = recents.Close() })

	sess := session.New(db, recents, session.Options{
		Account:     sync.Account{Project: "proj", PatientID: "pat"},
		Location:    time.UTC,
		Development: true,
		Now:         func() time.Time { return noon },
	})
	t.Cleanup(sess.Close)

	server, err := NewServer(sess)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return server, db
}

func install(t *testing.T, s *Server, tracker string) {
	t.Helper()
	_, _, err := s.handleInstallTracker(context.Background(), nil, installTrackerInput{Tracker: tracker})
	if err != nil {
		t.Fatalf("install %s failed: %v", tracker, err)
	}
}

func TestNewServer(t *testing.T) {
	server, _ := setupTestServer(t)

	if server.mcpServer == nil {
		t.Error("Expected non-nil mcpServer")
	}
	if server.session == nil {
		t.Error("Expected non-nil session")
	}

	if _, err := NewServer(nil); err == nil {
		t.Error("Expected error without a session")
	}
}

func TestHandleListTrackers(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()

	_, out, err := server.handleListTrackers(ctx, nil, listTrackersInput{})
	if err != nil {
		t.Fatalf("handleListTrackers failed: %v", err)
	}
	if len(out.Trackers) != 2 {
		t.Fatalf("Expected 2 trackers, got %d", len(out.Trackers))
	}

	_, out, err = server.handleListTrackers(ctx, nil, listTrackersInput{InstalledOnly: true})
	if err != nil {
		t.Fatalf("handleListTrackers failed: %v", err)
	}
	if len(out.Trackers) != 0 {
		t.Errorf("Expected no installed trackers, got %d", len(out.Trackers))
	}
}

func TestHandleInstallTracker(t *testing.T) {
	tests := []struct {
		name      string
		input     installTrackerInput
		wantErr   bool
		errSubstr string
	}{
		{
			name:  "install by name",
			input: installTrackerInput{Tracker: "Water", Target: ptr(6.0)},
		},
		{
			name:  "install with unit",
			input: installTrackerInput{Tracker: "coffee", Unit: "serving"},
		},
		{
			name:      "unknown tracker",
			input:     installTrackerInput{Tracker: "tea"},
			wantErr:   true,
			errSubstr: "tracker not found",
		},
		{
			name:      "unknown unit",
			input:     installTrackerInput{Tracker: "water", Unit: "gallon"},
			wantErr:   true,
			errSubstr: "gallon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := setupTestServer(t)

			_, out, err := server.handleInstallTracker(context.Background(), nil, tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				if !strings.Contains(err.Error(), tt.errSubstr) {
					t.Errorf("Expected error containing %q, got %v", tt.errSubstr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("handleInstallTracker failed: %v", err)
			}
			if !out.Changed || !out.Tracker.Installed {
				t.Errorf("Expected tracker installed, got %+v", out)
			}
			if out.Tracker.MetricID == "" {
				t.Error("Expected a metric ID")
			}
		})
	}
}

func TestHandleTotals(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	install(t, server, "water")

	_, out, err := server.handleSetTotal(ctx, nil, totalInput{Tracker: "water", Value: 3})
	if err != nil {
		t.Fatalf("handleSetTotal failed: %v", err)
	}
	if out.Total != 3 || out.Day != "2024-03-10" {
		t.Errorf("Unexpected set output: %+v", out)
	}

	_, out, err = server.handleAddToTotal(ctx, nil, totalInput{Tracker: "water", Value: 2, Day: "today"})
	if err != nil {
		t.Fatalf("handleAddToTotal failed: %v", err)
	}
	if out.Total != 5 {
		t.Errorf("Expected total 5, got %g", out.Total)
	}

	_, day, err := server.handleGetDay(ctx, nil, dayInput{Tracker: "water"})
	if err != nil {
		t.Fatalf("handleGetDay failed: %v", err)
	}
	if day.Total != 5 || day.Target != 8 || len(day.Values) != 1 {
		t.Errorf("Unexpected day: %+v", day)
	}

	if _, _, err := server.handleSetTotal(ctx, nil, totalInput{Tracker: "water", Value: 1, Day: "someday"}); err == nil {
		t.Error("Expected error for an invalid day")
	}
}

func TestHandleValueLifecycle(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	install(t, server, "water")

	_, cats, err := server.handleListCategories(ctx, nil, trackerInput{Tracker: "water"})
	if err != nil {
		t.Fatalf("handleListCategories failed: %v", err)
	}
	if len(cats.Categories) != 2 {
		t.Fatalf("Expected 2 categories, got %+v", cats.Categories)
	}

	_, added, err := server.handleQuickAdd(ctx, nil, quickAddInput{Tracker: "water", Category: "Tea"})
	if err != nil {
		t.Fatalf("handleQuickAdd failed: %v", err)
	}
	if added.Value != 1 || added.Category != "Tea" || added.ID == "" {
		t.Errorf("Unexpected quick add: %+v", added)
	}

	if _, _, err := server.handleQuickAdd(ctx, nil, quickAddInput{Tracker: "water", Category: "soda"}); err == nil {
		t.Error("Expected error for an unknown category")
	}
	if _, _, err := server.handleQuickAdd(ctx, nil, quickAddInput{Tracker: "water", Amount: ptr(0.0)}); err == nil {
		t.Error("Expected error for a zero amount")
	}

	_, edited, err := server.handleEditValue(ctx, nil, editValueInput{
		Tracker:  "water",
		ID:       added.ID[:8],
		Value:    ptr(2.0),
		Category: "juice",
	})
	if err != nil {
		t.Fatalf("handleEditValue failed: %v", err)
	}
	if edited.Outcome != "saved" || edited.Value == nil || edited.Value.Category != "Juice" || edited.Value.Value != 2 {
		t.Errorf("Unexpected edit: %+v", edited)
	}

	_, recents, err := server.handleRecentValues(ctx, nil, trackerInput{Tracker: "water"})
	if err != nil {
		t.Fatalf("handleRecentValues failed: %v", err)
	}
	if len(recents.Values) != 1 || recents.Values[0].Category.Code != "juice" {
		t.Errorf("Unexpected recent values: %+v", recents.Values)
	}

	_, msg, err := server.handleDeleteValue(ctx, nil, deleteValueInput{Tracker: "water", ID: added.ID})
	if err != nil {
		t.Fatalf("handleDeleteValue failed: %v", err)
	}
	if !strings.Contains(msg.Message, added.ID) {
		t.Errorf("Unexpected delete message: %s", msg.Message)
	}

	_, day, err := server.handleGetDay(ctx, nil, dayInput{Tracker: "water"})
	if err != nil {
		t.Fatalf("handleGetDay failed: %v", err)
	}
	if len(day.Values) != 0 {
		t.Errorf("Expected no values after delete, got %+v", day.Values)
	}
}

func TestHandleUninstallAndReorder(t *testing.T) {
	server, db := setupTestServer(t)
	ctx := context.Background()
	install(t, server, "water")
	install(t, server, "coffee")

	_, order, err := server.handleReorderTrackers(ctx, nil, reorderInput{Trackers: []string{"Coffee", "Water"}})
	if err != nil {
		t.Fatalf("handleReorderTrackers failed: %v", err)
	}
	if len(order.Trackers) != 2 || order.Trackers[0].Name != "Coffee" {
		t.Errorf("Unexpected order: %+v", order.Trackers)
	}

	if _, _, err := server.handleUninstallTracker(ctx, nil, trackerInput{Tracker: "coffee"}); err != nil {
		t.Fatalf("handleUninstallTracker failed: %v", err)
	}
	installed, err := db.FetchTrackers(ctx, false)
	if err != nil {
		t.Fatalf("FetchTrackers failed: %v", err)
	}
	count := 0
	for _, tr := range installed {
		if tr.IsInstalled() {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected 1 installed tracker, got %d", count)
	}

	if _, _, err := server.handleUninstallTracker(ctx, nil, trackerInput{Tracker: "coffee"}); err == nil {
		t.Error("Expected error uninstalling twice")
	}
}

func TestResources(t *testing.T) {
	server, _ := setupTestServer(t)
	ctx := context.Background()
	install(t, server, "water")
	if _, _, err := server.handleSetTotal(ctx, nil, totalInput{Tracker: "water", Value: 8}); err != nil {
		t.Fatalf("handleSetTotal failed: %v", err)
	}

	res, err := server.handleTodayResource(ctx, nil)
	if err != nil {
		t.Fatalf("handleTodayResource failed: %v", err)
	}
	if len(res.Contents) != 1 || res.Contents[0].URI != todayURI {
		t.Fatalf("Unexpected contents: %+v", res.Contents)
	}
	var today struct {
		Date     string      `json:"date"`
		Trackers []dayOutput `json:"trackers"`
		Counts   struct {
			Trackers   int `json:"trackers"`
			TargetsMet int `json:"targets_met"`
		} `json:"counts"`
	}
	if err := json.Unmarshal([]byte(res.Contents[0].Text), &today); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if today.Date != "2024-03-10" || today.Counts.Trackers != 1 || today.Counts.TargetsMet != 1 {
		t.Errorf("Unexpected today resource: %+v", today)
	}

	res, err = server.handleTrackersResource(ctx, nil)
	if err != nil {
		t.Fatalf("handleTrackersResource failed: %v", err)
	}
	if !strings.Contains(res.Contents[0].Text, `"name": "Coffee"`) {
		t.Errorf("Expected catalog in trackers resource, got %s", res.Contents[0].Text)
	}
}
