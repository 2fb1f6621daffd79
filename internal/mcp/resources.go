// ABOUTME: MCP resource implementations for trackers.
// ABOUTME: Provides tracker://today and tracker://trackers resources.
package mcp

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/harperreed/tracker/internal/session"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	todayURI    = "tracker://today"
	trackersURI = "tracker://trackers"
	jsonMIME    = "application/json"
)

func (s *Server) registerResources() {
	// tracker://today - Totals of every installed tracker for today
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         todayURI,
		Name:        "Today's Totals",
		Description: "Total, target and values of every installed tracker for today",
		MIMEType:    jsonMIME,
	}, s.handleTodayResource)

	// tracker://trackers - The tracker catalog
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         trackersURI,
		Name:        "Trackers",
		Description: "Every tracker with its install state, unit and target",
		MIMEType:    jsonMIME,
	}, s.handleTrackersResource)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: jsonMIME,
			Text:     string(data),
		}},
	}, nil
}

// Resource handlers

func (s *Server) handleTodayResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	today := s.session.Now()
	summary, err := s.session.Summary(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize today: %w", err)
	}

	days := []dayOutput{}
	met := 0
	for _, d := range summary {
		days = append(days, toDayOutput(d, s.session.Location()))
		if d.Target > 0 && d.Total >= d.Target {
			met++
		}
	}

	return jsonResource(todayURI, map[string]any{
		"date":     today.Format(session.DateLayout),
		"trackers": days,
		"counts": map[string]int{
			"trackers":    len(days),
			"targets_met": met,
		},
	})
}

func (s *Server) handleTrackersResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	trackers, err := s.session.Trackers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list trackers: %w", err)
	}

	out := []trackerOutput{}
	for _, t := range trackers {
		out = append(out, toTrackerOutput(t))
	}
	return jsonResource(trackersURI, map[string]any{"trackers": out})
}
