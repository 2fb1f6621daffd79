// ABOUTME: Request handlers translating HTTP calls into backend operations.
// ABOUTME: Errors are rendered as {"error": ...} with a status derived from the cause.
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/harperreed/tracker/internal/logging"
	"github.com/harperreed/tracker/internal/models"
	"github.com/harperreed/tracker/internal/remote"
)

const maxBodySize = 4 << 20

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		logging.Component("server").Error().Err(err).Msg("Failed to encode JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", remote.ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, remote.ErrorResponse{Error: msg})
}

// fail maps err to a status code and writes it.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, remote.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errBadRequest), errors.As(err, &verrs):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logging.Component("server").Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) decode(r *http.Request, out any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	return nil
}

func resourceType(r *http.Request) (models.ResourceType, error) {
	rt := models.ResourceType(chi.URLParam(r, "resourceType"))
	if !rt.IsValid() {
		return rt, fmt.Errorf("%w: unsupported resource type %q", errBadRequest, rt)
	}
	return rt, nil
}

func (s *Server) fetchTrackers(w http.ResponseWriter, r *http.Request) {
	includePublic := false
	if v := r.URL.Query().Get(remote.QueryIncludePublic); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			fail(w, r, fmt.Errorf("%w: %s: %v", errBadRequest, remote.QueryIncludePublic, err))
			return
		}
		includePublic = b
	}

	trackers, err := s.backend.FetchTrackers(r.Context(), includePublic)
	if err != nil {
		fail(w, r, err)
		return
	}
	if trackers == nil {
		trackers = []models.Tracker{}
	}
	writeJSON(w, http.StatusOK, trackers)
}

func (s *Server) upsertTracker(w http.ResponseWriter, r *http.Request) {
	var settings models.InstalledMetricSettings
	if err := s.decode(r, &settings); err != nil {
		fail(w, r, err)
		return
	}
	if err := s.validate.Struct(settings); err != nil {
		fail(w, r, err)
		return
	}

	out, err := s.backend.UpsertTracker(r.Context(), chi.URLParam(r, "metricID"), settings)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) upsertTrackers(w http.ResponseWriter, r *http.Request) {
	var settings []models.BulkInstalledMetricSettings
	if err := s.decode(r, &settings); err != nil {
		fail(w, r, err)
		return
	}
	for _, st := range settings {
		if err := s.validate.Struct(st); err != nil {
			fail(w, r, err)
			return
		}
	}

	if err := s.backend.UpsertTrackers(r.Context(), settings); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) uninstallTracker(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.UninstallTracker(r.Context(), chi.URLParam(r, "metricID")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) searchValues(w http.ResponseWriter, r *http.Request) {
	var req remote.SearchRequest
	if err := s.decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		fail(w, r, err)
		return
	}

	vc := models.ValuesContext{System: req.System, CodeBelow: req.CodeBelow}
	resources, err := s.backend.FetchTrackerValues(r.Context(), vc, models.Interval{Start: req.Start, End: req.End})
	if err != nil {
		fail(w, r, err)
		return
	}
	if resources == nil {
		resources = []models.Resource{}
	}
	writeJSON(w, http.StatusOK, remote.SearchResponse{Resources: resources})
}

func (s *Server) createResource(w http.ResponseWriter, r *http.Request) {
	s.saveResource(w, r, "", http.StatusCreated)
}

func (s *Server) updateResource(w http.ResponseWriter, r *http.Request) {
	s.saveResource(w, r, chi.URLParam(r, "id"), http.StatusOK)
}

// saveResource stores the body under the path's type, and id when set.
func (s *Server) saveResource(w http.ResponseWriter, r *http.Request, id string, status int) {
	rt, err := resourceType(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	var resource models.Resource
	if err := s.decode(r, &resource); err != nil {
		fail(w, r, err)
		return
	}
	if resource.ResourceType != rt {
		fail(w, r, fmt.Errorf("%w: body is a %s, path says %s", errBadRequest, resource.ResourceType, rt))
		return
	}
	resource.ID = id

	out, err := s.backend.UpsertTrackerResource(r.Context(), resource)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, status, out)
}

func (s *Server) deleteResource(w http.ResponseWriter, r *http.Request) {
	rt, err := resourceType(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	ok, err := s.backend.DeleteTrackerResource(r.Context(), rt, chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, remote.DeleteResponse{Success: ok})
}

func (s *Server) fetchOntology(w http.ResponseWriter, r *http.Request) {
	forest, err := s.backend.FetchOntology(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if forest == nil {
		forest = []models.CodedRelationship{}
	}
	writeJSON(w, http.StatusOK, forest)
}
