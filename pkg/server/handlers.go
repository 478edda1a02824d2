package server

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/matzehuels/pdaviz/pkg/core/collapse"
	"github.com/matzehuels/pdaviz/pkg/core/layout"
	"github.com/matzehuels/pdaviz/pkg/core/model"
	"github.com/matzehuels/pdaviz/pkg/core/replay"
	"github.com/matzehuels/pdaviz/pkg/errors"
	"github.com/matzehuels/pdaviz/pkg/graph"
)

// maxBodySize bounds request bodies.
const maxBodySize = 1 << 20

// Step actions accepted by POST /api/step.
const (
	ActionStart     = "start"
	ActionReset     = "reset"
	ActionFirst     = "first"
	ActionPrev      = "prev"
	ActionNext      = "next"
	ActionLast      = "last"
	ActionSet       = "set"
	ActionNextMatch = "next_match"
)

// =============================================================================
// Views and export
// =============================================================================

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	role, ok := s.role(w, r)
	if !ok {
		return
	}
	data, _, err := s.host.Export(r.Context(), role, graph.FormatHTML)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	role, ok := s.role(w, r)
	if !ok {
		return
	}
	format := strings.ToLower(chi.URLParam(r, "format"))
	if !graph.ValidFormat(format) {
		s.writeError(w, errors.New(errors.ErrCodeInvalidFormat,
			"invalid format %q (must be one of: %s)", format, strings.Join(graph.Formats, ", ")))
		return
	}

	data, name, err := s.host.Export(r.Context(), role, format)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(data)
}

// =============================================================================
// Frames and state
// =============================================================================

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.runner.State().Snapshot())
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	role, ok := s.role(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("all") != "" {
		frames, err := s.host.Frames(role)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, frames)
		return
	}
	f, err := s.host.Snapshot(role)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

// =============================================================================
// Interaction
// =============================================================================

type selectRequest struct {
	Label string `json:"label"`
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	role, ok := s.role(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.host.SwitchVisible(role, req.Label); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeFrame(w, role)
}

type clickRequest struct {
	Node string `json:"node"`
}

// ClickResponse reports the effect of a click.
type ClickResponse struct {
	Node     string       `json:"node"`
	Merged   bool         `json:"merged"`
	Hidden   []string     `json:"hidden,omitempty"`
	Revealed []string     `json:"revealed,omitempty"`
	Frame    *graph.Frame `json:"frame"`
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	role, ok := s.role(w, r)
	if !ok {
		return
	}
	var req clickRequest
	if !s.decode(w, r, &req) {
		return
	}
	change, err := s.host.Click(r.Context(), role, req.Node)
	if err != nil {
		s.writeError(w, err)
		return
	}
	f, err := s.host.Snapshot(role)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ClickResponse{
		Node:     change.Node,
		Merged:   change.Merged,
		Hidden:   change.Hidden,
		Revealed: change.Revealed,
		Frame:    f,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	role, ok := s.role(w, r)
	if !ok {
		return
	}
	if err := s.host.ResetViewport(role); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeFrame(w, role)
}

type followRequest struct {
	On bool `json:"on"`
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	role, ok := s.role(w, r)
	if !ok {
		return
	}
	var req followRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.host.SetFollow(role, req.On)
	w.WriteHeader(http.StatusNoContent)
}

type viewportRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s *Server) handleViewport(w http.ResponseWriter, r *http.Request) {
	var req viewportRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Width <= 0 || req.Height <= 0 {
		s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "width and height must be positive"))
		return
	}
	s.host.Resizer().Resize(layout.Size{Width: req.Width, Height: req.Height})
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Replay
// =============================================================================

type stepRequest struct {
	Action string `json:"action"`
	Step   int    `json:"step"`
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if !s.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	var err error
	switch req.Action {
	case ActionStart:
		err = s.runner.StartMatch(ctx)
	case ActionReset:
		s.runner.Reset()
	case ActionFirst:
		err = s.runner.First(ctx)
	case ActionPrev:
		err = s.runner.Prev(ctx)
	case ActionNext:
		err = s.runner.Next(ctx)
	case ActionLast:
		err = s.runner.Last(ctx)
	case ActionSet:
		err = s.runner.SetStep(ctx, req.Step)
	case ActionNextMatch:
		err = s.runner.NextMatch(ctx)
	default:
		err = errors.New(errors.ErrCodeInvalidInput, "unknown step action %q", req.Action)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.runner.State().Snapshot())
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Server) role(w http.ResponseWriter, r *http.Request) (replay.Role, bool) {
	role, err := replay.ParseRole(chi.URLParam(r, "role"))
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidRole, err, "%s", err))
		return 0, false
	}
	return role, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid request body"))
		return false
	}
	return true
}

func (s *Server) writeFrame(w http.ResponseWriter, role replay.Role) {
	f, err := s.host.Snapshot(role)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", "error", err)
	}
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	s.writeJSON(w, status, ErrorResponse{Error: errors.UserMessage(err), Code: errors.GetCode(err)})
}

// StatusCode maps an error to an HTTP status.
func StatusCode(err error) int {
	switch {
	case stderrors.Is(err, collapse.ErrNotCollapsible), stderrors.Is(err, collapse.ErrHidden):
		return http.StatusConflict
	case stderrors.Is(err, model.ErrUnknownNode):
		return http.StatusNotFound
	}
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFormat, errors.ErrCodeInvalidRole,
		errors.ErrCodeInvalidLabel, errors.ErrCodeInvalidPath:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeNotMounted, errors.ErrCodeUnknownNode:
		return http.StatusNotFound
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeNetwork, errors.ErrCodeBackend, errors.ErrCodeInvalidPayload,
		errors.ErrCodeUnknownKind, errors.ErrCodeCycle:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
