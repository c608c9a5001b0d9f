package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MeKo-Tech/keystone/internal/editor"
	"github.com/MeKo-Tech/keystone/internal/effect"
	"github.com/MeKo-Tech/keystone/internal/geom"
	"github.com/MeKo-Tech/keystone/internal/version"
	"github.com/disintegration/imaging"
)

const maxBodyBytes = 64 << 10

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// cornersHandler reads, replaces or resets the corner set.
func (s *Server) cornersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.mu.Lock()
		resp := s.cornersResponse()
		s.mu.Unlock()
		s.writeJSON(w, http.StatusOK, resp)

	case http.MethodPut:
		var pts []geom.Point
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&pts); err != nil {
			s.writeErrorResponse(w, "invalid_request", "Body must be a JSON array of points", http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		err := s.ctrl.Editor().SetCorners(pts)
		if err == nil {
			err = s.commitLocked()
		}
		resp := s.cornersResponse()
		s.mu.Unlock()

		if errors.Is(err, editor.ErrValidation) {
			s.writeErrorResponse(w, "invalid_corners", err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			s.writeErrorResponse(w, "internal_error", err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, resp)

	case http.MethodDelete:
		s.mu.Lock()
		s.ctrl.Editor().ResetToCanonical()
		err := s.commitLocked()
		resp := s.cornersResponse()
		s.mu.Unlock()

		if err != nil {
			s.writeErrorResponse(w, "internal_error", err.Error(), http.StatusInternalServerError)
			return
		}
		s.writeJSON(w, http.StatusOK, resp)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// homographyHandler returns the current matrix.
func (s *Server) homographyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	resp := HomographyResponse{
		Matrix:  s.ctrl.Matrix(),
		Method:  string(s.ctrl.Method()),
		Corners: s.ctrl.Corners().Slice(),
	}
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, resp)
}

// editHandler enters or leaves edit mode. Leaving persists the corners.
func (s *Server) editHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req EditRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeErrorResponse(w, "invalid_request", "Body must be {\"enabled\": bool}", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	err := s.ctrl.SetEditing(req.Enabled)
	editing := s.ctrl.Editing()
	s.mu.Unlock()

	if err != nil {
		s.writeErrorResponse(w, "save_failed", err.Error(), http.StatusInternalServerError)
		return
	}
	s.broadcastState()
	s.writeJSON(w, http.StatusOK, EditResponse{Editing: editing})
}

// previewHandler renders the calibration pattern through the current matrix.
func (s *Server) previewHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.renderer == nil || s.source == nil {
		s.writeErrorResponse(w, "unavailable", "Preview is not configured", http.StatusNotFound)
		return
	}

	frame := s.renderer.Render(s.source)
	w.Header().Set("Content-Type", "image/png")
	if err := imaging.Encode(w, frame, imaging.PNG); err != nil {
		s.logger.Error("Failed to encode preview", "error", err)
	}
}

// commitLocked solves pending corner changes, persists them and notifies
// sessions. Callers hold s.mu.
func (s *Server) commitLocked() error {
	_, changed, err := s.ctrl.Tick(effect.Frame{})
	if err != nil {
		return err
	}
	if changed {
		s.broadcastLocked()
	}
	return s.ctrl.Save()
}

func (s *Server) cornersResponse() CornersResponse {
	return CornersResponse{Corners: s.ctrl.Corners().Slice(), Editing: s.ctrl.Editing()}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, code, message string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{Error: code, Message: message})
}
