package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/function61/gokit/jsonfile"
	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/zzenonn/vidshard/internal/domain"
	apperrors "github.com/zzenonn/vidshard/internal/errors"
)

type provisionRequest struct {
	LocationHint string `json:"location_hint"`
}

type createFolderRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	outJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req provisionRequest
	if r.ContentLength != 0 {
		if err := jsonfile.Unmarshal(r.Body, &req, true); err != nil {
			outError(w, http.StatusBadRequest, err)
			return
		}
	}

	hint, err := domain.ParseRegion(req.LocationHint)
	if err != nil {
		outError(w, http.StatusBadRequest, err)
		return
	}

	desc, err := s.provisioner.ProvisionTenant(r.Context(), chi.URLParam(r, "tenantID"), hint)
	if err != nil {
		outServiceError(w, err)
		return
	}
	outJson(w, http.StatusOK, desc)
}

func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	a, err := s.provisioner.Deactivate(r.Context(), chi.URLParam(r, "tenantID"))
	if err != nil {
		outServiceError(w, err)
		return
	}
	outJson(w, http.StatusOK, a)
}

func (s *Server) handleFolderTree(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	tree, err := s.folders.GetFolderTree(r.Context(), tenantID)
	if err != nil {
		outServiceError(w, err)
		return
	}
	if tree == nil {
		outError(w, http.StatusNotFound, apperrors.ErrTenantNotPlaced)
		return
	}
	outJson(w, http.StatusOK, tree)
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := jsonfile.Unmarshal(r.Body, &req, true); err != nil {
		outError(w, http.StatusBadRequest, err)
		return
	}

	c, err := s.folders.CreateFolder(r.Context(), chi.URLParam(r, "tenantID"), req.Name, req.ParentID)
	if err != nil {
		outServiceError(w, err)
		return
	}
	outJson(w, http.StatusCreated, c)
}

func (s *Server) handleShards(w http.ResponseWriter, r *http.Request) {
	loads, err := s.shards.Loads(r.Context())
	if err != nil {
		outServiceError(w, err)
		return
	}
	outJson(w, http.StatusOK, loads)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrMissingRequiredFields),
		errors.Is(err, apperrors.ErrInvalidRegion),
		errors.Is(err, apperrors.ErrFolderDepthExceeded):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrForeignCollection):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrTenantNotPlaced),
		errors.Is(err, apperrors.ErrShardNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrBootstrapFailed),
		errors.Is(err, apperrors.ErrNoAvailableShard):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperrors.ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func outServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("Request failed")
	}
	outError(w, status, err)
}

func outError(w http.ResponseWriter, status int, err error) {
	outJson(w, status, errorResponse{Error: err.Error()})
}

func outJson(w http.ResponseWriter, status int, out interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		log.WithError(err).Warn("Failed to write response")
	}
}
