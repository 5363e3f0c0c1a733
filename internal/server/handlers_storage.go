package server

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"mue/internal/api"
)

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	usage, err := s.library.Usage(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.StorageResponse(usage))
}

func (s *Server) handlePersist(w http.ResponseWriter, r *http.Request) {
	granted, err := s.library.RequestPersistence(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PersistResponse{Granted: granted})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.backup == nil {
		s.writeErrorReq(w, r, http.StatusNotImplemented, makeAPIError(http.StatusNotImplemented, "not_implemented", ErrCodeNotImplemented, fmt.Errorf("backups are not configured")))
		return
	}
	s.withLimiter(w, r, s.exportLimiter, "export", func() {
		var buf bytes.Buffer
		manifest, err := s.backup.Export(r.Context(), &buf)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusInternalServerError, makeAPIError(http.StatusInternalServerError, "internal", ErrCodeExportFailed, err))
			return
		}

		name := fmt.Sprintf("mue-backup-%s.yaml", manifest.CreatedAt.Format("20060102-150405"))
		w.Header().Set("Content-Type", "application/yaml")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.WriteHeader(http.StatusOK)
		if _, err := buf.WriteTo(w); err != nil {
			s.log().Error("write export", "error", err)
		}
	})
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.backup == nil {
		s.writeErrorReq(w, r, http.StatusNotImplemented, makeAPIError(http.StatusNotImplemented, "not_implemented", ErrCodeNotImplemented, fmt.Errorf("backups are not configured")))
		return
	}
	s.withLimiter(w, r, s.importLimiter, "import", func() {
		r.Body = http.MaxBytesReader(w, r.Body, importMaxBody)
		imported, err := s.library.Restore(r.Context(), func(ctx context.Context) (int, error) {
			return s.backup.Import(ctx, r.Body)
		})
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.ImportResponse{Imported: imported})
	})
}

func (s *Server) handleLegacyImport(w http.ResponseWriter, r *http.Request) {
	var req api.LegacyImportRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Value) == "" {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("value is required"), ErrCodeMissingRequired))
		return
	}
	count, err := s.library.ImportLegacy(r.Context(), req.Value)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.LegacyImportResponse{Migrated: count > 0, Count: count})
}
