package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"mue/internal/api"
	"mue/internal/imagemeta"
	"mue/internal/library"
	"mue/internal/models"
	"mue/internal/quota"
)

func (s *Server) handleListBackgrounds(w http.ResponseWriter, r *http.Request) {
	order, err := models.ParseSortOrder(r.URL.Query().Get("sort"))
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeInvalidSort))
		return
	}

	items, err := s.library.List(r.Context(), order)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []models.Background{}
	}
	s.writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetBackground(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	bg, err := s.library.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bg)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, uploadMaxBody)
	if err := r.ParseMultipartForm(uploadMaxMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge))
			return
		}
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("invalid multipart payload: %w", err), ErrCodeInvalidArgument))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("files are required"), ErrCodeMissingRequired))
		return
	}

	files := make([]library.UploadFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readFormFile(fh)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("read %s: %w", fh.Filename, err), ErrCodeInvalidArgument))
			return
		}
		files = append(files, library.UploadFile{
			Name:      fh.Filename,
			MediaType: fh.Header.Get("Content-Type"),
			Data:      data,
		})
	}
	folder := strings.TrimSpace(r.FormValue("folder"))

	result, err := s.library.Upload(r.Context(), files, folder, nil)
	resp := uploadResponse(result)
	switch {
	case err != nil && errors.Is(err, quota.ErrQuotaExceeded) && len(result.Stored) > 0:
		// Partial batch: report what made it in.
		s.writeJSON(w, http.StatusOK, resp)
	case err != nil:
		s.writeServiceError(w, r, err)
	case len(result.Stored) == 0 && len(result.Failed) > 0:
		s.writeServiceError(w, r, result.Failed[0])
	default:
		s.writeJSON(w, http.StatusCreated, resp)
	}
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func uploadResponse(result library.UploadResult) api.UploadResponse {
	resp := api.UploadResponse{
		Stored:  result.Stored,
		Aborted: result.Aborted,
	}
	if resp.Stored == nil {
		resp.Stored = []models.Background{}
	}
	for _, failure := range result.Failed {
		resp.Failed = append(resp.Failed, api.UploadFailure{Name: failure.Name, Error: failure.Err.Error()})
	}
	return resp
}

func (s *Server) handleAddURL(w http.ResponseWriter, r *http.Request) {
	var req api.AddURLRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("url is required"), ErrCodeMissingRequired))
		return
	}

	bg, err := s.library.AddURL(r.Context(), req.URL, strings.TrimSpace(req.Folder))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, bg)
}

func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	offline, err := queryBool(r, "offline")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	bg, err := s.library.Pick(r.Context(), offline)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	resp := api.PickResponse{Background: bg}
	if bg != nil {
		resp.Video = imagemeta.IsVideo(bg.URL)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteMany(w http.ResponseWriter, r *http.Request) {
	var req api.IDsRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	var (
		deleted int
		err     error
	)
	if len(req.Indices) > 0 {
		order, perr := models.ParseSortOrder(req.Sort)
		if perr != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(perr, ErrCodeInvalidSort))
			return
		}
		deleted, err = s.library.DeleteAt(r.Context(), order, req.Indices)
	} else {
		if verr := requireIDs(req.IDs); verr != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, verr)
			return
		}
		deleted, err = s.library.DeleteMany(r.Context(), req.IDs)
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.DeleteResponse{Deleted: deleted})
}

func (s *Server) handleDeleteBackground(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	if err := s.library.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearBackgrounds(w http.ResponseWriter, r *http.Request) {
	if err := s.library.Clear(r.Context()); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpdateBackground(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r)
	if !ok {
		return
	}
	var req api.BackgroundUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if req.Name == nil && req.Folder == nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("name or folder is required"), ErrCodeMissingRequired))
		return
	}

	patch := models.BackgroundPatch{Folder: req.Folder}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("name must not be empty"), ErrCodeInvalidArgument))
			return
		}
		patch.Name = &name
	}

	bg, err := s.library.Update(r.Context(), id, patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, bg)
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	filled, err := s.library.Backfill(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.BackfillResponse{Filled: filled})
}
