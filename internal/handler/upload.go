package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"mediadrop/portal/internal/pkg/httputils"
	"mediadrop/portal/internal/repository"
	"mediadrop/portal/internal/service"
)

type UploadHandler struct {
	ingest     *service.Ingest
	tracker    *service.Tracker
	reconciler *service.Reconciler
	files      repository.FileRepository
	links      repository.UploadLinkRepository
}

func NewUploadHandler(ingest *service.Ingest, tracker *service.Tracker, reconciler *service.Reconciler, files repository.FileRepository, links repository.UploadLinkRepository) *UploadHandler {
	return &UploadHandler{
		ingest:     ingest,
		tracker:    tracker,
		reconciler: reconciler,
		files:      files,
		links:      links,
	}
}

func (h *UploadHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/s3-callback/{token}", h.s3Callback).Methods("POST", "OPTIONS")
	router.HandleFunc("/progress/{token}", h.progress).Methods("POST", "OPTIONS")
	router.HandleFunc("/upload-links/{token}", h.validateLink).Methods("GET", "OPTIONS")
	router.HandleFunc("/uploads", RequireAuth(h.listUploads)).Methods("GET", "OPTIONS")
	router.HandleFunc("/uploads/{id}", RequireAuth(h.uploadStatus)).Methods("GET", "OPTIONS")
	router.HandleFunc("/projects/{projectId}/files", RequireAuth(h.projectFiles)).Methods("GET", "OPTIONS")
	router.HandleFunc("/cleanup-filenames", RequireAuth(h.cleanupFilenames)).Methods("POST", "OPTIONS")
}

type s3CallbackRequest struct {
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
}

// @Summary Storage callback
// @Description Register an object that was uploaded directly to the bucket
// @ID s3-callback
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} httputils.ErrorResponse
// @Failure 403 {object} httputils.ErrorResponse
// @Failure 404 {object} httputils.ErrorResponse
// @Param token path string true "Upload link token"
// @Router /s3-callback/{token} [post]
func (h *UploadHandler) s3Callback(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	var request s3CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	r.Body.Close()

	if request.Key == "" {
		httputils.ResponseError(w, http.StatusBadRequest, "Object key is required")
		return
	}

	ev := service.StorageCallbackEvent{
		Key:      request.Key,
		Size:     request.Size,
		Filename: request.Filename,
		MimeType: request.MimeType,
		Token:    token,
	}

	if err := h.ingest.Dispatch(r.Context(), ev); err != nil {
		httputils.ResponseError(w, linkErrorStatus(err), err.Error())
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, map[string]string{"message": "upload registered"})
}

type progressRequest struct {
	UploadID      string `json:"uploadId"`
	BytesUploaded int64  `json:"bytesUploaded"`
	BytesTotal    int64  `json:"bytesTotal"`
	Filename      string `json:"filename"`
	ClientName    string `json:"clientName"`
	ProjectName   string `json:"projectName"`
}

// @Summary Progress ping
// @Description Report client-side upload progress
// @ID progress-ping
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} httputils.ErrorResponse
// @Param token path string true "Upload link token"
// @Router /progress/{token} [post]
func (h *UploadHandler) progress(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	var request progressRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "Invalid request format")
		return
	}
	r.Body.Close()

	ev := service.ProgressPingEvent{
		UploadID:        request.UploadID,
		BytesUploaded:   request.BytesUploaded,
		BytesTotal:      request.BytesTotal,
		Filename:        request.Filename,
		Token:           token,
		ClientNameHint:  request.ClientName,
		ProjectNameHint: request.ProjectName,
	}

	if err := h.ingest.Dispatch(r.Context(), ev); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, err.Error())
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, map[string]string{"message": "progress recorded"})
}

// @Summary Validate upload link
// @Description Check a link token and return its project context
// @ID validate-link
// @Produce json
// @Success 200 {object} model.UploadLink
// @Failure 403 {object} httputils.ErrorResponse
// @Failure 404 {object} httputils.ErrorResponse
// @Param token path string true "Upload link token"
// @Router /upload-links/{token} [get]
func (h *UploadHandler) validateLink(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]

	link, err := h.links.ValidateToken(token)
	if err != nil {
		httputils.ResponseError(w, linkErrorStatus(err), err.Error())
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, link)
}

// @Summary List uploads
// @Description List ledger entries; ?active=true restricts to in-flight uploads
// @ID list-uploads
// @Produce json
// @Success 200 {object} []model.UploadRecord
// @Failure 401 {object} httputils.ErrorResponse
// @Router /uploads [get]
func (h *UploadHandler) listUploads(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("active") == "true" {
		httputils.ResponseJSON(w, http.StatusOK, h.tracker.ListActive())
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, h.tracker.ListAll())
}

// @Summary Upload status
// @Description Fetch one ledger entry by upload id
// @ID upload-status
// @Produce json
// @Success 200 {object} model.UploadRecord
// @Failure 401 {object} httputils.ErrorResponse
// @Failure 404 {object} httputils.ErrorResponse
// @Param id path string true "Upload ID"
// @Router /uploads/{id} [get]
func (h *UploadHandler) uploadStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, ok := h.tracker.Get(id)
	if !ok {
		httputils.ResponseError(w, http.StatusNotFound, "No such upload")
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, rec)
}

// @Summary Project files
// @Description List delivered files for a project
// @ID project-files
// @Produce json
// @Success 200 {object} []model.UploadedFile
// @Failure 401 {object} httputils.ErrorResponse
// @Failure 400 {object} httputils.ErrorResponse
// @Param projectId path int true "Project ID"
// @Router /projects/{projectId}/files [get]
func (h *UploadHandler) projectFiles(w http.ResponseWriter, r *http.Request) {
	projectID, err := strconv.Atoi(mux.Vars(r)["projectId"])
	if err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "Failed to parse project ID")
		return
	}

	files, err := h.files.FindByProject(uint(projectID))
	if err != nil {
		httputils.ResponseError(w, http.StatusInternalServerError, "Failed to list project files")
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, files)
}

// @Summary Clean up storage keys
// @Description Rename every object still carrying an injected upload identifier
// @ID cleanup-filenames
// @Produce json
// @Success 200 {object} service.ReconcileStats
// @Failure 401 {object} httputils.ErrorResponse
// @Failure 500 {object} httputils.ErrorResponse
// @Router /cleanup-filenames [post]
func (h *UploadHandler) cleanupFilenames(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reconciler.ReconcileAll(r.Context())
	if err != nil {
		httputils.ResponseError(w, http.StatusInternalServerError, err.Error())
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, stats)
}

func linkErrorStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrLinkNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrLinkExpired), errors.Is(err, repository.ErrLinkExhausted):
		return http.StatusForbidden
	case errors.Is(err, service.ErrReservedExtension):
		return http.StatusBadRequest
	default:
		return http.StatusBadRequest
	}
}
