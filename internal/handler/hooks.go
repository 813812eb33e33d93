package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"mediadrop/portal/internal/pkg/httputils"
	"mediadrop/portal/internal/repository"
	"mediadrop/portal/internal/service"
)

// hookPayload mirrors the tus server's webhook body.
type hookPayload struct {
	Type  string `json:"Type"`
	Event struct {
		Upload struct {
			ID       string            `json:"ID"`
			Size     int64             `json:"Size"`
			Offset   int64             `json:"Offset"`
			MetaData map[string]string `json:"MetaData"`
			Storage  struct {
				Type     string `json:"Type"`
				Path     string `json:"Path"`
				InfoPath string `json:"InfoPath"`
			} `json:"Storage"`
		} `json:"Upload"`
	} `json:"Event"`
}

type HookHandler struct {
	ingest *service.Ingest
}

func NewHookHandler(ingest *service.Ingest) *HookHandler {
	return &HookHandler{ingest: ingest}
}

func (h *HookHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/hooks", h.handleHook).Methods("POST", "OPTIONS")
}

// @Summary Transport hook
// @Description Receive a tus server lifecycle hook
// @ID tus-hook
// @Accept json
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} httputils.ErrorResponse
// @Failure 403 {object} httputils.ErrorResponse
// @Router /hooks [post]
func (h *HookHandler) handleHook(w http.ResponseWriter, r *http.Request) {
	var payload hookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputils.ResponseError(w, http.StatusBadRequest, "Invalid hook payload")
		return
	}
	r.Body.Close()

	if payload.Type == "" {
		payload.Type = r.Header.Get("Hook-Name")
	}

	up := payload.Event.Upload
	ev := service.HookEvent{
		Type:        payload.Type,
		UploadID:    up.ID,
		Size:        up.Size,
		Offset:      up.Offset,
		Filename:    up.MetaData["filename"],
		MimeType:    up.MetaData["filetype"],
		Token:       up.MetaData["token"],
		StorageType: up.Storage.Type,
		SourcePath:  up.Storage.Path,
		InfoPath:    up.Storage.InfoPath,
	}

	log.Printf("hooks: %s for upload %s (offset %d of %d)", ev.Type, ev.UploadID, ev.Offset, ev.Size)

	if err := h.ingest.Dispatch(r.Context(), ev); err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, repository.ErrLinkNotFound):
			status = http.StatusNotFound
		case errors.Is(err, repository.ErrLinkExpired), errors.Is(err, repository.ErrLinkExhausted):
			status = http.StatusForbidden
		}
		httputils.ResponseError(w, status, err.Error())
		return
	}

	httputils.ResponseJSON(w, http.StatusOK, map[string]string{"message": "hook processed"})
}
