package httptransport

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"novel-translate-service/internal/entity"
	"novel-translate-service/internal/service"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	jobSvc *service.JobService
	log    *slog.Logger
}

func NewHandler(jobSvc *service.JobService, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{jobSvc: jobSvc, log: log}
}

type decomposeDTO struct {
	URLString string `json:"url_string"`
}

type cancelDTO struct {
	WorkflowID string `json:"workflow_id"`
}

type deleteDTO struct {
	TaskID string `json:"task_id"`
}

type deleteResp struct {
	Success bool `json:"success"`
}

// Decompose godoc
// @Summary Expand novel addresses into chapters
// @Description Splits url_string on whitespace and resolves series pages into ordered chapter addresses.
// @Tags novels
// @Accept json
// @Produce json
// @Param request body decomposeDTO true "whitespace separated addresses"
// @Success 200 {array} entity.ChapterReference
// @Failure 400 {object} apiError
// @Failure 500 {object} apiError
// @Router /rpc/decompose [post]
func (h *Handler) Decompose(w http.ResponseWriter, r *http.Request) {
	var dto decomposeDTO
	if !h.decode(w, r, &dto) {
		return
	}

	chapters, err := h.jobSvc.Decompose(r.Context(), dto.URLString)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if chapters == nil {
		chapters = []entity.ChapterReference{}
	}
	writeJSON(w, http.StatusOK, chapters)
}

// Translate godoc
// @Summary Start a translation job
// @Description Validates the request, triggers the workflow run and records the job as starting.
// @Tags jobs
// @Accept json
// @Produce json
// @Param X-User-Id header string true "caller identity"
// @Param request body entity.SubmitRequest true "job parameters"
// @Success 200 {string} string "ok"
// @Failure 400 {object} apiError
// @Failure 401 {object} apiError
// @Failure 403 {object} apiError
// @Failure 500 {object} apiError
// @Router /rpc/translate [post]
func (h *Handler) Translate(w http.ResponseWriter, r *http.Request) {
	var req entity.SubmitRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, err := h.jobSvc.Submit(r.Context(), UserID(r.Context()), req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "ok")
}

// Cancel godoc
// @Summary Cancel a job
// @Description Only jobs in the caller's history can be canceled.
// @Tags jobs
// @Accept json
// @Produce json
// @Param X-User-Id header string true "caller identity"
// @Param request body cancelDTO true "job id"
// @Success 200 {string} string "ok"
// @Failure 400 {object} apiError
// @Failure 401 {object} apiError
// @Failure 404 {object} apiError
// @Router /rpc/cancel [post]
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	var dto cancelDTO
	if !h.decode(w, r, &dto) {
		return
	}

	if err := h.jobSvc.Cancel(r.Context(), UserID(r.Context()), dto.WorkflowID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "ok")
}

// DeleteHistory godoc
// @Summary Remove a job from history
// @Description Body is either the bare task id string or {"task_id": "..."}.
// @Tags jobs
// @Accept json
// @Produce json
// @Param X-User-Id header string true "caller identity"
// @Success 200 {object} deleteResp
// @Failure 400 {object} apiError
// @Failure 401 {object} apiError
// @Router /rpc/history/delete [post]
func (h *Handler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if !h.decode(w, r, &raw) {
		return
	}

	taskID, ok := parseTaskID(raw)
	if !ok {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.jobSvc.Delete(r.Context(), UserID(r.Context()), taskID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deleteResp{Success: true})
}

// History godoc
// @Summary Recent jobs of the caller
// @Description Newest first, at most the configured history limit.
// @Tags jobs
// @Produce json
// @Param X-User-Id header string true "caller identity"
// @Success 200 {array} entity.Job
// @Failure 401 {object} apiError
// @Failure 500 {object} apiError
// @Router /rpc/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.jobSvc.ListRecent(r.Context(), UserID(r.Context()))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []entity.Job{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// Progress godoc
// @Summary Worker progress callback
// @Description A canceled job keeps its canceled status. Requires the shared callback secret.
// @Tags jobs
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer <callback secret>"
// @Param id path string true "job id"
// @Param request body entity.ProgressUpdate true "fields to update"
// @Success 200 {string} string "ok"
// @Failure 400 {object} apiError
// @Failure 401 {object} apiError
// @Failure 404 {object} apiError
// @Router /rpc/progress/{id} [post]
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	var u entity.ProgressUpdate
	if !h.decode(w, r, &u) {
		return
	}

	if err := h.jobSvc.ReportProgress(r.Context(), chi.URLParam(r, "id"), u); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "ok")
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

// parseTaskID accepts "id" as well as {"task_id":"id"}.
func parseTaskID(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return strings.TrimSpace(s), true
	}
	var dto deleteDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return "", false
	}
	return strings.TrimSpace(dto.TaskID), true
}
