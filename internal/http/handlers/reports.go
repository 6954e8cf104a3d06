package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iago/factory-ops-back/internal/domain"
)

type createReportRequest struct {
	LineID      *string `json:"line_id"`
	LineName    *string `json:"line_name"`
	Description *string `json:"description"`
	ReportedBy  *string `json:"reported_by"`
	Priority    *string `json:"priority"`
}

type updateReportRequest struct {
	Description     *string    `json:"description"`
	Status          *string    `json:"status"`
	Priority        *string    `json:"priority"`
	AssignedTo      *string    `json:"assigned_to"`
	Comments        *string    `json:"comments"`
	PhotoURLs       []string   `json:"photo_urls"`
	WorkerArrivedAt *timestamp `json:"worker_arrived_at"`
	CompletedAt     *timestamp `json:"completed_at"`
}

var errInvalidStatus = errors.New("status must be open, in_progress or closed")

func (api *API) CreateFailureReport(w http.ResponseWriter, r *http.Request) {
	var request createReportRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}

	var missing []string
	required := []struct {
		name  string
		value *string
	}{
		{"line_id", request.LineID},
		{"line_name", request.LineName},
		{"description", request.Description},
		{"reported_by", request.ReportedBy},
	}
	for _, field := range required {
		if field.value == nil {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		writeError(w, r, http.StatusUnprocessableEntity, "missing_fields", "missing required fields: "+strings.Join(missing, ", "))
		return
	}

	input := domain.NewReportInput{
		LineID:      *request.LineID,
		LineName:    *request.LineName,
		Description: *request.Description,
		ReportedBy:  *request.ReportedBy,
	}
	if request.Priority != nil {
		input.Priority = *request.Priority
	}

	report, err := api.maintenance.Create(r.Context(), input)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

func (api *API) ListFailureReports(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := domain.ReportFilter{LineID: strings.TrimSpace(query.Get("line_id"))}

	rawStatus := query.Get("status_filter")
	if rawStatus == "" {
		rawStatus = query.Get("status")
	}
	if strings.TrimSpace(rawStatus) != "" {
		status, ok := domain.ParseReportStatus(rawStatus)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid_status", errInvalidStatus.Error())
			return
		}
		filter.Status = status
	}

	reports, err := api.maintenance.List(r.Context(), filter)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (api *API) GetFailureReport(w http.ResponseWriter, r *http.Request) {
	report, err := api.maintenance.Get(r.Context(), chi.URLParam(r, "reportID"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (api *API) UpdateFailureReport(w http.ResponseWriter, r *http.Request) {
	var request updateReportRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON payload")
		return
	}

	patch := domain.ReportPatch{
		Description: request.Description,
		Priority:    request.Priority,
		AssignedTo:  request.AssignedTo,
		Comments:    request.Comments,
		PhotoURLs:   request.PhotoURLs,
	}
	if request.Status != nil {
		status, ok := domain.ParseReportStatus(*request.Status)
		if !ok {
			writeError(w, r, http.StatusBadRequest, "invalid_status", errInvalidStatus.Error())
			return
		}
		patch.Status = &status
	}
	if request.WorkerArrivedAt != nil {
		patch.WorkerArrivedAt = &request.WorkerArrivedAt.Time
	}
	if request.CompletedAt != nil {
		patch.CompletedAt = &request.CompletedAt.Time
	}

	report, err := api.maintenance.Update(r.Context(), chi.URLParam(r, "reportID"), patch)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (api *API) MarkWorkerArrived(w http.ResponseWriter, r *http.Request) {
	report, err := api.maintenance.MarkWorkerArrived(r.Context(), chi.URLParam(r, "reportID"))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (api *API) AddReportPhoto(w http.ResponseWriter, r *http.Request) {
	part, ok := api.readUploadPart(w, r)
	if !ok {
		return
	}
	defer part.Close()

	report, err := api.maintenance.AddPhoto(r.Context(), chi.URLParam(r, "reportID"), part.descriptor, part.file)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (api *API) DeleteFailureReport(w http.ResponseWriter, r *http.Request) {
	if err := api.maintenance.Delete(r.Context(), chi.URLParam(r, "reportID")); err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
